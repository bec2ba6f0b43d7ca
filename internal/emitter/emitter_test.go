package emitter_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/emitter"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/mocks"
	"github.com/sokos-io/nft-indexer/internal/registry"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

const chainID = 137

var (
	factoryAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	newToken    = common.HexToAddress("0x00000000000000000000000000000000000000DD")
	aliceAddr   = common.HexToAddress("0x00000000000000000000000000000000000000BB")

	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	deployedTopic = crypto.Keccak256Hash([]byte("CollectionDeployed(address,address,bool,string,string,string)"))
)

type testEmitterMocks struct {
	ctrl      *gomock.Controller
	client    *mocks.MockLogFilterer
	blocks    *mocks.MockBlockProvider
	registrar *mocks.MockRegistrar
	publisher *mocks.MockPublisher
	store     *mocks.MockStore
	clock     *mocks.MockClock
}

func setupTestEmitter(t *testing.T) *testEmitterMocks {
	ctrl := gomock.NewController(t)

	return &testEmitterMocks{
		ctrl:      ctrl,
		client:    mocks.NewMockLogFilterer(ctrl),
		blocks:    mocks.NewMockBlockProvider(ctrl),
		registrar: mocks.NewMockRegistrar(ctrl),
		publisher: mocks.NewMockPublisher(ctrl),
		store:     mocks.NewMockStore(ctrl),
		clock:     mocks.NewMockClock(ctrl),
	}
}

func (tm *testEmitterMocks) newEmitter(startBlock uint64) emitter.Emitter {
	return emitter.NewEmitter(tm.client, tm.blocks, tm.registrar, tm.publisher, tm.store, emitter.Config{
		ChainID:          chainID,
		FactoryAddresses: []string{factoryAddr.Hex()},
		StartBlock:       startBlock,
		BatchSize:        100,
		PollInterval:     time.Second,
	}, tm.clock)
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func mintLog(contract common.Address, tokenID int64, blockNumber uint64, index uint) types.Log {
	return types.Log{
		Address: contract,
		Topics: []common.Hash{
			transferTopic,
			addressTopic(common.Address{}),
			addressTopic(aliceAddr),
			common.BigToHash(big.NewInt(tokenID)),
		},
		BlockNumber: blockNumber,
		Index:       index,
		TxHash:      common.BigToHash(big.NewInt(int64(blockNumber))),
	}
}

func deployedLog(t *testing.T, token common.Address, blockNumber uint64, index uint) types.Log {
	boolType, err := abi.NewType("bool", "", nil)
	require.NoError(t, err)
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)

	data, err := abi.Arguments{{Type: boolType}, {Type: stringType}, {Type: stringType}, {Type: stringType}}.
		Pack(false, "Art", "ART", "ipfs://bafycollection")
	require.NoError(t, err)

	return types.Log{
		Address:     factoryAddr,
		Topics:      []common.Hash{deployedTopic, addressTopic(token), addressTopic(aliceAddr)},
		Data:        data,
		BlockNumber: blockNumber,
		Index:       index,
		TxHash:      common.BigToHash(big.NewInt(int64(blockNumber))),
	}
}

func TestEmitter_Run_CursorError(t *testing.T) {
	tm := setupTestEmitter(t)

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(0), errors.New("db down"))

	err := tm.newEmitter(0).Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestEmitter_Run_PublishesRangeInLogOrder(t *testing.T) {
	tm := setupTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(99), nil)
	tm.blocks.EXPECT().SafeBlock(gomock.Any()).Return(uint64(105), nil)
	tm.registrar.EXPECT().Contracts(gomock.Any(), uint64(chainID)).Return([]registry.Contract{
		{ChainID: chainID, Address: tokenAddr.Hex(), Standard: domain.StandardERC721, FromBlock: 50},
		{ChainID: chainID, Address: newToken.Hex(), Standard: domain.StandardERC721, FromBlock: 500},
	}, nil)

	removed := mintLog(tokenAddr, 9, 101, 9)
	removed.Removed = true

	tm.client.EXPECT().
		FilterLogs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
			assert.Equal(t, uint64(100), q.FromBlock.Uint64())
			assert.Equal(t, uint64(105), q.ToBlock.Uint64())
			// the contract registered after the range is not watched yet
			assert.ElementsMatch(t, []common.Address{factoryAddr, tokenAddr}, q.Addresses)
			require.Len(t, q.Topics, 1)
			assert.Contains(t, q.Topics[0], transferTopic)
			return []types.Log{
				mintLog(tokenAddr, 3, 102, 1),
				mintLog(tokenAddr, 2, 101, 5),
				removed,
				mintLog(tokenAddr, 1, 101, 2),
			}, nil
		})
	tm.blocks.EXPECT().BlockTimestamp(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n uint64) (int64, error) {
			return int64(1700000000 + n), nil
		}).AnyTimes()

	var published []string
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev *domain.Event) error {
			var p domain.TransferParams
			require.NoError(t, ev.Decode(&p))
			assert.Equal(t, int64(1700000000+ev.BlockNumber), ev.BlockTimestamp)
			published = append(published, p.TokenID)
			return nil
		}).Times(3)

	tm.store.EXPECT().SetBlockCursor(gomock.Any(), uint64(chainID), uint64(105)).
		DoAndReturn(func(context.Context, uint64, uint64) error {
			cancel()
			return nil
		})
	tm.blocks.EXPECT().Forget(uint64(105))

	err := tm.newEmitter(0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"1", "2", "3"}, published)
}

func TestEmitter_Run_RequeriesRangeForNewCollection(t *testing.T) {
	tm := setupTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(0), nil)
	tm.blocks.EXPECT().SafeBlock(gomock.Any()).Return(uint64(150), nil)
	tm.registrar.EXPECT().Contracts(gomock.Any(), uint64(chainID)).Return(nil, nil)

	gomock.InOrder(
		tm.client.EXPECT().
			FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, []common.Address{factoryAddr}, q.Addresses)
				return []types.Log{deployedLog(t, newToken, 103, 0)}, nil
			}),
		tm.client.EXPECT().
			FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, []common.Address{newToken}, q.Addresses)
				assert.Equal(t, uint64(100), q.FromBlock.Uint64())
				return []types.Log{mintLog(newToken, 1, 104, 0), mintLog(newToken, 1, 103, 1)}, nil
			}),
	)
	tm.registrar.EXPECT().RegisterERC721(gomock.Any(), uint64(chainID), newToken.Hex(), uint64(103)).Return(nil)
	tm.blocks.EXPECT().BlockTimestamp(gomock.Any(), gomock.Any()).Return(int64(1700000000), nil).AnyTimes()

	var eventTypes []domain.EventType
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev *domain.Event) error {
			eventTypes = append(eventTypes, ev.Type)
			return nil
		}).Times(3)

	tm.store.EXPECT().SetBlockCursor(gomock.Any(), uint64(chainID), uint64(150)).
		DoAndReturn(func(context.Context, uint64, uint64) error {
			cancel()
			return nil
		})
	tm.blocks.EXPECT().Forget(uint64(150))

	err := tm.newEmitter(100).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []domain.EventType{
		domain.EventTypeCollectionDeployed,
		domain.EventTypeTransfer,
		domain.EventTypeTransfer,
	}, eventTypes)
}

func TestEmitter_Run_StartsAtSafeBlockWithoutCursor(t *testing.T) {
	tm := setupTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(0), nil)
	tm.blocks.EXPECT().SafeBlock(gomock.Any()).Return(uint64(500), nil).Times(2)
	tm.registrar.EXPECT().Contracts(gomock.Any(), uint64(chainID)).Return(nil, nil)
	tm.client.EXPECT().
		FilterLogs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
			assert.Equal(t, uint64(500), q.FromBlock.Uint64())
			assert.Equal(t, uint64(500), q.ToBlock.Uint64())
			return nil, nil
		})
	tm.store.EXPECT().SetBlockCursor(gomock.Any(), uint64(chainID), uint64(500)).
		DoAndReturn(func(context.Context, uint64, uint64) error {
			cancel()
			return nil
		})
	tm.blocks.EXPECT().Forget(uint64(500))

	err := tm.newEmitter(0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_WaitsWhenCaughtUp(t *testing.T) {
	tm := setupTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(200), nil)
	tm.blocks.EXPECT().SafeBlock(gomock.Any()).Return(uint64(200), nil)
	tm.clock.EXPECT().After(time.Second).DoAndReturn(func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	})

	err := tm.newEmitter(0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_RetriesFailedRange(t *testing.T) {
	tm := setupTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(10), nil)
	tm.blocks.EXPECT().SafeBlock(gomock.Any()).Return(uint64(20), nil).Times(2)
	tm.registrar.EXPECT().Contracts(gomock.Any(), uint64(chainID)).Return(nil, nil).Times(2)

	fired := make(chan time.Time, 1)
	fired <- time.Now()
	tm.clock.EXPECT().After(time.Second).Return(fired)

	gomock.InOrder(
		tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return(nil, errors.New("503 service unavailable")),
		tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				// the failed range is retried from its start
				assert.Equal(t, uint64(11), q.FromBlock.Uint64())
				return nil, nil
			}),
	)
	tm.store.EXPECT().SetBlockCursor(gomock.Any(), uint64(chainID), uint64(20)).
		DoAndReturn(func(context.Context, uint64, uint64) error {
			cancel()
			return nil
		})
	tm.blocks.EXPECT().Forget(uint64(20))

	err := tm.newEmitter(0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmitter_Run_PublishFailureKeepsCursor(t *testing.T) {
	tm := setupTestEmitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.store.EXPECT().GetBlockCursor(gomock.Any(), uint64(chainID)).Return(uint64(10), nil)
	tm.blocks.EXPECT().SafeBlock(gomock.Any()).Return(uint64(20), nil)
	tm.registrar.EXPECT().Contracts(gomock.Any(), uint64(chainID)).Return(nil, nil)
	tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return([]types.Log{mintLog(factoryAddr, 1, 12, 0)}, nil)
	tm.blocks.EXPECT().BlockTimestamp(gomock.Any(), uint64(12)).Return(int64(1700000012), nil)
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(errors.New("nats: timeout"))

	// no SetBlockCursor: the range is retried after the poll interval
	tm.clock.EXPECT().After(time.Second).DoAndReturn(func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	})

	err := tm.newEmitter(0).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
