package emitter

import (
	"cmp"
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/block"
	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/messaging"
	ethprovider "github.com/sokos-io/nft-indexer/internal/providers/ethereum"
	"github.com/sokos-io/nft-indexer/internal/registry"
	"github.com/sokos-io/nft-indexer/internal/store"
)

// Config holds the configuration for the event emitter of one chain
type Config struct {
	ChainID uint64
	// FactoryAddresses emit CollectionDeployed and the marketplace events
	FactoryAddresses []string
	// StartBlock is used when no cursor is stored. Zero starts at the current safe block.
	StartBlock   uint64
	BatchSize    uint64
	PollInterval time.Duration
}

// Emitter defines the interface for the event emitter
//
//go:generate mockgen -source=emitter.go -destination=../mocks/emitter.go -package=mocks -mock_names=Emitter=MockEmitter,LogFilterer=MockLogFilterer
type Emitter interface {
	// Run polls the chain until ctx is done or an unrecoverable error occurs
	Run(ctx context.Context) error
}

// LogFilterer reads logs from the chain
type LogFilterer interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

type emitter struct {
	client    LogFilterer
	blocks    block.Provider
	registrar registry.Registrar
	publisher messaging.Publisher
	store     store.Store
	config    Config
	clock     adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	client LogFilterer,
	blocks block.Provider,
	registrar registry.Registrar,
	pub messaging.Publisher,
	st store.Store,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 2000
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return &emitter{
		client:    client,
		blocks:    blocks,
		registrar: registrar,
		publisher: pub,
		store:     st,
		config:    cfg,
		clock:     clock,
	}
}

// Run starts the event emitter
func (e *emitter) Run(ctx context.Context) error {
	next, err := e.startBlock(ctx)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		safe, err := e.blocks.SafeBlock(ctx)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to get safe block", zap.Uint64("chain_id", e.config.ChainID), zap.Error(err))
			if err := e.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if next > safe {
			if err := e.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		to := min(next+e.config.BatchSize-1, safe)
		if err := e.processRange(ctx, next, to); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to process block range"),
				zap.Uint64("chain_id", e.config.ChainID),
				zap.Uint64("from", next),
				zap.Uint64("to", to))
			if err := e.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		if err := e.store.SetBlockCursor(ctx, e.config.ChainID, to); err != nil {
			// events of the range are republished on restart and deduplicated by the stream
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to save block cursor"), zap.Uint64("block", to))
		}
		e.blocks.Forget(to)
		next = to + 1
	}
}

func (e *emitter) startBlock(ctx context.Context) (uint64, error) {
	cursor, err := e.store.GetBlockCursor(ctx, e.config.ChainID)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	if cursor > 0 {
		next := max(cursor+1, e.config.StartBlock)
		logger.InfoCtx(ctx, "Resuming from last processed block", zap.Uint64("chain_id", e.config.ChainID), zap.Uint64("block", next))
		return next, nil
	}

	if e.config.StartBlock > 0 {
		logger.InfoCtx(ctx, "Starting from configured block", zap.Uint64("chain_id", e.config.ChainID), zap.Uint64("block", e.config.StartBlock))
		return e.config.StartBlock, nil
	}

	safe, err := e.blocks.SafeBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	logger.InfoCtx(ctx, "Starting from latest block", zap.Uint64("chain_id", e.config.ChainID), zap.Uint64("block", safe))
	return safe, nil
}

func (e *emitter) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clock.After(e.config.PollInterval):
		return nil
	}
}

// processRange publishes every event of blocks [from, to] in (block, logIndex) order
func (e *emitter) processRange(ctx context.Context, from, to uint64) error {
	addresses, err := e.watchedAddresses(ctx, to)
	if err != nil {
		return err
	}

	logs, err := e.filterLogs(ctx, addresses, from, to)
	if err != nil {
		return err
	}

	watched := make(map[common.Address]bool, len(addresses))
	for _, addr := range addresses {
		watched[addr] = true
	}

	// collections deployed inside the range emit their first transfers in the same range
	for {
		deployed, err := e.registerDeployments(ctx, logs, watched)
		if err != nil {
			return err
		}
		if len(deployed) == 0 {
			break
		}

		extra, err := e.filterLogs(ctx, deployed, from, to)
		if err != nil {
			return err
		}
		logs = append(logs, extra...)
	}

	slices.SortFunc(logs, func(a, b types.Log) int {
		if a.BlockNumber != b.BlockNumber {
			return cmp.Compare(a.BlockNumber, b.BlockNumber)
		}
		return cmp.Compare(a.Index, b.Index)
	})
	logs = slices.CompactFunc(logs, func(a, b types.Log) bool {
		return a.BlockNumber == b.BlockNumber && a.Index == b.Index
	})

	published := 0
	for _, vLog := range logs {
		timestamp, err := e.blocks.BlockTimestamp(ctx, vLog.BlockNumber)
		if err != nil {
			return err
		}

		event, err := ethprovider.ParseEventLog(e.config.ChainID, vLog, timestamp)
		if err != nil {
			logger.WarnCtx(ctx, "Skipping undecodable log",
				zap.String("tx_hash", vLog.TxHash.Hex()),
				zap.Uint("log_index", vLog.Index),
				zap.Error(err))
			continue
		}
		if event == nil {
			continue
		}

		if err := e.publisher.PublishEvent(ctx, event); err != nil {
			return err
		}
		published++
	}

	logger.DebugCtx(ctx, "Processed block range",
		zap.Uint64("chain_id", e.config.ChainID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("events", published))

	return nil
}

// watchedAddresses returns the factories and every contract registered at or before block to
func (e *emitter) watchedAddresses(ctx context.Context, to uint64) ([]common.Address, error) {
	contracts, err := e.registrar.Contracts(ctx, e.config.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered contracts: %w", err)
	}

	addresses := make([]common.Address, 0, len(e.config.FactoryAddresses)+len(contracts))
	for _, addr := range e.config.FactoryAddresses {
		addresses = append(addresses, common.HexToAddress(addr))
	}
	for _, c := range contracts {
		if c.FromBlock <= to {
			addresses = append(addresses, common.HexToAddress(c.Address))
		}
	}

	return addresses, nil
}

// registerDeployments registers the collections deployed by logs that are not watched yet
func (e *emitter) registerDeployments(ctx context.Context, logs []types.Log, watched map[common.Address]bool) ([]common.Address, error) {
	var deployed []common.Address
	for _, vLog := range logs {
		if !ethprovider.IsCollectionDeployed(vLog) {
			continue
		}

		event, err := ethprovider.ParseEventLog(e.config.ChainID, vLog, 0)
		if err != nil || event == nil {
			continue
		}
		var p domain.CollectionDeployedParams
		if err := event.Decode(&p); err != nil {
			continue
		}

		addr := common.HexToAddress(p.TokenAddress)
		if watched[addr] {
			continue
		}

		if p.IsERC1155 {
			err = e.registrar.RegisterERC1155(ctx, e.config.ChainID, p.TokenAddress, vLog.BlockNumber)
		} else {
			err = e.registrar.RegisterERC721(ctx, e.config.ChainID, p.TokenAddress, vLog.BlockNumber)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to register collection %s: %w", p.TokenAddress, err)
		}

		logger.InfoCtx(ctx, "Watching new collection",
			zap.Uint64("chain_id", e.config.ChainID),
			zap.String("address", p.TokenAddress),
			zap.Uint64("from_block", vLog.BlockNumber))

		watched[addr] = true
		deployed = append(deployed, addr)
	}

	return deployed, nil
}

func (e *emitter) filterLogs(ctx context.Context, addresses []common.Address, from, to uint64) ([]types.Log, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	logs, err := e.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addresses,
		Topics:    [][]common.Hash{ethprovider.EventTopics()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs %d-%d: %w", from, to, err)
	}

	return logs, nil
}
