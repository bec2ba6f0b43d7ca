package registry

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

// Contract is a token contract the event source follows
type Contract struct {
	ChainID   uint64
	Address   string
	Standard  domain.Standard
	FromBlock uint64
}

// Registrar registers token contracts deployed through the factory so their
// Transfer and TransferSingle logs get indexed. Registration is idempotent.
//
//go:generate mockgen -source=registrar.go -destination=../mocks/registrar.go -package=mocks -mock_names=Registrar=MockRegistrar
type Registrar interface {
	RegisterERC721(ctx context.Context, chainID uint64, address string, fromBlock uint64) error
	RegisterERC1155(ctx context.Context, chainID uint64, address string, fromBlock uint64) error

	// Contracts returns every registered contract of a chain, oldest first
	Contracts(ctx context.Context, chainID uint64) ([]Contract, error)
}

// ContractStore persists registrations
type ContractStore interface {
	RegisterContract(ctx context.Context, contract schema.RegisteredContract) (bool, error)
	ListRegisteredContracts(ctx context.Context, chainID uint64) ([]schema.RegisteredContract, error)
}

type registrar struct {
	store ContractStore
	// known holds "chainID:address" of contracts already persisted by this process
	known *xsync.Map[string, struct{}]
}

func NewRegistrar(store ContractStore) Registrar {
	return &registrar{
		store: store,
		known: xsync.NewMap[string, struct{}](),
	}
}

func (r *registrar) RegisterERC721(ctx context.Context, chainID uint64, address string, fromBlock uint64) error {
	return r.register(ctx, chainID, address, domain.StandardERC721, fromBlock)
}

func (r *registrar) RegisterERC1155(ctx context.Context, chainID uint64, address string, fromBlock uint64) error {
	return r.register(ctx, chainID, address, domain.StandardERC1155, fromBlock)
}

func (r *registrar) register(ctx context.Context, chainID uint64, address string, standard domain.Standard, fromBlock uint64) error {
	address = domain.NormalizeAddress(address)
	key := fmt.Sprintf("%d:%s", chainID, address)
	if _, ok := r.known.Load(key); ok {
		return nil
	}

	created, err := r.store.RegisterContract(ctx, schema.RegisteredContract{
		ChainID:   chainID,
		Address:   address,
		Standard:  string(standard),
		FromBlock: fromBlock,
	})
	if err != nil {
		return fmt.Errorf("failed to register %s contract %s: %w", standard, address, err)
	}
	r.known.Store(key, struct{}{})

	if created {
		logger.InfoCtx(ctx, "Registered token contract",
			zap.Uint64("chain_id", chainID),
			zap.String("address", address),
			zap.String("standard", string(standard)),
			zap.Uint64("from_block", fromBlock))
	}

	return nil
}

func (r *registrar) Contracts(ctx context.Context, chainID uint64) ([]Contract, error) {
	rows, err := r.store.ListRegisteredContracts(ctx, chainID)
	if err != nil {
		return nil, err
	}

	contracts := make([]Contract, 0, len(rows))
	for _, row := range rows {
		contracts = append(contracts, Contract{
			ChainID:   row.ChainID,
			Address:   row.Address,
			Standard:  domain.Standard(row.Standard),
			FromBlock: row.FromBlock,
		})
	}
	return contracts, nil
}
