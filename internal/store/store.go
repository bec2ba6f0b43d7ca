package store

import (
	"context"

	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

// Reader fetches entities by id. Every getter returns (nil, nil) when the entity does not exist.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore,Reader=MockReader
type Reader interface {
	GetCollection(ctx context.Context, id string) (*schema.Collection, error)
	GetAccount(ctx context.Context, id string) (*schema.Account, error)
	GetNft(ctx context.Context, id string) (*schema.Nft, error)
	GetBalance(ctx context.Context, id string) (*schema.Balance, error)
	GetMarket(ctx context.Context, id string) (*schema.Market, error)
	GetOrder(ctx context.Context, id string) (*schema.Order, error)
	// IsEventProcessed reports whether the changes of an event were already committed
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
}

// Store defines the interface for database operations
type Store interface {
	Reader

	// Apply commits a change set atomically and marks the event as processed
	Apply(ctx context.Context, event ProcessedEvent, changes *ChangeSet) error

	// ListBalancesByAccount returns the transfer ledger of a recipient, newest first
	ListBalancesByAccount(ctx context.Context, accountID string, limit int, offset int) ([]schema.Balance, error)
	// ListOrdersByMarket returns the orders filling a listing
	ListOrdersByMarket(ctx context.Context, marketID string, limit int, offset int) ([]schema.Order, error)

	// RegisterContract stores a contract to follow; it reports false when it was already registered
	RegisterContract(ctx context.Context, contract schema.RegisteredContract) (bool, error)
	// ListRegisteredContracts returns every contract registered on a chain
	ListRegisteredContracts(ctx context.Context, chainID uint64) ([]schema.RegisteredContract, error)

	// GetBlockCursor retrieves the last processed block number for a chain
	GetBlockCursor(ctx context.Context, chainID uint64) (uint64, error)
	// SetBlockCursor stores the last processed block number for a chain
	SetBlockCursor(ctx context.Context, chainID uint64, blockNumber uint64) error
}

// ProcessedEvent identifies the event a change set belongs to
type ProcessedEvent struct {
	ID          string
	ChainID     uint64
	BlockNumber uint64
}

// ChangeSet is the list of upserts produced by handling one event.
//
// Accounts and Balances are insert-only: an existing row is never overwritten.
// Every other entity is written last-writer-wins.
type ChangeSet struct {
	Collections []schema.Collection
	Accounts    []schema.Account
	Nfts        []schema.Nft
	Balances    []schema.Balance
	Markets     []schema.Market
	Orders      []schema.Order
}

// Empty reports whether the change set writes nothing
func (c *ChangeSet) Empty() bool {
	return c == nil || len(c.Collections)+len(c.Accounts)+len(c.Nfts)+len(c.Balances)+len(c.Markets)+len(c.Orders) == 0
}

// AddAccount appends an account unless it is already part of the change set
func (c *ChangeSet) AddAccount(id string) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return
		}
	}
	c.Accounts = append(c.Accounts, schema.Account{ID: id})
}
