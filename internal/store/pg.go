package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sokos-io/nft-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates every table the indexer writes
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&schema.Collection{},
		&schema.Account{},
		&schema.Nft{},
		&schema.Balance{},
		&schema.Market{},
		&schema.Order{},
		&schema.RegisteredContract{},
		&schema.ProcessedEvent{},
		&schema.KeyValueStore{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool of the underlying *sql.DB.
// Zero values fall back to 20 open, 5 idle, 5m lifetime and 10m idle time.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	maxIdleConns = min(maxIdleConns, maxOpenConns)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// getByID loads one row by primary key, returning nil when it does not exist
func getByID[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	var entity T
	err := db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity, nil
}

func (s *pgStore) GetCollection(ctx context.Context, id string) (*schema.Collection, error) {
	c, err := getByID[schema.Collection](ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

func (s *pgStore) GetAccount(ctx context.Context, id string) (*schema.Account, error) {
	a, err := getByID[schema.Account](ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (s *pgStore) GetNft(ctx context.Context, id string) (*schema.Nft, error) {
	n, err := getByID[schema.Nft](ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get nft: %w", err)
	}
	return n, nil
}

func (s *pgStore) GetBalance(ctx context.Context, id string) (*schema.Balance, error) {
	b, err := getByID[schema.Balance](ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

func (s *pgStore) GetMarket(ctx context.Context, id string) (*schema.Market, error) {
	m, err := getByID[schema.Market](ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return m, nil
}

func (s *pgStore) GetOrder(ctx context.Context, id string) (*schema.Order, error) {
	o, err := getByID[schema.Order](ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *pgStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.ProcessedEvent{}).
		Where("id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return count > 0, nil
}

// Apply commits a change set and the processed event marker in one transaction
func (s *pgStore) Apply(ctx context.Context, event ProcessedEvent, changes *ChangeSet) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if event.ID != "" {
			marker := schema.ProcessedEvent{
				ID:          event.ID,
				ChainID:     event.ChainID,
				BlockNumber: event.BlockNumber,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
				return fmt.Errorf("failed to mark event processed: %w", err)
			}
		}

		if changes.Empty() {
			return nil
		}

		insertOnly := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
		upsert := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}

		if len(changes.Accounts) > 0 {
			if err := tx.Clauses(insertOnly).Create(&changes.Accounts).Error; err != nil {
				return fmt.Errorf("failed to create accounts: %w", err)
			}
		}
		if len(changes.Collections) > 0 {
			if err := tx.Clauses(upsert).Create(&changes.Collections).Error; err != nil {
				return fmt.Errorf("failed to upsert collections: %w", err)
			}
		}
		if len(changes.Nfts) > 0 {
			if err := tx.Clauses(upsert).Create(&changes.Nfts).Error; err != nil {
				return fmt.Errorf("failed to upsert nfts: %w", err)
			}
		}
		if len(changes.Balances) > 0 {
			if err := tx.Clauses(insertOnly).Create(&changes.Balances).Error; err != nil {
				return fmt.Errorf("failed to create balances: %w", err)
			}
		}
		if len(changes.Markets) > 0 {
			if err := tx.Clauses(upsert).Create(&changes.Markets).Error; err != nil {
				return fmt.Errorf("failed to upsert markets: %w", err)
			}
		}
		if len(changes.Orders) > 0 {
			if err := tx.Clauses(upsert).Create(&changes.Orders).Error; err != nil {
				return fmt.Errorf("failed to upsert orders: %w", err)
			}
		}

		return nil
	})
}

func (s *pgStore) ListBalancesByAccount(ctx context.Context, accountID string, limit int, offset int) ([]schema.Balance, error) {
	var balances []schema.Balance
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order(`"timestamp" DESC, id ASC`).
		Limit(limit).
		Offset(offset).
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

func (s *pgStore) ListOrdersByMarket(ctx context.Context, marketID string, limit int, offset int) ([]schema.Order, error) {
	var orders []schema.Order
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order(`"timestamp" ASC, id ASC`).
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *pgStore) RegisterContract(ctx context.Context, contract schema.RegisteredContract) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain_id"}, {Name: "address"}},
			DoNothing: true,
		}).
		Create(&contract)
	if result.Error != nil {
		return false, fmt.Errorf("failed to register contract: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *pgStore) ListRegisteredContracts(ctx context.Context, chainID uint64) ([]schema.RegisteredContract, error) {
	var contracts []schema.RegisteredContract
	err := s.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("from_block ASC, address ASC").
		Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list registered contracts: %w", err)
	}
	return contracts, nil
}

func blockCursorKey(chainID uint64) string {
	return fmt.Sprintf("block_cursor:%d", chainID)
}

// GetBlockCursor returns 0 when no cursor was stored yet
func (s *pgStore) GetBlockCursor(ctx context.Context, chainID uint64) (uint64, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", blockCursorKey(chainID)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

func (s *pgStore) SetBlockCursor(ctx context.Context, chainID uint64, blockNumber uint64) error {
	kv := schema.KeyValueStore{
		Key:   blockCursorKey(chainID),
		Value: strconv.FormatUint(blockNumber, 10),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}
