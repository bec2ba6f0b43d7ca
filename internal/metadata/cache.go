package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sokos-io/nft-indexer/internal/adapter"
)

// Cache persists resolved metadata keyed by TokenRef.CacheKey
//
//go:generate mockgen -source=cache.go -destination=../mocks/metadata_cache.go -package=mocks -mock_names=Cache=MockMetadataCache
type Cache interface {
	// Get returns the cached record, or nil when the key is absent
	Get(ctx context.Context, key string) (*Metadata, error)

	// Set stores m under key, replacing any previous record
	Set(ctx context.Context, key string, md *Metadata) error

	Close() error
}

// cacheEntry is a row of the metadata cache table
type cacheEntry struct {
	Key  string `gorm:"column:key;primaryKey"`
	Data string `gorm:"column:data;type:text;not null"`
}

func (cacheEntry) TableName() string {
	return "nft_metadata_cache"
}

type sqliteCache struct {
	db   *gorm.DB
	json adapter.JSON
}

// NewSQLiteCache opens (creating when needed) the cache database at path
func NewSQLiteCache(path string, json adapter.JSON) (Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata cache: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache connection: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&cacheEntry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create metadata cache table: %w", err)
	}

	return &sqliteCache{db: db, json: json}, nil
}

func (c *sqliteCache) Get(ctx context.Context, key string) (*Metadata, error) {
	var entry cacheEntry
	err := c.db.WithContext(ctx).Where(&cacheEntry{Key: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata cache: %w", err)
	}

	var m Metadata
	if err := c.json.Unmarshal([]byte(entry.Data), &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached metadata for %s: %w", key, err)
	}
	return &m, nil
}

func (c *sqliteCache) Set(ctx context.Context, key string, m *Metadata) error {
	data, err := c.json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	err = c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data"}),
		}).
		Create(&cacheEntry{Key: key, Data: string(data)}).Error
	if err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}
	return nil
}

func (c *sqliteCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// nopCache never hits and drops writes. Used in development.
type nopCache struct{}

// NewNopCache returns a cache that stores nothing
func NewNopCache() Cache {
	return nopCache{}
}

func (nopCache) Get(context.Context, string) (*Metadata, error) { return nil, nil }

func (nopCache) Set(context.Context, string, *Metadata) error { return nil }

func (nopCache) Close() error { return nil }
