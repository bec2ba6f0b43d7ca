package block

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/logger"
)

// Provider gives cached access to the chain head and to block timestamps.
// One provider serves one chain.
//
//go:generate mockgen -source=block.go -destination=../mocks/block.go -package=mocks -mock_names=Provider=MockBlockProvider,Fetcher=MockBlockFetcher
type Provider interface {
	// LatestBlock returns the latest block number, potentially from cache
	LatestBlock(ctx context.Context) (uint64, error)

	// SafeBlock returns the newest block with the configured number of confirmations
	SafeBlock(ctx context.Context) (uint64, error)

	// BlockTimestamp returns the unix timestamp of a block, potentially from cache
	BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)

	// Forget drops cached timestamps of blocks below blockNumber
	Forget(blockNumber uint64)
}

// Fetcher reads block information from the chain
type Fetcher interface {
	FetchLatestBlock(ctx context.Context) (uint64, error)
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)
}

// Config holds configuration for the Provider
type Config struct {
	// TTL is how long the latest block number is cached
	TTL time.Duration

	// StaleWindow is how long a cached head is served when fetching fails
	StaleWindow time.Duration

	// Confirmations is how far SafeBlock trails the head
	Confirmations uint64
}

type head struct {
	number    uint64
	fetchedAt time.Time
}

type provider struct {
	fetcher Fetcher
	config  Config
	clock   adapter.Clock

	mu   sync.RWMutex
	head *head

	// timestamps of confirmed blocks never change, so entries only leave through Forget
	timestamps *xsync.Map[uint64, int64]
	inflight   singleflight.Group
}

// NewProvider creates a Provider backed by fetcher
func NewProvider(fetcher Fetcher, config Config, clock adapter.Clock) Provider {
	return &provider{
		fetcher:    fetcher,
		config:     config,
		clock:      clock,
		timestamps: xsync.NewMap[uint64, int64](),
	}
}

func (p *provider) LatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()
	if cached != nil && now.Sub(cached.fetchedAt) < p.config.TTL {
		return cached.number, nil
	}

	number, err := p.fetcher.FetchLatestBlock(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.fetchedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Serving stale head after fetch failure",
				zap.Uint64("block_number", cached.number),
				zap.Error(err))
			return cached.number, nil
		}
		return 0, fmt.Errorf("failed to fetch latest block: %w", err)
	}

	p.mu.Lock()
	// a slower concurrent fetch must not move the head backwards
	if p.head == nil || number >= p.head.number {
		p.head = &head{number: number, fetchedAt: now}
	}
	p.mu.Unlock()

	return number, nil
}

func (p *provider) SafeBlock(ctx context.Context) (uint64, error) {
	latest, err := p.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	if latest < p.config.Confirmations {
		return 0, nil
	}
	return latest - p.config.Confirmations, nil
}

func (p *provider) BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	if ts, ok := p.timestamps.Load(blockNumber); ok {
		return ts, nil
	}

	v, err, _ := p.inflight.Do(strconv.FormatUint(blockNumber, 10), func() (interface{}, error) {
		ts, err := p.fetcher.FetchBlockTimestamp(ctx, blockNumber)
		if err != nil {
			return int64(0), err
		}
		p.timestamps.Store(blockNumber, ts)
		return ts, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch timestamp of block %d: %w", blockNumber, err)
	}

	return v.(int64), nil
}

func (p *provider) Forget(blockNumber uint64) {
	p.timestamps.Range(func(n uint64, _ int64) bool {
		if n < blockNumber {
			p.timestamps.Delete(n)
		}
		return true
	})
}
