package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/logger"
)

// Limiter blocks until a request against key is allowed
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit.go -package=mocks -mock_names=Limiter=MockLimiter
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Config holds the per-key request budget
type Config struct {
	RequestsPerSecond float64
	Burst             int
	// KeyPrefix namespaces redis keys
	KeyPrefix string
	// RedisRetryAfter is how long the limiter stays on the local bucket after a redis error
	RedisRetryAfter time.Duration
}

func (c *Config) setDefaults() {
	if c.Burst <= 0 {
		c.Burst = int(math.Max(1, math.Ceil(c.RequestsPerSecond)))
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "nft-indexer:limiter:"
	}
	if c.RedisRetryAfter <= 0 {
		c.RedisRetryAfter = 30 * time.Second
	}
}

// nopLimiter never blocks
type nopLimiter struct{}

func (nopLimiter) Wait(context.Context, string) error { return nil }

// localLimiter keeps one token bucket per key in process memory
type localLimiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter creates a process local limiter. A non-positive rate disables limiting.
func NewLocalLimiter(cfg Config) Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nopLimiter{}
	}
	cfg.setDefaults()
	return newLocalLimiter(cfg)
}

func newLocalLimiter(cfg Config) *localLimiter {
	return &localLimiter{cfg: cfg, buckets: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Wait(ctx)
}

// redisLimiter shares the budget across replicas and falls back to a local bucket while redis is failing
type redisLimiter struct {
	cfg         Config
	limit       redis_rate.Limit
	distributed adapter.RedisRateLimiter
	local       *localLimiter
	clock       adapter.Clock
	// downUntil holds the unix nano time until which redis is skipped
	downUntil atomic.Int64
}

// NewRedisLimiter creates a distributed limiter. A non-positive rate disables limiting.
func NewRedisLimiter(cfg Config, distributed adapter.RedisRateLimiter, clock adapter.Clock) Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nopLimiter{}
	}
	cfg.setDefaults()

	return &redisLimiter{
		cfg: cfg,
		limit: redis_rate.Limit{
			Rate:   int(math.Max(1, math.Round(cfg.RequestsPerSecond))),
			Burst:  cfg.Burst,
			Period: time.Second,
		},
		distributed: distributed,
		local:       newLocalLimiter(cfg),
		clock:       clock,
	}
}

func (l *redisLimiter) Wait(ctx context.Context, key string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if l.clock.Now().UnixNano() < l.downUntil.Load() {
			return l.local.Wait(ctx, key)
		}

		res, err := l.distributed.Allow(ctx, fmt.Sprintf("%s%s", l.cfg.KeyPrefix, key), l.limit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Redis rate limiter unavailable, falling back to local limiter",
				zap.String("key", key),
				zap.Error(err),
			)
			l.downUntil.Store(l.clock.Now().Add(l.cfg.RedisRetryAfter).UnixNano())
			return l.local.Wait(ctx, key)
		}

		if res.Allowed > 0 {
			return nil
		}

		// spread retries over 50-150% of the advertised delay
		jitter := time.Duration(float64(res.RetryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
		logger.Debug("Rate limit reached, waiting", zap.String("key", key), zap.Duration("retry_after", jitter))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(jitter):
		}
	}
}
