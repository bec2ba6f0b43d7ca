package metadata

import (
	"context"

	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/logger"
)

// Resolver resolves token metadata through the cache and the configured tiers
//
//go:generate mockgen -source=resolver.go -destination=../mocks/metadata_resolver.go -package=mocks -mock_names=Resolver=MockMetadataResolver
type Resolver interface {
	// Resolve never fails. When every tier misses it returns Unknown().
	Resolve(ctx context.Context, ref TokenRef) *Metadata
}

type resolver struct {
	cache   Cache
	sources []Source
}

// NewResolver creates a resolver trying sources in order after the cache.
// Pass NewNopCache to disable caching.
func NewResolver(cache Cache, sources ...Source) Resolver {
	return &resolver{
		cache:   cache,
		sources: sources,
	}
}

func (r *resolver) Resolve(ctx context.Context, ref TokenRef) *Metadata {
	key := ref.CacheKey()

	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		logger.WarnCtx(ctx, "Metadata cache read failed", zap.String("key", key), zap.Error(err))
	} else if cached != nil {
		logger.DebugCtx(ctx, "Metadata cache hit", zap.String("key", key))
		return cached
	}

	m, source := firstSuccess(ctx, ref, r.sources)
	if m == nil {
		logger.WarnCtx(ctx, "All metadata tiers failed, using unknown metadata", zap.Stringer("token", ref))
		return Unknown()
	}

	logger.DebugCtx(ctx, "Resolved metadata", zap.Stringer("token", ref), zap.String("source", source))
	if err := r.cache.Set(ctx, key, m); err != nil {
		logger.WarnCtx(ctx, "Metadata cache write failed", zap.String("key", key), zap.Error(err))
	}

	return m
}

// firstSuccess returns the first record produced by sources, in order.
// Tier failures are logged and never abort the chain.
func firstSuccess(ctx context.Context, ref TokenRef, sources []Source) (*Metadata, string) {
	for _, source := range sources {
		if ctx.Err() != nil {
			return nil, ""
		}

		m, err := source.Fetch(ctx, ref)
		if err != nil {
			logger.WarnCtx(ctx, "Metadata tier failed",
				zap.String("source", source.Name()),
				zap.Stringer("token", ref),
				zap.Error(err))
			continue
		}
		if m != nil {
			return m, source.Name()
		}
	}
	return nil, ""
}
