package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/bridge"
	"github.com/sokos-io/nft-indexer/internal/config"
	"github.com/sokos-io/nft-indexer/internal/dispatcher"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/metadata"
	"github.com/sokos-io/nft-indexer/internal/providers/ethereum"
	"github.com/sokos-io/nft-indexer/internal/ratelimit"
	"github.com/sokos-io/nft-indexer/internal/registry"
	"github.com/sokos-io/nft-indexer/internal/store"
	"github.com/sokos-io/nft-indexer/internal/uri"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Service:         "indexer",
		Environment:     cfg.Environment,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Indexer")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()
	httpClient := adapter.NewHTTPClient(adapter.HTTPClientConfig{
		Timeout:         cfg.Metadata.HTTPTimeout,
		MaxRetryElapsed: time.Minute,
	})

	// Connect to every configured chain
	ethDialer := adapter.NewEthClientDialer()
	clients := make(ethereum.Clients, len(cfg.Chains))
	baseURLs := make(map[uint64]string, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		client, err := ethereum.Dial(ctx, ethDialer, chain.ChainID, chain.RPCURL)
		if err != nil {
			logger.Fatal("Failed to dial chain", zap.Error(err), zap.Uint64("chain_id", chain.ChainID))
		}
		clients[chain.ChainID] = client
		if chain.MetadataAPIURL != "" {
			baseURLs[chain.ChainID] = chain.MetadataAPIURL
		}
	}
	defer clients.Close()
	logger.InfoCtx(ctx, "Connected to chains", zap.Int("count", len(clients)))

	// Metadata cache, disabled in development so edits to metadata show up immediately
	var cache metadata.Cache
	if cfg.MetadataCacheEnabled() {
		cache, err = metadata.NewSQLiteCache(cfg.Metadata.CachePath, jsonAdapter)
		if err != nil {
			logger.Fatal("Failed to open metadata cache", zap.Error(err), zap.String("path", cfg.Metadata.CachePath))
		}
		logger.InfoCtx(ctx, "Opened metadata cache", zap.String("path", cfg.Metadata.CachePath))
	} else {
		cache = metadata.NewNopCache()
		logger.WarnCtx(ctx, "Metadata cache disabled")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error(err, zap.String("message", "Failed to close metadata cache"))
		}
	}()

	// Metadata API rate limiter, shared between replicas when redis is configured
	limiterCfg := ratelimit.Config{
		RequestsPerSecond: cfg.Metadata.APIRateLimit,
		Burst:             cfg.Metadata.APIRateBurst,
	}
	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		redisClient := adapter.NewRedisClient(adapter.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		limiter = ratelimit.NewRedisLimiter(limiterCfg, adapter.NewRedisRateLimiter(redisClient), clockAdapter)
	} else {
		limiter = ratelimit.NewLocalLimiter(limiterCfg)
	}

	resolver := metadata.NewResolver(
		cache,
		metadata.NewConsoleSource(httpClient, jsonAdapter, limiter, baseURLs),
		metadata.NewOnChainSource(clients, uri.NewFetcher(httpClient, jsonAdapter, uri.Config{
			IPFSGateways: cfg.Metadata.IPFSGateways,
		})),
	)
	registrar := registry.NewRegistrar(dataStore)

	eventDispatcher := dispatcher.NewDispatcher(
		dataStore,
		dispatcher.DefaultHandlers(resolver, registrar),
		dispatcher.Config{
			PoolSize:    cfg.Worker.WorkerPoolSize,
			QueueSize:   cfg.Worker.WorkerQueueSize,
			MaxInFlight: int64(cfg.Worker.MaxInFlight),
		})

	eventBridge, err := bridge.NewBridge(
		bridge.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			ConsumerName:   cfg.NATS.ConsumerName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			AckWaitTimeout: cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
			MaxAckPending:  cfg.NATS.MaxAckPending,
			RetryDelay:     cfg.NATS.RetryDelay,
			DrainTimeout:   cfg.NATS.DrainTimeout,
		},
		natsJS,
		eventDispatcher,
		jsonAdapter,
	)
	if err != nil {
		logger.Fatal("Failed to create event bridge", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Event bridge created", zap.String("stream", cfg.NATS.StreamName), zap.String("consumer", cfg.NATS.ConsumerName))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- eventBridge.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		err = <-errCh
	case err = <-errCh:
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, zap.String("component", "bridge"))
	}

	// drain in-flight events before closing the connection that acknowledges them
	eventDispatcher.Close()
	eventBridge.Close()

	logger.Info("Indexer stopped")
}
