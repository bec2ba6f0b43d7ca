package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/block"
	"github.com/sokos-io/nft-indexer/internal/config"
	"github.com/sokos-io/nft-indexer/internal/emitter"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/providers/ethereum"
	"github.com/sokos-io/nft-indexer/internal/providers/jetstream"
	"github.com/sokos-io/nft-indexer/internal/registry"
	"github.com/sokos-io/nft-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadEmitterConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		Service:         "event-emitter",
		Environment:     cfg.Environment,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Event Emitter")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)
	registrar := registry.NewRegistrar(dataStore)

	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	natsPublisher, err := jetstream.NewPublisher(
		ctx,
		jetstream.Config{
			URL:             cfg.NATS.URL,
			StreamName:      cfg.NATS.StreamName,
			MaxReconnects:   cfg.NATS.MaxReconnects,
			ReconnectWait:   cfg.NATS.ReconnectWait,
			ConnectionName:  cfg.NATS.ConnectionName,
			DuplicateWindow: cfg.NATS.DuplicateWindow,
		}, natsJS, jsonAdapter)
	if err != nil {
		logger.Fatal("Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer natsPublisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	ethDialer := adapter.NewEthClientDialer()
	g, gctx := errgroup.WithContext(ctx)
	for _, chain := range cfg.Chains {
		client, err := ethereum.Dial(ctx, ethDialer, chain.ChainID, chain.RPCURL)
		if err != nil {
			logger.Fatal("Failed to dial chain", zap.Error(err), zap.Uint64("chain_id", chain.ChainID))
		}
		defer client.Close()

		blocks := block.NewProvider(client, block.Config{
			TTL:           chain.PollInterval,
			Confirmations: chain.Confirmations,
		}, clockAdapter)

		eventEmitter := emitter.NewEmitter(client, blocks, registrar, natsPublisher, dataStore, emitter.Config{
			ChainID:          chain.ChainID,
			FactoryAddresses: chain.FactoryAddresses,
			StartBlock:       chain.StartBlock,
			BatchSize:        chain.BatchSize,
			PollInterval:     chain.PollInterval,
		}, clockAdapter)

		g.Go(func() error {
			return eventEmitter.Run(gctx)
		})
		logger.InfoCtx(ctx, "Emitter started",
			zap.Uint64("chain_id", chain.ChainID),
			zap.Strings("factories", chain.FactoryAddresses))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, zap.String("component", "emitter"))
	}

	logger.Info("Event Emitter stopped")
}
