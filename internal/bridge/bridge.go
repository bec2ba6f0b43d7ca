package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/dispatcher"
	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/messaging"
	jsprovider "github.com/sokos-io/nft-indexer/internal/providers/jetstream"
)

// Config holds the configuration for the event bridge
type Config struct {
	URL            string
	StreamName     string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	MaxDeliver     int
	// MaxAckPending bounds the events delivered but not yet acknowledged
	MaxAckPending int
	// RetryDelay is how long a failed event waits before redelivery
	RetryDelay time.Duration
	// DrainTimeout bounds how long Close waits for pending acks to flush
	DrainTimeout time.Duration
}

const defaultDrainTimeout = 10 * time.Second

// Bridge feeds events from the stream to the dispatcher
type Bridge interface {
	// Run consumes until ctx is done
	Run(ctx context.Context) error
	// Close drains the connection and releases resources
	Close()
}

type bridge struct {
	nc         adapter.NatsConn
	js         adapter.JetStream
	dispatcher dispatcher.Dispatcher
	json       adapter.JSON
	config     Config
}

// NewBridge connects to NATS. The dispatcher is not closed by the bridge.
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	disp dispatcher.Dispatcher,
	jsonAdapter adapter.JSON,
) (Bridge, error) {
	nc, js, err := natsJS.Connect(cfg.URL, jsprovider.ConnectOptions(cfg.ConnectionName, cfg.MaxReconnects, cfg.ReconnectWait)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &bridge{
		nc:         nc,
		js:         js,
		dispatcher: disp,
		json:       jsonAdapter,
		config:     cfg,
	}, nil
}

// Run starts the event bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting event bridge", zap.String("stream", b.config.StreamName), zap.String("consumer", b.config.ConsumerName))

	if err := jsprovider.EnsureStream(ctx, b.js, jsprovider.Config{StreamName: b.config.StreamName}); err != nil {
		return err
	}

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWaitTimeout,
		MaxDeliver:    b.config.MaxDeliver,
		MaxAckPending: b.config.MaxAckPending,
		FilterSubject: messaging.SubjectFilter(),
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved",
		zap.String("consumer", consumerInfo.Name),
		zap.Uint64("pending", consumerInfo.NumPending))

	// messages are delivered one at a time, so events reach the dispatcher in stream order
	sub, err := consumer.Consume(func(msg adapter.Message) {
		b.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	<-ctx.Done()
	logger.InfoCtx(ctx, "Shutting down event bridge")
	sub.Drain()
	<-sub.Closed()

	return ctx.Err()
}

func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	var delivered uint64
	if meta, err := msg.Metadata(); err == nil {
		delivered = meta.NumDelivered
	}

	var event domain.Event
	if err := b.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err),
			zap.String("subject", msg.Subject()))
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	b.dispatcher.Submit(ctx, &event, func(err error) {
		b.settle(ctx, msg, &event, delivered, err)
	})
}

// settle acknowledges a message according to the outcome of its event
func (b *bridge) settle(ctx context.Context, msg adapter.Message, event *domain.Event, delivered uint64, err error) {
	if err == nil {
		if err := msg.Ack(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"), zap.String("event_id", event.ID()))
		}
		return
	}

	if ctx.Err() != nil {
		// shutting down: leave the message for redelivery
		_ = msg.Nak()
		return
	}

	if !retryable(err) {
		logger.ErrorCtx(ctx, err,
			zap.String("message", "Dropping event"),
			zap.String("event_id", event.ID()),
			zap.String("event_type", string(event.Type)))
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	logger.WarnCtx(ctx, "Event failed, scheduling redelivery",
		zap.String("event_id", event.ID()),
		zap.Uint64("delivered", delivered),
		zap.Error(err))
	if err := msg.NakWithDelay(b.config.RetryDelay); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
	}
}

// retryable reports whether redelivering the event can succeed. A transfer of
// an unminted token is retried: its mint may itself be waiting for redelivery.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrNftNotFound) {
		return true
	}
	return !domain.IsPermanent(err)
}

// Close drains the connection so acks of settled events reach the server,
// then waits for the drain to finish
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}

	if err := b.nc.Drain(); err != nil {
		logger.Warn("Failed to drain NATS connection", zap.Error(err))
		b.nc.Close()
		return
	}

	timeout := b.config.DrainTimeout
	if timeout <= 0 {
		timeout = defaultDrainTimeout
	}
	deadline := time.Now().Add(timeout)
	for !b.nc.IsClosed() {
		if time.Now().After(deadline) {
			logger.Warn("NATS drain timed out", zap.Duration("timeout", timeout))
			b.nc.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
