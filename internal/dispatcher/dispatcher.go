package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/store"
)

const (
	DEFAULT_POOL_SIZE     = 16
	DEFAULT_QUEUE_SIZE    = 1024
	DEFAULT_MAX_IN_FLIGHT = 4096
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// Config holds the configuration for the event dispatcher
type Config struct {
	// PoolSize is the number of events handled concurrently
	PoolSize int
	// QueueSize bounds the events ready to run but waiting for a worker
	QueueSize int
	// MaxInFlight bounds the events submitted and not yet completed, including
	// those waiting behind an earlier event on the same key
	MaxInFlight int64
}

// Dispatcher routes decoded events to their handler.
//
// Events sharing an entity key are applied in submission order. Events with
// disjoint keys run concurrently.
//
//go:generate mockgen -source=dispatcher.go -destination=../mocks/dispatcher.go -package=mocks -mock_names=Dispatcher=MockDispatcher
type Dispatcher interface {
	// Submit queues an event and returns once its position in every key queue is fixed.
	// done is called exactly once with the outcome.
	Submit(ctx context.Context, ev *domain.Event, done func(error))

	// Process handles an event and waits for the outcome
	Process(ctx context.Context, ev *domain.Event) error

	// Close waits for submitted events and stops the workers
	Close()
}

type dispatcher struct {
	store    store.Store
	handlers map[domain.EventType]Handler
	locker   *KeyLocker
	pool     pond.Pool
	sem      *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher for the given handlers
func NewDispatcher(st store.Store, handlers map[domain.EventType]Handler, cfg Config) Dispatcher {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DEFAULT_POOL_SIZE
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DEFAULT_QUEUE_SIZE
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DEFAULT_MAX_IN_FLIGHT
	}

	return &dispatcher{
		store:    st,
		handlers: handlers,
		locker:   NewKeyLocker(),
		pool:     pond.NewPool(cfg.PoolSize, pond.WithQueueSize(cfg.QueueSize)),
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
	}
}

func (d *dispatcher) Submit(ctx context.Context, ev *domain.Event, done func(error)) {
	handler, ok := d.handlers[ev.Type]
	if !ok {
		done(fmt.Errorf("%w: %s", domain.ErrUnknownEventType, ev.Type))
		return
	}

	keys, err := handler.Keys(ev)
	if err != nil {
		done(err)
		return
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		done(err)
		return
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.sem.Release(1)
		done(ErrDispatcherClosed)
		return
	}
	tickets := d.locker.Enqueue(keys)
	d.wg.Add(1)
	d.mu.RUnlock()

	finish := func(err error) {
		tickets.Release()
		d.sem.Release(1)
		d.wg.Done()
		done(err)
	}

	go func() {
		if err := tickets.Wait(ctx); err != nil {
			finish(err)
			return
		}

		err := d.pool.Go(func() {
			var err error
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic while handling %s: %v", ev.ID(), r)
					logger.ErrorCtx(ctx, err, zap.String("event_type", string(ev.Type)))
				}
				finish(err)
			}()
			err = d.execute(ctx, handler, ev)
		})
		if err != nil {
			finish(err)
		}
	}()
}

func (d *dispatcher) Process(ctx context.Context, ev *domain.Event) error {
	result := make(chan error, 1)
	d.Submit(ctx, ev, func(err error) {
		result <- err
	})

	// the handler keeps running when ctx ends; its tickets stay held until it returns
	return <-result
}

func (d *dispatcher) execute(ctx context.Context, handler Handler, ev *domain.Event) error {
	eventID := ev.ID()

	processed, err := d.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	if processed {
		logger.DebugCtx(ctx, "Event already processed", zap.String("event_id", eventID))
		return nil
	}

	rs, err := handler.Load(ctx, ev, d.store)
	if err != nil {
		return d.failed(ctx, ev, "load", err)
	}

	changes, err := handler.Handle(ctx, ev, rs)
	if err != nil {
		return d.failed(ctx, ev, "handle", err)
	}

	if err := d.store.Apply(ctx, store.ProcessedEvent{
		ID:          eventID,
		ChainID:     ev.ChainID,
		BlockNumber: ev.BlockNumber,
	}, changes); err != nil {
		return d.failed(ctx, ev, "apply", err)
	}

	logger.DebugCtx(ctx, "Event processed",
		zap.String("event_id", eventID),
		zap.String("event_type", string(ev.Type)))

	return nil
}

func (d *dispatcher) failed(ctx context.Context, ev *domain.Event, phase string, err error) error {
	if errors.Is(err, domain.ErrDataIntegrity) {
		logger.ErrorCtx(ctx, err,
			zap.String("event_id", ev.ID()),
			zap.String("event_type", string(ev.Type)),
			zap.Uint64("block_number", ev.BlockNumber),
			zap.String("phase", phase))
	}
	return fmt.Errorf("failed to %s %s event %s: %w", phase, ev.Type, ev.ID(), err)
}

func (d *dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()

	logger.Info("Stopping dispatcher",
		zap.Uint64("submitted", d.pool.SubmittedTasks()),
		zap.Uint64("successful", d.pool.SuccessfulTasks()),
		zap.Uint64("failed", d.pool.FailedTasks()))

	d.pool.StopAndWait()
}
