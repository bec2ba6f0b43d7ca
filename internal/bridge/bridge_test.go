package bridge_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/bridge"
	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/logger"
	mockspkg "github.com/sokos-io/nft-indexer/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type testBridgeMocks struct {
	ctrl           *gomock.Controller
	natsJS         *mockspkg.MockNatsJetStream
	natsConn       *mockspkg.MockNatsConn
	jetStream      *mockspkg.MockJetStream
	consumer       *mockspkg.MockNatsConsumer
	consumeContext *mockspkg.MockConsumeContext
	dispatcher     *mockspkg.MockDispatcher
}

func setupTestBridge(t *testing.T) *testBridgeMocks {
	ctrl := gomock.NewController(t)

	return &testBridgeMocks{
		ctrl:           ctrl,
		natsJS:         mockspkg.NewMockNatsJetStream(ctrl),
		natsConn:       mockspkg.NewMockNatsConn(ctrl),
		jetStream:      mockspkg.NewMockJetStream(ctrl),
		consumer:       mockspkg.NewMockNatsConsumer(ctrl),
		consumeContext: mockspkg.NewMockConsumeContext(ctrl),
		dispatcher:     mockspkg.NewMockDispatcher(ctrl),
	}
}

var testConfig = bridge.Config{
	URL:            "nats://localhost:4222",
	StreamName:     "EVENTS",
	ConsumerName:   "indexer",
	MaxReconnects:  10,
	ReconnectWait:  time.Second,
	ConnectionName: "test-bridge",
	AckWaitTimeout: 30 * time.Second,
	MaxDeliver:     5,
	MaxAckPending:  1000,
	RetryDelay:     5 * time.Second,
	DrainTimeout:   50 * time.Millisecond,
}

func newBridge(t *testing.T, mocks *testBridgeMocks) bridge.Bridge {
	mocks.natsJS.EXPECT().
		Connect(testConfig.URL, gomock.Any()).
		Return(mocks.natsConn, mocks.jetStream, nil)

	b, err := bridge.NewBridge(testConfig, mocks.natsJS, mocks.dispatcher, adapter.NewJSON())
	require.NoError(t, err)
	return b
}

func TestBridge_NewBridge_ConnectError(t *testing.T) {
	mocks := setupTestBridge(t)

	mocks.natsJS.EXPECT().
		Connect(gomock.Any(), gomock.Any()).
		Return(nil, nil, assert.AnError)

	b, err := bridge.NewBridge(testConfig, mocks.natsJS, mocks.dispatcher, adapter.NewJSON())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, b)
}

func TestBridge_Run_ConsumerError(t *testing.T) {
	mocks := setupTestBridge(t)
	b := newBridge(t, mocks)

	mocks.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)
	mocks.jetStream.EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), "EVENTS", gomock.Any()).
		Return(nil, errors.New("stream not found"))

	err := b.Run(context.Background())
	assert.ErrorContains(t, err, "stream not found")
}

// runBridge starts the bridge and returns the message handler it registered
func runBridge(t *testing.T, mocks *testBridgeMocks, b bridge.Bridge) (adapter.MessageHandler, context.CancelFunc, <-chan error) {
	handlerCh := make(chan adapter.MessageHandler, 1)
	closed := make(chan struct{})

	mocks.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)
	mocks.jetStream.EXPECT().
		CreateOrUpdateConsumer(gomock.Any(), "EVENTS", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, cfg jetstream.ConsumerConfig) (adapter.Consumer, error) {
			assert.Equal(t, "indexer", cfg.Durable)
			assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
			assert.Equal(t, "events.>", cfg.FilterSubject)
			assert.Equal(t, 5, cfg.MaxDeliver)
			return mocks.consumer, nil
		})
	mocks.consumer.EXPECT().Info(gomock.Any()).Return(&jetstream.ConsumerInfo{Name: "indexer"}, nil)
	mocks.consumer.EXPECT().
		Consume(gomock.Any()).
		DoAndReturn(func(handler adapter.MessageHandler, _ ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
			handlerCh <- handler
			return mocks.consumeContext, nil
		})
	mocks.consumeContext.EXPECT().Drain().Do(func() { close(closed) })
	mocks.consumeContext.EXPECT().Closed().DoAndReturn(func() <-chan struct{} { return closed })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(ctx)
	}()

	select {
	case handler := <-handlerCh:
		return handler, cancel, errCh
	case <-time.After(time.Second):
		cancel()
		t.Fatal("consumer was not started")
		return nil, nil, nil
	}
}

func eventMessage(t *testing.T, mocks *testBridgeMocks, delivered uint64) (*mockspkg.MockJetStreamMessage, *domain.Event) {
	ev, err := domain.NewEvent(domain.EventTypeTransfer, 137, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", domain.TransferParams{
		From:    "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		To:      "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		TokenID: "1",
	})
	require.NoError(t, err)
	ev.TxHash = "0xabc"
	ev.BlockNumber = 10

	data, err := adapter.NewJSON().Marshal(ev)
	require.NoError(t, err)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Metadata().Return(&jetstream.MsgMetadata{NumDelivered: delivered}, nil).AnyTimes()
	msg.EXPECT().Data().Return(data).AnyTimes()
	msg.EXPECT().Subject().Return("events.137.transfer").AnyTimes()
	return msg, ev
}

func expectSubmit(mocks *testBridgeMocks, want *domain.Event, outcome error) {
	mocks.dispatcher.EXPECT().
		Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, ev *domain.Event, done func(error)) {
			if want != nil && ev.ID() != want.ID() {
				done(fmt.Errorf("unexpected event %s", ev.ID()))
				return
			}
			done(outcome)
		})
}

func TestBridge_Run_AcksProcessedEvent(t *testing.T) {
	mocks := setupTestBridge(t)
	b := newBridge(t, mocks)
	handler, cancel, errCh := runBridge(t, mocks, b)

	msg, ev := eventMessage(t, mocks, 1)
	expectSubmit(mocks, ev, nil)
	msg.EXPECT().Ack().Return(nil)

	handler(msg)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestBridge_Run_Settlement(t *testing.T) {
	tests := []struct {
		name    string
		outcome error
		expect  func(msg *mockspkg.MockJetStreamMessage)
	}{
		{
			name:    "transient failure is redelivered later",
			outcome: errors.New("connection reset"),
			expect: func(msg *mockspkg.MockJetStreamMessage) {
				msg.EXPECT().NakWithDelay(5 * time.Second).Return(nil)
			},
		},
		{
			name:    "unminted transfer is redelivered later",
			outcome: fmt.Errorf("%w: %w", domain.ErrDataIntegrity, domain.ErrNftNotFound),
			expect: func(msg *mockspkg.MockJetStreamMessage) {
				msg.EXPECT().NakWithDelay(5 * time.Second).Return(nil)
			},
		},
		{
			name:    "corrupt listing state is dropped",
			outcome: fmt.Errorf("%w: listing 1 quantity", domain.ErrDataIntegrity),
			expect: func(msg *mockspkg.MockJetStreamMessage) {
				msg.EXPECT().Term().Return(nil)
			},
		},
		{
			name:    "unknown type is dropped",
			outcome: fmt.Errorf("%w: approval", domain.ErrUnknownEventType),
			expect: func(msg *mockspkg.MockJetStreamMessage) {
				msg.EXPECT().Term().Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := setupTestBridge(t)
			b := newBridge(t, mocks)
			handler, cancel, errCh := runBridge(t, mocks, b)

			msg, ev := eventMessage(t, mocks, 2)
			expectSubmit(mocks, ev, tt.outcome)
			tt.expect(msg)

			handler(msg)

			cancel()
			<-errCh
		})
	}
}

func TestBridge_Run_TerminatesUndecodableMessage(t *testing.T) {
	mocks := setupTestBridge(t)
	b := newBridge(t, mocks)
	handler, cancel, errCh := runBridge(t, mocks, b)

	msg := mockspkg.NewMockJetStreamMessage(mocks.ctrl)
	msg.EXPECT().Metadata().Return(&jetstream.MsgMetadata{NumDelivered: 1}, nil)
	msg.EXPECT().Data().Return([]byte("{not json"))
	msg.EXPECT().Subject().Return("events.137.transfer")
	msg.EXPECT().Term().Return(nil)

	handler(msg)

	cancel()
	<-errCh
}

func TestBridge_Close(t *testing.T) {
	t.Run("waits for the drain to finish", func(t *testing.T) {
		mocks := setupTestBridge(t)
		b := newBridge(t, mocks)

		gomock.InOrder(
			mocks.natsConn.EXPECT().Drain().Return(nil),
			mocks.natsConn.EXPECT().IsClosed().Return(false),
			mocks.natsConn.EXPECT().IsClosed().Return(true),
		)
		b.Close()
	})

	t.Run("drain error closes immediately", func(t *testing.T) {
		mocks := setupTestBridge(t)
		b := newBridge(t, mocks)

		mocks.natsConn.EXPECT().Drain().Return(errors.New("nats: connection closed"))
		mocks.natsConn.EXPECT().Close()
		b.Close()
	})

	t.Run("drain timeout closes the connection", func(t *testing.T) {
		mocks := setupTestBridge(t)
		b := newBridge(t, mocks)

		mocks.natsConn.EXPECT().Drain().Return(nil)
		mocks.natsConn.EXPECT().IsClosed().Return(false).AnyTimes()
		mocks.natsConn.EXPECT().Close()

		start := time.Now()
		b.Close()
		assert.Less(t, time.Since(start), time.Second)
	})
}
