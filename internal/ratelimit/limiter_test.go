package ratelimit_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis_rate/v10"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/mocks"
	"github.com/sokos-io/nft-indexer/internal/ratelimit"
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

type testLimiterMocks struct {
	ctrl             *gomock.Controller
	redisRateLimiter *mocks.MockRedisRateLimiter
	clock            *mocks.MockClock
}

func setupTestLimiter(t *testing.T) *testLimiterMocks {
	ctrl := gomock.NewController(t)

	return &testLimiterMocks{
		ctrl:             ctrl,
		redisRateLimiter: mocks.NewMockRedisRateLimiter(ctrl),
		clock:            mocks.NewMockClock(ctrl),
	}
}

var testConfig = ratelimit.Config{
	RequestsPerSecond: 5,
	Burst:             5,
	KeyPrefix:         "test:",
	RedisRetryAfter:   time.Minute,
}

func TestLocalLimiter_DisabledWithoutRate(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(ratelimit.Config{})

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(context.Background(), "host"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLocalLimiter_BurstThenWait(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(ratelimit.Config{RequestsPerSecond: 10, Burst: 2})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "host"))
	require.NoError(t, limiter.Wait(ctx, "host"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, limiter.Wait(ctx, "host"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestLocalLimiter_KeysAreIndependent(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(ratelimit.Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "a.example"))
	require.NoError(t, limiter.Wait(ctx, "b.example"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLocalLimiter_ContextCanceled(t *testing.T) {
	limiter := ratelimit.NewLocalLimiter(ratelimit.Config{RequestsPerSecond: 0.1, Burst: 1})

	require.NoError(t, limiter.Wait(context.Background(), "host"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "host"))
}

func TestRedisLimiter_Allowed(t *testing.T) {
	tm := setupTestLimiter(t)
	limiter := ratelimit.NewRedisLimiter(testConfig, tm.redisRateLimiter, tm.clock)

	tm.clock.EXPECT().Now().Return(time.Unix(1700000000, 0))
	tm.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), "test:api.example", redis_rate.Limit{Rate: 5, Burst: 5, Period: time.Second}).
		Return(&redis_rate.Result{Allowed: 1, Remaining: 4}, nil)

	assert.NoError(t, limiter.Wait(context.Background(), "api.example"))
}

func TestRedisLimiter_DeniedThenAllowed(t *testing.T) {
	tm := setupTestLimiter(t)
	limiter := ratelimit.NewRedisLimiter(testConfig, tm.redisRateLimiter, tm.clock)

	tm.clock.EXPECT().Now().Return(time.Unix(1700000000, 0)).Times(2)

	fired := make(chan time.Time, 1)
	fired <- time.Unix(1700000001, 0)
	tm.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
		return fired
	})

	gomock.InOrder(
		tm.redisRateLimiter.EXPECT().
			Allow(gomock.Any(), "test:api.example", gomock.Any()).
			Return(&redis_rate.Result{Allowed: 0, RetryAfter: 200 * time.Millisecond}, nil),
		tm.redisRateLimiter.EXPECT().
			Allow(gomock.Any(), "test:api.example", gomock.Any()).
			Return(&redis_rate.Result{Allowed: 1}, nil),
	)

	assert.NoError(t, limiter.Wait(context.Background(), "api.example"))
}

func TestRedisLimiter_DeniedContextCanceled(t *testing.T) {
	tm := setupTestLimiter(t)
	limiter := ratelimit.NewRedisLimiter(testConfig, tm.redisRateLimiter, tm.clock)

	ctx, cancel := context.WithCancel(context.Background())

	tm.clock.EXPECT().Now().Return(time.Unix(1700000000, 0))
	tm.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	})
	tm.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&redis_rate.Result{Allowed: 0, RetryAfter: time.Second}, nil)

	assert.ErrorIs(t, limiter.Wait(ctx, "api.example"), context.Canceled)
}

func TestRedisLimiter_RedisFailureFallsBackToLocal(t *testing.T) {
	tm := setupTestLimiter(t)
	limiter := ratelimit.NewRedisLimiter(testConfig, tm.redisRateLimiter, tm.clock)

	now := time.Unix(1700000000, 0)
	// first call: check, then mark redis down
	tm.clock.EXPECT().Now().Return(now).Times(2)
	tm.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused")).
		Times(1)

	require.NoError(t, limiter.Wait(context.Background(), "api.example"))

	// within the retry window redis is skipped
	tm.clock.EXPECT().Now().Return(now.Add(30 * time.Second))
	require.NoError(t, limiter.Wait(context.Background(), "api.example"))

	// after the window redis is tried again
	tm.clock.EXPECT().Now().Return(now.Add(2 * time.Minute))
	tm.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&redis_rate.Result{Allowed: 1}, nil)
	require.NoError(t, limiter.Wait(context.Background(), "api.example"))
}

func TestRedisLimiter_DisabledWithoutRate(t *testing.T) {
	tm := setupTestLimiter(t)
	limiter := ratelimit.NewRedisLimiter(ratelimit.Config{}, tm.redisRateLimiter, tm.clock)

	// no expectations: neither redis nor the clock is touched
	assert.NoError(t, limiter.Wait(context.Background(), "api.example"))
}

func TestRedisLimiter_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := adapter.NewRedisClient(adapter.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	distributed := adapter.NewRedisRateLimiter(client)
	limiter := ratelimit.NewRedisLimiter(ratelimit.Config{
		RequestsPerSecond: 2,
		Burst:             2,
		KeyPrefix:         "test:",
	}, distributed, adapter.NewClock())

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx, "api.example"))
	require.NoError(t, limiter.Wait(ctx, "api.example"))

	res, err := distributed.Allow(ctx, "test:api.example", redis_rate.PerSecond(2))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// once redis goes away the local bucket takes over
	mr.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.NoError(t, limiter.Wait(ctx, "other.example"))
}
