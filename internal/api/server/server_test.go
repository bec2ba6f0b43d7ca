package server_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/api/middleware"
	"github.com/sokos-io/nft-indexer/internal/api/server"
	"github.com/sokos-io/nft-indexer/internal/mocks"
)

func TestRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := server.Router(false, mocks.NewMockStore(ctrl))

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.REQUEST_ID_HEADER))
	})

	t.Run("unknown route", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid nft id never reaches the store", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nfts/not-an-id", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	port := freePort(t)
	srv := server.New(server.Config{
		Host:        "127.0.0.1",
		Port:        port,
		ReadTimeout: time.Second,
	}, mocks.NewMockStore(ctrl))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, time.Second) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ctrl := gomock.NewController(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	srv := server.New(server.Config{
		Host: "127.0.0.1",
		Port: l.Addr().(*net.TCPAddr).Port,
	}, mocks.NewMockStore(ctrl))

	err = srv.Run(context.Background(), time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, http.ErrServerClosed))
}
