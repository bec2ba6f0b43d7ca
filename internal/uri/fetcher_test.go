package uri_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/mocks"
	"github.com/sokos-io/nft-indexer/internal/uri"
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

func hasName(data map[string]interface{}) bool {
	name, ok := data["name"].(string)
	return ok && name != ""
}

func TestFetcher_FetchJSON(t *testing.T) {
	gateways := []string{"https://ipfs.io", "https://cloudflare-ipfs.com", "https://gateway.pinata.cloud"}

	tests := []struct {
		name            string
		uri             string
		setupMocks      func(*mocks.MockHTTPClient)
		expectedName    string
		expectedGateway string
		expectedURL     string
		expectedErr     string
	}{
		{
			name: "first gateway serves the document",
			uri:  "ipfs://QmMeta/1.json",
			setupMocks: func(mockHTTP *mocks.MockHTTPClient) {
				mockHTTP.EXPECT().
					GetBytes(gomock.Any(), "https://ipfs.io/ipfs/QmMeta/1.json").
					Return([]byte(`{"name":"Art #1"}`), nil)
			},
			expectedName:    "Art #1",
			expectedGateway: "https://ipfs.io",
			expectedURL:     "https://ipfs.io/ipfs/QmMeta/1.json",
		},
		{
			name: "failing and nameless gateways are skipped in order",
			uri:  "ipfs://QmMeta/1.json",
			setupMocks: func(mockHTTP *mocks.MockHTTPClient) {
				gomock.InOrder(
					mockHTTP.EXPECT().
						GetBytes(gomock.Any(), "https://ipfs.io/ipfs/QmMeta/1.json").
						Return(nil, &adapter.StatusError{URL: "https://ipfs.io/ipfs/QmMeta/1.json", StatusCode: 504}),
					mockHTTP.EXPECT().
						GetBytes(gomock.Any(), "https://cloudflare-ipfs.com/ipfs/QmMeta/1.json").
						Return([]byte(`{"description":"no name"}`), nil),
					mockHTTP.EXPECT().
						GetBytes(gomock.Any(), "https://gateway.pinata.cloud/ipfs/QmMeta/1.json").
						Return([]byte(`{"name":"Art #1"}`), nil),
				)
			},
			expectedName:    "Art #1",
			expectedGateway: "https://gateway.pinata.cloud",
			expectedURL:     "https://gateway.pinata.cloud/ipfs/QmMeta/1.json",
		},
		{
			name: "gateway url is re-probed through configured gateways",
			uri:  "https://some.gateway.xyz/ipfs/QmMeta",
			setupMocks: func(mockHTTP *mocks.MockHTTPClient) {
				mockHTTP.EXPECT().
					GetBytes(gomock.Any(), "https://ipfs.io/ipfs/QmMeta").
					Return([]byte(`{"name":"Moved"}`), nil)
			},
			expectedName:    "Moved",
			expectedGateway: "https://ipfs.io",
			expectedURL:     "https://ipfs.io/ipfs/QmMeta",
		},
		{
			name: "all gateways fail",
			uri:  "ipfs://QmMissing",
			setupMocks: func(mockHTTP *mocks.MockHTTPClient) {
				mockHTTP.EXPECT().
					GetBytes(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("timeout")).
					Times(3)
			},
			expectedErr: "no acceptable document",
		},
		{
			name: "plain http fetched directly",
			uri:  "https://api.example.com/token/7",
			setupMocks: func(mockHTTP *mocks.MockHTTPClient) {
				mockHTTP.EXPECT().
					GetBytes(gomock.Any(), "https://api.example.com/token/7").
					Return([]byte(`{"name":"Seven"}`), nil)
			},
			expectedName: "Seven",
			expectedURL:  "https://api.example.com/token/7",
		},
		{
			name: "plain http invalid json",
			uri:  "https://api.example.com/token/7",
			setupMocks: func(mockHTTP *mocks.MockHTTPClient) {
				mockHTTP.EXPECT().
					GetBytes(gomock.Any(), "https://api.example.com/token/7").
					Return([]byte(`<html>`), nil)
			},
			expectedErr: "failed to parse JSON",
		},
		{
			name:         "data uri decoded inline",
			uri:          "data:application/json;base64,eyJuYW1lIjoiQXJ0In0=",
			expectedName: "Art",
		},
		{
			name:        "unsupported scheme",
			uri:         "ar://abc",
			expectedErr: "unsupported URI scheme",
		},
		{
			name:        "empty uri",
			uri:         "  ",
			expectedErr: "empty uri",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockHTTP := mocks.NewMockHTTPClient(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(mockHTTP)
			}

			fetcher := uri.NewFetcher(mockHTTP, adapter.NewJSON(), uri.Config{IPFSGateways: gateways})
			doc, err := fetcher.FetchJSON(context.Background(), tt.uri, hasName)

			if tt.expectedErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, doc.Data["name"])
			assert.Equal(t, tt.expectedGateway, doc.Gateway)
			assert.Equal(t, tt.expectedURL, doc.URL)
		})
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := uri.NewFetcher(mocks.NewMockHTTPClient(ctrl), adapter.NewJSON(), uri.Config{IPFSGateways: []string{"https://ipfs.io"}})
	_, err := fetcher.FetchJSON(ctx, "ipfs://QmMeta", hasName)
	assert.ErrorIs(t, err, context.Canceled)
}
