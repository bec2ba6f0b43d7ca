package metadata_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/domain"
	"github.com/sokos-io/nft-indexer/internal/metadata"
	"github.com/sokos-io/nft-indexer/internal/mocks"
	"github.com/sokos-io/nft-indexer/internal/uri"
)

func TestOnChainSource_Fetch(t *testing.T) {
	erc1155Ref := metadata.TokenRef{
		Standard:     domain.StandardERC1155,
		ChainID:      137,
		TokenAddress: testToken,
		TokenID:      "255",
	}

	tests := []struct {
		name        string
		ref         metadata.TokenRef
		setupMocks  func(*mocks.MockTokenURIReader, *mocks.MockURIFetcher)
		expected    *metadata.Metadata
		errContains string
	}{
		{
			name: "ERC721 document served by an IPFS gateway",
			ref:  polygonRef,
			setupMocks: func(reader *mocks.MockTokenURIReader, fetcher *mocks.MockURIFetcher) {
				reader.EXPECT().
					TokenURI(gomock.Any(), uint64(137), domain.StandardERC721, testToken, "1").
					Return("ipfs://QmMeta/1.json", nil)
				fetcher.EXPECT().
					FetchJSON(gomock.Any(), "ipfs://QmMeta/1.json", gomock.Any()).
					Return(&uri.Document{
						Data: map[string]interface{}{
							"name":        "Sunset",
							"image":       "ipfs://QmImage/1.png",
							"description": "Golden hour",
							"attributes":  []interface{}{"a"},
						},
						URL:     "https://gateway.pinata.cloud/ipfs/QmMeta/1.json",
						Gateway: "https://gateway.pinata.cloud",
					}, nil)
			},
			expected: &metadata.Metadata{
				Image:       "https://gateway.pinata.cloud/ipfs/QmImage/1.png",
				Name:        "Sunset",
				TokenURL:    "ipfs://QmMeta/1.json",
				Description: "Golden hour",
				Attributes:  []interface{}{"a"},
				IsPhygital:  "false",
				Standard:    "ERC721",
				Supply:      "1",
			},
		},
		{
			name: "ERC1155 uri with id placeholder",
			ref:  erc1155Ref,
			setupMocks: func(reader *mocks.MockTokenURIReader, fetcher *mocks.MockURIFetcher) {
				reader.EXPECT().
					TokenURI(gomock.Any(), uint64(137), domain.StandardERC1155, testToken, "255").
					Return("https://api.example.com/{id}.json", nil)
				fetcher.EXPECT().
					FetchJSON(gomock.Any(), "https://api.example.com/00000000000000000000000000000000000000000000000000000000000000ff.json", gomock.Any()).
					Return(&uri.Document{
						Data: map[string]interface{}{
							"name":  "Edition",
							"image": "https://cdn.example.com/ff.png",
						},
						URL: "https://api.example.com/00000000000000000000000000000000000000000000000000000000000000ff.json",
					}, nil)
			},
			expected: &metadata.Metadata{
				Image:      "https://cdn.example.com/ff.png",
				Name:       "Edition",
				TokenURL:   "https://api.example.com/00000000000000000000000000000000000000000000000000000000000000ff.json",
				Attributes: []interface{}{},
				IsPhygital: "false",
				Standard:   "ERC1155",
				Supply:     "unknown",
			},
		},
		{
			name: "contract call reverts",
			ref:  polygonRef,
			setupMocks: func(reader *mocks.MockTokenURIReader, _ *mocks.MockURIFetcher) {
				reader.EXPECT().
					TokenURI(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return("", errors.New("execution reverted"))
			},
			errContains: "execution reverted",
		},
		{
			name: "empty token uri",
			ref:  polygonRef,
			setupMocks: func(reader *mocks.MockTokenURIReader, _ *mocks.MockURIFetcher) {
				reader.EXPECT().
					TokenURI(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return("", nil)
			},
			errContains: "empty token uri",
		},
		{
			name: "no gateway served a document",
			ref:  polygonRef,
			setupMocks: func(reader *mocks.MockTokenURIReader, fetcher *mocks.MockURIFetcher) {
				reader.EXPECT().
					TokenURI(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return("ipfs://QmGone", nil)
				fetcher.EXPECT().
					FetchJSON(gomock.Any(), "ipfs://QmGone", gomock.Any()).
					Return(nil, uri.ErrNoDocument)
			},
			errContains: "no acceptable document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			reader := mocks.NewMockTokenURIReader(ctrl)
			fetcher := mocks.NewMockURIFetcher(ctrl)
			tt.setupMocks(reader, fetcher)

			source := metadata.NewOnChainSource(reader, fetcher)
			got, err := source.Fetch(context.Background(), tt.ref)

			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
