package uri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/uri"
)

func TestExpandTokenID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		tokenID  string
		expected string
	}{
		{
			name:     "no placeholder",
			uri:      "ipfs://QmHash/1.json",
			tokenID:  "1",
			expected: "ipfs://QmHash/1.json",
		},
		{
			name:     "placeholder padded to 64 hex chars",
			uri:      "https://example.com/{id}.json",
			tokenID:  "255",
			expected: "https://example.com/00000000000000000000000000000000000000000000000000000000000000ff.json",
		},
		{
			name:     "non numeric token id substituted verbatim",
			uri:      "https://example.com/{id}",
			tokenID:  "abc",
			expected: "https://example.com/abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, uri.ExpandTokenID(tt.uri, tt.tokenID))
		})
	}
}

func TestIPFSPath(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
		ok       bool
	}{
		{name: "ipfs scheme", uri: "ipfs://QmHash/meta.json", expected: "QmHash/meta.json", ok: true},
		{name: "ipfs scheme with ipfs prefix", uri: "ipfs://ipfs/QmHash", expected: "QmHash", ok: true},
		{name: "bare path", uri: "/ipfs/QmHash/1", expected: "QmHash/1", ok: true},
		{name: "gateway url", uri: "https://gateway.pinata.cloud/ipfs/QmHash/1.json", expected: "QmHash/1.json", ok: true},
		{name: "plain http", uri: "https://example.com/meta.json", ok: false},
		{name: "empty ipfs", uri: "ipfs://", ok: false},
		{name: "data uri", uri: "data:application/json,{}", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := uri.IPFSPath(tt.uri)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, path)
		})
	}
}

func TestToGateway(t *testing.T) {
	assert.Equal(t, "https://ipfs.io/ipfs/QmImage", uri.ToGateway("ipfs://QmImage", "https://ipfs.io/"))
	assert.Equal(t, "https://ipfs.io/ipfs/QmImage/a.png", uri.ToGateway("https://other.gw/ipfs/QmImage/a.png", "https://ipfs.io"))
	assert.Equal(t, "https://example.com/a.png", uri.ToGateway("https://example.com/a.png", "https://ipfs.io"))
}

func TestDecodeDataURI(t *testing.T) {
	t.Run("base64", func(t *testing.T) {
		data, err := uri.DecodeDataURI("data:application/json;base64,eyJuYW1lIjoiQXJ0In0=")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Art"}`, string(data))
	})

	t.Run("url encoded", func(t *testing.T) {
		data, err := uri.DecodeDataURI("data:application/json,%7B%22name%22%3A%22Art%22%7D")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"Art"}`, string(data))
	})

	t.Run("missing comma", func(t *testing.T) {
		_, err := uri.DecodeDataURI("data:application/json")
		assert.Error(t, err)
	})

	t.Run("not a data uri", func(t *testing.T) {
		_, err := uri.DecodeDataURI("https://example.com")
		assert.Error(t, err)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := uri.DecodeDataURI("data:application/json;base64,!!!")
		assert.Error(t, err)
	})
}
