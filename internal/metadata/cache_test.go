package metadata_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/adapter"
	"github.com/sokos-io/nft-indexer/internal/logger"
	"github.com/sokos-io/nft-indexer/internal/metadata"
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

func sampleMetadata(name string) *metadata.Metadata {
	return &metadata.Metadata{
		Image:       "https://ipfs.io/ipfs/QmImage",
		Name:        name,
		TokenURL:    "ipfs://QmMeta/1.json",
		Description: "An artwork",
		Attributes:  []interface{}{map[string]interface{}{"trait_type": "Color", "value": "Red"}},
		IsPhygital:  "false",
		Standard:    "ERC721",
		Supply:      "1",
		Categories:  "art,photo",
	}
}

func newTestCache(t *testing.T, path string) metadata.Cache {
	t.Helper()
	cache, err := metadata.NewSQLiteCache(path, adapter.NewJSON())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestSQLiteCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	cache := newTestCache(t, path)

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := cache.Get(ctx, "0xaa-404")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "0xaa-1", sampleMetadata("Art #1")))

		got, err := cache.Get(ctx, "0xaa-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Art #1", got.Name)
		assert.Equal(t, "art,photo", got.Categories)
		assert.Equal(t, "false", got.IsPhygital)
		require.Len(t, got.Attributes, 1)
		assert.Equal(t, "Red", got.Attributes[0].(map[string]interface{})["value"])
	})

	t.Run("last writer wins", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "0xaa-2", sampleMetadata("First")))
		require.NoError(t, cache.Set(ctx, "0xaa-2", sampleMetadata("Second")))

		got, err := cache.Get(ctx, "0xaa-2")
		require.NoError(t, err)
		assert.Equal(t, "Second", got.Name)
	})
}

func TestSQLiteCache_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := metadata.NewSQLiteCache(path, adapter.NewJSON())
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "0xbb-9", sampleMetadata("Persisted")))
	require.NoError(t, first.Close())

	second := newTestCache(t, path)
	got, err := second.Get(ctx, "0xbb-9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Persisted", got.Name)
}

func TestSQLiteCache_ClosedDatabaseErrors(t *testing.T) {
	cache, err := metadata.NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), adapter.NewJSON())
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	_, err = cache.Get(context.Background(), "0xaa-1")
	assert.Error(t, err)
	assert.Error(t, cache.Set(context.Background(), "0xaa-1", sampleMetadata("x")))
}

func TestNopCache(t *testing.T) {
	cache := metadata.NewNopCache()
	require.NoError(t, cache.Set(context.Background(), "0xaa-1", sampleMetadata("x")))

	got, err := cache.Get(context.Background(), "0xaa-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, cache.Close())
}

func TestTokenRef_CacheKey(t *testing.T) {
	ref := metadata.TokenRef{TokenAddress: "0x00000000000000000000000000000000000000AA", TokenID: "12"}
	assert.Equal(t, "0x00000000000000000000000000000000000000aa-12", ref.CacheKey())
}

func TestUnknown(t *testing.T) {
	m := metadata.Unknown()
	assert.Equal(t, "unknown", m.Name)
	assert.Equal(t, "unknown", m.Image)
	assert.Equal(t, "unknown", m.Supply)
	assert.Equal(t, []interface{}{"unknown"}, m.Attributes)
	assert.False(t, m.Phygital())
}
