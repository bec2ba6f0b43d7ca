package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokos-io/nft-indexer/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadIndexerConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *IndexerConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
database:
  host: localhost
  user: indexer
  password: secret
  dbname: nft
nats:
  url: "nats://localhost:4222"
  stream_name: "TEST_EVENTS"
chains:
  - chain_id: 137
    rpc_url: "https://polygon-rpc.example.com"
    metadata_api_url: "https://console.example.com"
  - chain_id: 80002
    rpc_url: "https://amoy-rpc.example.com"
    metadata_api_url: "https://console-staging.example.com"
metadata:
  cache_path: "/tmp/cache.db"
  ipfs_gateways:
    - "https://gw1.example.com"
    - "https://gw2.example.com"
worker:
  pool_size: 4
`,
			validate: func(t *testing.T, cfg *IndexerConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, "TEST_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, "indexer", cfg.NATS.ConsumerName)
				assert.Equal(t, 60*time.Second, cfg.NATS.AckWait)
				require.Len(t, cfg.Chains, 2)
				assert.Equal(t, uint64(137), cfg.Chains[0].ChainID)
				assert.Equal(t, "https://console-staging.example.com", cfg.Chains[1].MetadataAPIURL)
				assert.Equal(t, "/tmp/cache.db", cfg.Metadata.CachePath)
				assert.Equal(t, []string{"https://gw1.example.com", "https://gw2.example.com"}, cfg.Metadata.IPFSGateways)
				assert.Equal(t, 15*time.Second, cfg.Metadata.HTTPTimeout)
				assert.Equal(t, 4, cfg.Worker.WorkerPoolSize)
				assert.Equal(t, 256, cfg.Worker.MaxInFlight)
				assert.True(t, cfg.MetadataCacheEnabled())
			},
		},
		{
			name: "development environment disables the metadata cache",
			configFile: `
environment: development
database:
  host: localhost
`,
			validate: func(t *testing.T, cfg *IndexerConfig) {
				assert.True(t, cfg.IsDevelopment())
				assert.False(t, cfg.MetadataCacheEnabled())
				assert.Equal(t, []string{domain.DEFAULT_IPFS_GATEWAY, "https://cloudflare-ipfs.com", "https://gateway.pinata.cloud"}, cfg.Metadata.IPFSGateways)
			},
		},
		{
			name: "explicit cache_disabled",
			configFile: `
metadata:
  cache_disabled: true
`,
			validate: func(t *testing.T, cfg *IndexerConfig) {
				assert.False(t, cfg.MetadataCacheEnabled())
			},
		},
		{
			name:        "malformed yaml",
			configFile:  "database: [unclosed",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.configFile)

			cfg, err := LoadIndexerConfig(path, t.TempDir())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoadIndexerConfig_EnvOverrides(t *testing.T) {
	t.Setenv("NFT_INDEXER_DATABASE_HOST", "db.internal")
	t.Setenv("NFT_INDEXER_METADATA_CACHE_DISABLED", "true")

	path := writeConfig(t, `
database:
  host: localhost
`)

	cfg, err := LoadIndexerConfig(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Metadata.CacheDisabled)
}

func TestLoadIndexerConfig_DotEnv(t *testing.T) {
	envDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte("NFT_INDEXER_NATS_URL=nats://from-env:4222\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NFT_INDEXER_NATS_URL") })

	cfg, err := LoadIndexerConfig(writeConfig(t, "debug: false\n"), envDir)
	require.NoError(t, err)
	assert.Equal(t, "nats://from-env:4222", cfg.NATS.URL)
}

func TestLoadEmitterConfig(t *testing.T) {
	path := writeConfig(t, `
nats:
  url: "nats://localhost:4222"
chains:
  - chain_id: 137
    rpc_url: "https://polygon-rpc.example.com"
    factory_addresses: ["0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"]
    start_block: 100
    confirmations: 12
`)

	cfg, err := LoadEmitterConfig(path, t.TempDir())
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, uint64(2000), cfg.Chains[0].BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Chains[0].PollInterval)
	assert.Equal(t, uint64(12), cfg.Chains[0].Confirmations)
	assert.Equal(t, "NFT_EVENTS", cfg.NATS.StreamName)

	_, err = LoadEmitterConfig(writeConfig(t, "debug: true\n"), t.TempDir())
	assert.Error(t, err)
}

func TestLoadAPIConfig(t *testing.T) {
	cfg, err := LoadAPIConfig(writeConfig(t, "server:\n  port: 9090\n"), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 120, cfg.Server.IdleTimeout)
}

func TestChain(t *testing.T) {
	chains := []ChainConfig{{ChainID: 1}, {ChainID: 137, RPCURL: "https://polygon"}}

	c, err := Chain(chains, 137)
	require.NoError(t, err)
	assert.Equal(t, "https://polygon", c.RPCURL)

	_, err = Chain(chains, 10)
	assert.ErrorIs(t, err, domain.ErrUnsupportedChain)
}

func TestDatabaseConfigDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
}
