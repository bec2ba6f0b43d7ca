package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sokos-io/nft-indexer/internal/domain"
)

const ENV_DEVELOPMENT = "development"

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug       bool   `mapstructure:"debug"`
	Environment string `mapstructure:"environment"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
}

// IsDevelopment reports whether the service runs in development mode
func (c BaseConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, ENV_DEVELOPMENT)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
	MaxAckPending  int           `mapstructure:"max_ack_pending"`
	// RetryDelay is how long a failed event waits before redelivery
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// DuplicateWindow is how long the stream deduplicates republished events
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
	// DrainTimeout bounds the connection drain on shutdown
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// ChainConfig holds the endpoints and indexing range for one EVM chain
type ChainConfig struct {
	ChainID uint64 `mapstructure:"chain_id"`
	RPCURL  string `mapstructure:"rpc_url"`
	// MetadataAPIURL is the base URL of the console serving /api/nfts for this chain
	MetadataAPIURL string `mapstructure:"metadata_api_url"`
	// FactoryAddresses are the factory/diamond contracts emitting collection and market events
	FactoryAddresses []string      `mapstructure:"factory_addresses"`
	StartBlock       uint64        `mapstructure:"start_block"`
	Confirmations    uint64        `mapstructure:"confirmations"`
	BatchSize        uint64        `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

// MetadataConfig holds metadata resolution configuration
type MetadataConfig struct {
	CachePath     string        `mapstructure:"cache_path"`
	CacheDisabled bool          `mapstructure:"cache_disabled"`
	IPFSGateways  []string      `mapstructure:"ipfs_gateways"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	// APIRateLimit is the allowed number of metadata API requests per second, 0 disables limiting
	APIRateLimit float64 `mapstructure:"api_rate_limit"`
	APIRateBurst int     `mapstructure:"api_rate_burst"`
}

// RedisConfig holds the optional redis used for rate limits shared between replicas
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
	MaxInFlight     int `mapstructure:"max_in_flight"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// IndexerConfig holds configuration for the indexer
type IndexerConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Chains     []ChainConfig  `mapstructure:"chains"`
	Metadata   MetadataConfig `mapstructure:"metadata"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Worker     WorkerConfig   `mapstructure:"worker"`
}

// MetadataCacheEnabled reports whether resolved metadata is read from and written to the cache
func (c *IndexerConfig) MetadataCacheEnabled() bool {
	return !c.Metadata.CacheDisabled && !c.IsDevelopment()
}

// EmitterConfig holds configuration for event-emitter
type EmitterConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Chains     []ChainConfig  `mapstructure:"chains"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// Chain returns the configuration of a chain by id
func Chain(chains []ChainConfig, chainID uint64) (*ChainConfig, error) {
	for i := range chains {
		if chains[i].ChainID == chainID {
			return &chains[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", domain.ErrUnsupportedChain, chainID)
}

// LoadIndexerConfig loads configuration for the indexer
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)
	v.SetDefault("nats.consumer_name", "indexer")
	v.SetDefault("nats.ack_wait", "60s")
	v.SetDefault("nats.max_deliver", 5)
	v.SetDefault("nats.max_ack_pending", 1000)
	v.SetDefault("nats.retry_delay", "5s")
	v.SetDefault("nats.drain_timeout", "10s")
	v.SetDefault("metadata.cache_path", ".cache/cache.db")
	v.SetDefault("metadata.ipfs_gateways", []string{domain.DEFAULT_IPFS_GATEWAY, "https://cloudflare-ipfs.com", "https://gateway.pinata.cloud"})
	v.SetDefault("metadata.http_timeout", "15s")
	v.SetDefault("metadata.api_rate_limit", 10)
	v.SetDefault("metadata.api_rate_burst", 20)
	v.SetDefault("worker.pool_size", 20)
	v.SetDefault("worker.queue_size", 2048)
	v.SetDefault("worker.max_in_flight", 256)

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var config IndexerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadEmitterConfig loads configuration for event-emitter
func LoadEmitterConfig(configFile string, envPath string) (*EmitterConfig, error) {
	v := configureViper("event-emitter", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var config EmitterConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range config.Chains {
		applyChainDefaults(&config.Chains[i])
	}

	if len(config.Chains) == 0 {
		return nil, errors.New("at least one chain must be configured")
	}

	return &config, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	setDatabaseDefaults(v)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "NFT_EVENTS")
	v.SetDefault("nats.duplicate_window", "24h")
}

func applyChainDefaults(c *ChainConfig) {
	if c.BatchSize == 0 {
		c.BatchSize = 2000
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
}

// readInConfig reads the config file, falling back to environment variables when none is found
func readInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("NFT_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars binds every scalar key so env-only deployments (no config file) still populate structs
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"environment",
		"sentry_dsn",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		"nats.max_ack_pending",
		"nats.retry_delay",
		"nats.duplicate_window",
		"nats.drain_timeout",
		"metadata.cache_path",
		"metadata.cache_disabled",
		"metadata.ipfs_gateways",
		"metadata.http_timeout",
		"metadata.api_rate_limit",
		"metadata.api_rate_burst",
		"redis.addr",
		"redis.password",
		"redis.db",
		"worker.pool_size",
		"worker.queue_size",
		"worker.max_in_flight",
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile)) // later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
