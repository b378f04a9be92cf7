// Package config provides configuration management for the minter scanner
// application. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chain    ChainConfig
	Indexer  IndexerConfig
	IPFS     IPFSConfig
	Enrich   EnrichConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port              string
	Host              string
	RequestsPerSecond int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the postgres:// connection URL for this configuration
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ChainConfig holds chain RPC and minter contract configuration
type ChainConfig struct {
	RPCPrimary       string
	RPCSecondary     string
	ContractAddress  string
	PollInterval     time.Duration
	StartBlock       uint64
	MaxBlocksPerPoll int // Maximum blocks to scan per poll cycle (default: 30)
}

// IndexerConfig holds the trade indexer (GraphQL) configuration
type IndexerConfig struct {
	URL          string
	APIKey       string
	PollInterval time.Duration // Incremental trade poll interval (default: 10s)
	BulkLimit    int           // Events per type in the bulk query (default: 1000)
}

// IPFSConfig holds IPFS gateway configuration
type IPFSConfig struct {
	Gateways       []string
	RequestTimeout time.Duration
	MaxAttempts    int // Attempts per gateway before falling to the next
	InitialBackoff time.Duration
	CacheTTL       time.Duration // TTL for cached metadata documents, keyed by CID
}

// EnrichConfig holds metadata enrichment pipeline configuration
type EnrichConfig struct {
	BatchSize     int           // Tokens per enrichment batch (default: 50)
	TokenDelay    time.Duration // Mandatory delay between tokens within a batch
	BatchDelay    time.Duration // Longer delay between batches
	QuarantineTTL time.Duration // Exclusion window after an upstream 429 (default: 5m)
	PriceTTL      time.Duration // Staleness window for cached prices
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:              getEnv("SERVER_PORT", "8080"),
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			RequestsPerSecond: getEnvAsInt("SERVER_REQUESTS_PER_SECOND", 50),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "minter_scanner"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "minter_scanner"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Chain: ChainConfig{
			RPCPrimary:       getEnv("CHAIN_RPC_PRIMARY", ""),
			RPCSecondary:     getEnv("CHAIN_RPC_SECONDARY", ""),
			ContractAddress:  getEnv("MINTER_CONTRACT_ADDRESS", ""),
			PollInterval:     getEnvAsDuration("CHAIN_POLL_INTERVAL", 15*time.Second),
			StartBlock:       getEnvAsUint64("CHAIN_START_BLOCK", 0),
			MaxBlocksPerPoll: getEnvAsInt("CHAIN_MAX_BLOCKS_PER_POLL", 30),
		},
		Indexer: IndexerConfig{
			URL:          getEnv("INDEXER_URL", ""),
			APIKey:       getEnv("INDEXER_API_KEY", ""),
			PollInterval: getEnvAsDuration("INDEXER_POLL_INTERVAL", 10*time.Second),
			BulkLimit:    getEnvAsInt("INDEXER_BULK_LIMIT", 1000),
		},
		IPFS: IPFSConfig{
			Gateways:       getEnvAsList("IPFS_GATEWAYS", defaultGateways),
			RequestTimeout: getEnvAsDuration("IPFS_REQUEST_TIMEOUT", 5*time.Second),
			MaxAttempts:    getEnvAsInt("IPFS_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("IPFS_INITIAL_BACKOFF", 1*time.Second),
			CacheTTL:       getEnvAsDuration("IPFS_CACHE_TTL", 24*time.Hour),
		},
		Enrich: EnrichConfig{
			BatchSize:     getEnvAsInt("ENRICH_BATCH_SIZE", 50),
			TokenDelay:    getEnvAsDuration("ENRICH_TOKEN_DELAY", 200*time.Millisecond),
			BatchDelay:    getEnvAsDuration("ENRICH_BATCH_DELAY", 2*time.Second),
			QuarantineTTL: getEnvAsDuration("ENRICH_QUARANTINE_TTL", 5*time.Minute),
			PriceTTL:      getEnvAsDuration("ENRICH_PRICE_TTL", time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// defaultGateways is the ordered list of public IPFS gateways tried during
// metadata resolution. Earlier gateways are attempted first.
var defaultGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://dweb.link/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsUint64 gets an environment variable as a uint64 with a default value
func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets an environment variable as a comma-separated list
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
