package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config represents the daemon configuration
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Store  StoreConfig
	Query  QueryConfig
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig contains storage engine configuration
type StoreConfig struct {
	Engine          string // "badger", "memory"
	DataDir         string
	SyncWrites      bool
	CreateIfMissing bool
	ErrorIfExists   bool
}

// QueryConfig contains snapshot query defaults
type QueryConfig struct {
	DefaultLimit int
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnvString("ROCKGATE_HOST", ""),
			Port: getEnvInt("ROCKGATE_PORT", 8988),
		},
		Log: LogConfig{
			Level:  getEnvString("ROCKGATE_LOG_LEVEL", "info"),
			Format: getEnvString("ROCKGATE_LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Engine:          getEnvString("ROCKGATE_ENGINE", "badger"),
			DataDir:         getEnvString("ROCKGATE_DATA_DIR", "./data"),
			SyncWrites:      getEnvBool("ROCKGATE_SYNC_WRITES", true),
			CreateIfMissing: getEnvBool("ROCKGATE_CREATE_IF_MISSING", true),
			ErrorIfExists:   getEnvBool("ROCKGATE_ERROR_IF_EXISTS", false),
		},
		Query: QueryConfig{
			DefaultLimit: getEnvInt("ROCKGATE_QUERY_LIMIT", 1000),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Store.Engine {
	case "badger", "memory":
	default:
		return fmt.Errorf("unsupported storage engine: %s", c.Store.Engine)
	}
	if c.Store.Engine == "badger" && c.Store.DataDir == "" {
		return fmt.Errorf("data directory is required for the badger engine")
	}
	if c.Query.DefaultLimit < 1 {
		return fmt.Errorf("query limit must be positive: %d", c.Query.DefaultLimit)
	}
	return nil
}

// Address returns the server listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
