package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Log         LogConfig         `mapstructure:"log"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string `mapstructure:"host"` // empty listens on all interfaces
	Port            string `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int    `mapstructure:"max_header_bytes"`
}

// StorageConfig selects the user repository backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory | postgres
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Type       string `mapstructure:"type"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// Addr returns the host:port pair of the cache server
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IdempotencyConfig controls Idempotency-Key handling on user creation
type IdempotencyConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	DatabasePostgres = "postgres"
	CacheRedis       = "redis"
)

var config *Config

// Init initializes the configuration
func Init() {
	cfg, err := Load(viper.GetViper())
	if err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
	config = cfg
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Driver == StoragePostgres && c.Database.Driver != DatabasePostgres {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Cache.Enabled && c.Cache.Type != CacheRedis {
		return fmt.Errorf("unsupported cache type %q", c.Cache.Type)
	}

	if c.Idempotency.Enabled && !c.Cache.Enabled {
		return fmt.Errorf("idempotency requires the redis cache to be enabled")
	}

	return nil
}

// Get returns the global configuration
func Get() *Config {
	if config == nil {
		Init()
	}
	return config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "user-api")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	// Server defaults
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.shutdown_timeout", 5)
	v.SetDefault("server.max_header_bytes", 1048576)

	v.SetDefault("storage.driver", StorageMemory)

	// Database defaults
	v.SetDefault("database.driver", DatabasePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "users")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.log_sql", false)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.type", CacheRedis)
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl_seconds", 300)

	v.SetDefault("idempotency.enabled", false)
	v.SetDefault("idempotency.ttl_seconds", 86400)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "")
}
