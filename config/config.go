package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Binance BinanceConfig `env:",prefix=BINANCE_"`
	Store   StoreConfig   `env:",prefix=STORE_"`
	Sync    SyncConfig    `env:",prefix=SYNC_"`
	Log     LogConfig     `env:",prefix=LOG_"`
}

// BinanceConfig configures the Binance connector instance and its client.
type BinanceConfig struct {
	APIKey            string        `env:"API_KEY"`
	SecretKey         string        `env:"API_SECRET"`
	IsTestnet         bool          `env:"TESTNET, default=false"`
	BaseURL           string        `env:"BASE_URL"`
	Symbols           string        `env:"SYMBOLS, default=BTCUSDT"`
	TradeLimit        int           `env:"TRADE_LIMIT, default=1000"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND, default=5"`
	MaxRetries        int           `env:"MAX_RETRIES, default=3"`
	RetryMinDelay     time.Duration `env:"RETRY_MIN_DELAY, default=500ms"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY, default=10s"`
}

// StoreConfig selects and configures the transaction repository.
type StoreConfig struct {
	Driver          string        `env:"DRIVER, default=sqlite"`
	DBPath          string        `env:"DB_PATH, default=./data/everytrade.db"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	MaxConns        int           `env:"MAX_CONNS, default=4"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=30m"`
}

// SyncConfig controls the sync loop.
type SyncConfig struct {
	Interval    time.Duration `env:"INTERVAL, default=15m"`
	MaxParallel int           `env:"MAX_PARALLEL, default=2"`
	RunOnce     bool          `env:"RUN_ONCE, default=false"`
}

// LogConfig controls the zerolog adapter.
type LogConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=console"`
	Caller bool   `env:"CALLER, default=false"`
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig(ctx context.Context) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, lookuper); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate collects every invalid setting into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Binance.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if c.Binance.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}
	if strings.TrimSpace(c.Binance.Symbols) == "" {
		errs = append(errs, "BINANCE_SYMBOLS must be set")
	}
	if c.Binance.TradeLimit <= 0 || c.Binance.TradeLimit > 1000 {
		errs = append(errs, "BINANCE_TRADE_LIMIT must be between 1 and 1000")
	}
	if c.Binance.RequestsPerSecond < 0 {
		errs = append(errs, "BINANCE_REQUESTS_PER_SECOND cannot be negative")
	}
	if c.Binance.MaxRetries < 0 {
		errs = append(errs, "BINANCE_MAX_RETRIES cannot be negative")
	}
	if c.Binance.RetryMinDelay <= 0 || c.Binance.RetryMaxDelay < c.Binance.RetryMinDelay {
		errs = append(errs, "BINANCE_RETRY_MIN_DELAY must be positive and not above BINANCE_RETRY_MAX_DELAY")
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DBPath == "" {
			errs = append(errs, "STORE_DB_PATH must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "STORE_DATABASE_URL must be set for the postgres driver")
		}
		if c.Store.MaxConns <= 0 {
			errs = append(errs, "STORE_MAX_CONNS must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown STORE_DRIVER %q (expected %s or %s)", c.Store.Driver, DriverSQLite, DriverPostgres))
	}

	if !c.Sync.RunOnce && c.Sync.Interval <= 0 {
		errs = append(errs, "SYNC_INTERVAL must be positive")
	}
	if c.Sync.MaxParallel <= 0 {
		errs = append(errs, "SYNC_MAX_PARALLEL must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, "LOG_FORMAT must be console or json")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
