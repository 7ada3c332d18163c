package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for the recommendation service
type Config struct {
	Server  ServerConfig
	Catalog CatalogConfig
	Index   IndexConfig
	Log     LogConfig
}

type ServerConfig struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`
}

// CatalogConfig selects and configures the product catalog source
type CatalogConfig struct {
	Source         string        `env:"CATALOG_SOURCE" envDefault:"csv"`
	Path           string        `env:"CATALOG_PATH" envDefault:"models/products.csv"`
	URL            string        `env:"CATALOG_URL"`
	UserAgent      string        `env:"CATALOG_USER_AGENT" envDefault:"Recommender-CatalogSync/1.0"`
	RequestTimeout time.Duration `env:"CATALOG_REQUEST_TIMEOUT" envDefault:"30s"`
	RespectRobots  bool          `env:"CATALOG_RESPECT_ROBOTS" envDefault:"true"`
	StripMarkup    bool          `env:"CATALOG_STRIP_MARKUP" envDefault:"true"`
}

// IndexConfig holds similarity index and query configuration
type IndexConfig struct {
	EagerBuild   bool    `env:"INDEX_EAGER_BUILD" envDefault:"true"`
	DefaultTopN  int     `env:"INDEX_DEFAULT_TOP_N" envDefault:"5"`
	MaxTopN      int     `env:"INDEX_MAX_TOP_N" envDefault:"10"`
	MinTextScore float64 `env:"INDEX_MIN_TEXT_SCORE" envDefault:"0"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the value ranges env parsing cannot express
func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case "csv", "json", "sqlite":
		if c.Catalog.Path == "" {
			return fmt.Errorf("CATALOG_PATH is required for source %q", c.Catalog.Source)
		}
	case "http":
		if c.Catalog.URL == "" {
			return fmt.Errorf("CATALOG_URL is required for source %q", c.Catalog.Source)
		}
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if c.Index.MaxTopN < 1 {
		return fmt.Errorf("INDEX_MAX_TOP_N must be positive, got %d", c.Index.MaxTopN)
	}
	if c.Index.DefaultTopN < 1 || c.Index.DefaultTopN > c.Index.MaxTopN {
		return fmt.Errorf("INDEX_DEFAULT_TOP_N must be within [1, %d], got %d", c.Index.MaxTopN, c.Index.DefaultTopN)
	}
	if c.Index.MinTextScore < 0 {
		return fmt.Errorf("INDEX_MIN_TEXT_SCORE must not be negative, got %v", c.Index.MinTextScore)
	}
	return nil
}

// Default returns the configuration Load produces with an empty environment
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Catalog: CatalogConfig{
			Source:         "csv",
			Path:           "models/products.csv",
			UserAgent:      "Recommender-CatalogSync/1.0",
			RequestTimeout: 30 * time.Second,
			RespectRobots:  true,
			StripMarkup:    true,
		},
		Index: IndexConfig{
			EagerBuild:  true,
			DefaultTopN: 5,
			MaxTopN:     10,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}
