package catalog

import (
	"context"
	"fmt"

	"github.com/knowledge-engine/recommender/internal/config"
)

// Source yields every product row of a catalog backing store
type Source interface {
	Products(ctx context.Context) ([]RawProduct, error)
	Name() string
}

// NewSource builds the source selected by cfg.Source
func NewSource(cfg config.CatalogConfig) (Source, error) {
	switch cfg.Source {
	case "csv":
		return NewCSVSource(cfg.Path), nil
	case "json":
		return NewJSONSource(cfg.Path), nil
	case "sqlite":
		return NewSQLiteSource(cfg.Path), nil
	case "http":
		return NewHTTPSource(cfg), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}
