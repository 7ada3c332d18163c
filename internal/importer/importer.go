// Package importer loads a product CSV export into the SQLite catalog
// database read by the sqlite catalog source.
package importer

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/recommender/internal/catalog"
)

// Config holds the importer command line
type Config struct {
	CSVPath string
	DBPath  string
	Force   bool
	DryRun  bool
}

// ParseConfig parses importer flags
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		CSVPath: filepath.Join("models", "products.csv"),
		DBPath:  filepath.Join("data", "catalog.db"),
	}

	fs.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "product CSV export")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "catalog database path")
	fs.BoolVar(&cfg.Force, "force", false, "replace an already populated product table")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "validate the CSV without writing to the database")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.CSVPath) == "" {
		return Config{}, errors.New("csv is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" && !cfg.DryRun {
		return Config{}, errors.New("db is required")
	}
	return cfg, nil
}

// Run imports the CSV. An already populated table is left untouched unless
// cfg.Force is set.
func Run(ctx context.Context, cfg Config, out io.Writer, logger *logrus.Entry) error {
	if out == nil {
		out = io.Discard
	}
	log := logger.WithFields(logrus.Fields{"csv": cfg.CSVPath, "db": cfg.DBPath})

	rows, err := catalog.NewCSVSource(cfg.CSVPath).Products(ctx)
	if err != nil {
		return fmt.Errorf("read product csv: %w", err)
	}
	named := catalog.Normalize(rows, catalog.Options{}).Len()
	log.WithFields(logrus.Fields{"rows": len(rows), "named": named}).Info("Product CSV parsed")

	if cfg.DryRun {
		fmt.Fprintf(out, "Dry run: %d rows, %d importable\n", len(rows), named)
		return nil
	}

	store, err := catalog.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	existing, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if existing > 0 {
		if !cfg.Force {
			fmt.Fprintln(out, "Product table already populated.")
			fmt.Fprintln(out, "To re-populate, run again with -force.")
			return nil
		}
		if err := store.Truncate(ctx); err != nil {
			return err
		}
		log.WithField("removed", existing).Warn("Cleared product table")
	}

	written, err := store.Import(ctx, rows)
	if err != nil {
		return err
	}
	log.WithField("written", written).Info("Product table populated")
	fmt.Fprintf(out, "Product table populated successfully with %d products.\n", written)
	return nil
}
