package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const productSchema = `
CREATE TABLE IF NOT EXISTS product (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	Name        VARCHAR(255) NOT NULL,
	Brand       VARCHAR(100),
	Tags        TEXT,
	ImageURL    TEXT,
	Rating      FLOAT,
	ReviewCount INTEGER
)`

// Store is a SQLite-backed product table
type Store struct {
	sqlDB *sql.DB
}

// OpenStore opens (creating if needed) the SQLite database at path
func OpenStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return openSQLite(cleanPath)
}

func openSQLite(cleanPath string) (*Store, error) {
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// EnsureSchema creates the product table when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, productSchema); err != nil {
		return fmt.Errorf("create product table: %w", err)
	}
	return nil
}

// Count returns the number of stored products
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM product`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Truncate deletes every stored product
func (s *Store) Truncate(ctx context.Context) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM product`); err != nil {
		return fmt.Errorf("truncate products: %w", err)
	}
	return nil
}

// Import inserts rows in one transaction and returns how many were written.
// Rows without a name are skipped since the column is mandatory.
func (s *Store) Import(ctx context.Context, rows []RawProduct) (int, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO product (Name, Brand, Tags, ImageURL, Rating, ReviewCount) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, row := range rows {
		if row.Name == nil || strings.TrimSpace(*row.Name) == "" {
			continue
		}
		var imageURL *string
		if row.ImageURL != nil {
			imageURL = strPtr(firstImageURL(*row.ImageURL))
		}
		rating := 0.0
		if row.Rating != nil {
			rating = *row.Rating
		}
		reviews := 0
		if row.ReviewCount != nil {
			reviews = *row.ReviewCount
		}
		if _, err := stmt.ExecContext(ctx, *row.Name, row.Brand, row.Tags, imageURL, rating, reviews); err != nil {
			return 0, fmt.Errorf("insert product %q: %w", *row.Name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return written, nil
}

// Products returns every stored row in insertion order
func (s *Store) Products(ctx context.Context) ([]RawProduct, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT Name, Brand, Tags, ImageURL, Rating, ReviewCount FROM product ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []RawProduct
	for rows.Next() {
		var (
			name, brand, tags, imageURL sql.NullString
			rating                      sql.NullFloat64
			reviews                     sql.NullInt64
		)
		if err := rows.Scan(&name, &brand, &tags, &imageURL, &rating, &reviews); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p := RawProduct{
			Name:     nullString(name),
			Brand:    nullString(brand),
			Tags:     nullString(tags),
			ImageURL: nullString(imageURL),
		}
		if rating.Valid {
			v := rating.Float64
			p.Rating = &v
		}
		if reviews.Valid {
			v := int(reviews.Int64)
			p.ReviewCount = &v
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return strPtr(v.String)
}

// SQLiteSource reads the product table of an existing SQLite database.
// The database is opened per read so a missing file stays a recoverable error.
type SQLiteSource struct {
	path string
}

func NewSQLiteSource(path string) *SQLiteSource {
	return &SQLiteSource{path: path}
}

func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.path
}

func (s *SQLiteSource) Products(ctx context.Context) ([]RawProduct, error) {
	cleanPath := filepath.Clean(s.path)
	if _, err := os.Stat(cleanPath); err != nil {
		return nil, fmt.Errorf("catalog database: %w", err)
	}
	store, err := openSQLite(cleanPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Products(ctx)
}
