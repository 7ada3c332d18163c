package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// JSONSource reads a JSON array of product objects from a file
type JSONSource struct {
	path string
}

func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

func (s *JSONSource) Name() string {
	return "json:" + s.path
}

func (s *JSONSource) Products(ctx context.Context) ([]RawProduct, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return decodeJSON(ctx, f)
}

func decodeJSON(ctx context.Context, r io.Reader) ([]RawProduct, error) {
	var rows []RawProduct
	if err := json.NewDecoder(r).DecodeContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode catalog json: %w", err)
	}
	return rows, nil
}
