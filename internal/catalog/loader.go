package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCatalogUnavailable reports that the catalog source could not be read
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// imageURLSeparator splits multi-image listings; only the first image is kept.
const imageURLSeparator = " | "

// Options controls normalization applied while loading
type Options struct {
	StripMarkup bool
}

// Load reads every row from src and normalizes it into a Catalog.
// Rows without a name are dropped, missing tags become the empty string and
// the first occurrence of a duplicated name owns the name lookup.
func Load(ctx context.Context, src Source, opts Options) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := src.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalogUnavailable, src.Name(), err)
	}
	return Normalize(rows, opts), nil
}

// Normalize converts raw rows into a Catalog without touching any source
func Normalize(rows []RawProduct, opts Options) *Catalog {
	cat := &Catalog{
		Products: make([]Product, 0, len(rows)),
		Names:    make(map[string]int, len(rows)),
	}

	for _, row := range rows {
		if row.Name == nil || strings.TrimSpace(*row.Name) == "" {
			continue
		}

		p := Product{
			Index: len(cat.Products),
			Name:  *row.Name,
		}
		if row.Brand != nil {
			p.Brand = *row.Brand
		}
		if row.Tags != nil {
			p.Tags = *row.Tags
			if opts.StripMarkup {
				p.Tags = StripMarkup(p.Tags)
			}
		}
		if row.ImageURL != nil {
			p.ImageURL = firstImageURL(*row.ImageURL)
		}
		if row.Rating != nil {
			p.Rating = *row.Rating
		}
		if row.ReviewCount != nil {
			p.ReviewCount = *row.ReviewCount
		}

		if _, exists := cat.Names[p.Name]; !exists {
			cat.Names[p.Name] = p.Index
		}
		cat.Products = append(cat.Products, p)
	}

	return cat
}

func firstImageURL(raw string) string {
	first, _, _ := strings.Cut(raw, imageURLSeparator)
	return strings.TrimSpace(first)
}
