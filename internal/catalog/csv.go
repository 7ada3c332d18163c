package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVSource reads a product export with a header row naming the columns
// Name, Brand, Tags, ImageURL, Rating and ReviewCount. Empty cells are null.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string {
	return "csv:" + s.path
}

func (s *CSVSource) Products(ctx context.Context) ([]RawProduct, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	return decodeCSV(ctx, f)
}

var csvColumns = map[string]string{
	"name":         "name",
	"brand":        "brand",
	"tags":         "tags",
	"imageurl":     "image_url",
	"image_url":    "image_url",
	"rating":       "rating",
	"reviewcount":  "review_count",
	"review_count": "review_count",
}

func decodeCSV(ctx context.Context, r io.Reader) ([]RawProduct, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog csv is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := csvColumns[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("catalog csv has no Name column")
	}

	var rows []RawProduct
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		cell := func(field string) *string {
			i, ok := cols[field]
			if !ok || i >= len(record) || strings.TrimSpace(record[i]) == "" {
				return nil
			}
			return strPtr(record[i])
		}

		rows = append(rows, RawProduct{
			Name:        cell("name"),
			Brand:       cell("brand"),
			Tags:        cell("tags"),
			ImageURL:    cell("image_url"),
			Rating:      parseFloat(cell("rating")),
			ReviewCount: parseCount(cell("review_count")),
		})
	}

	return rows, nil
}

// parseFloat treats unparseable numbers like missing ones
func parseFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseCount accepts "12" as well as spreadsheet-style "12.0"
func parseCount(s *string) *int {
	if s == nil {
		return nil
	}
	raw := strings.TrimSpace(*s)
	if v, err := strconv.Atoi(raw); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	v := int(f)
	return &v
}
