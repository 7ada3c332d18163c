package catalog

// RawProduct is one catalog row as a source yields it. Nil fields were absent or null.
type RawProduct struct {
	Name        *string  `json:"name"`
	Brand       *string  `json:"brand"`
	Tags        *string  `json:"tags"`
	ImageURL    *string  `json:"image_url"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"review_count"`
}

// Product is a normalized catalog entry. Index is its dense position in the catalog
// and the row/column key of the similarity matrix.
type Product struct {
	Index       int
	Name        string
	Brand       string
	Tags        string
	ImageURL    string
	Rating      float64
	ReviewCount int
}

// Catalog is the ordered product table plus the name lookup built from it.
// It is immutable once Load returns.
type Catalog struct {
	Products []Product
	Names    map[string]int
}

// Len returns the number of products
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}

// Lookup returns the index of the first product carrying name
func (c *Catalog) Lookup(name string) (int, bool) {
	if c == nil {
		return 0, false
	}
	idx, ok := c.Names[name]
	return idx, ok
}

// Corpus returns the tags of every product in index order
func (c *Catalog) Corpus() []string {
	docs := make([]string, len(c.Products))
	for i, p := range c.Products {
		docs[i] = p.Tags
	}
	return docs
}

func strPtr(s string) *string { return &s }
