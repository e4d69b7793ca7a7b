package domain

import (
	"encoding/json"
	"fmt"
)

// Category names the Shopify resource type an image was found under.
type Category string

const (
	CategoryTheme       Category = "theme"
	CategoryProducts    Category = "products"
	CategoryCollections Category = "collections"
	CategoryBlogs       Category = "blogs"
	CategoryPages       Category = "pages"
	CategoryMetafields  Category = "metafields"
	CategoryFiles       Category = "files"
	CategoryMetaobjects Category = "metaobjects"
)

// AllCategories lists every category in aggregation order.
var AllCategories = []Category{
	CategoryTheme,
	CategoryProducts,
	CategoryCollections,
	CategoryBlogs,
	CategoryPages,
	CategoryMetafields,
	CategoryFiles,
	CategoryMetaobjects,
}

// Valid reports whether c is one of AllCategories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts s into a Category.
// Parameters:
//   - s: category name as sent by a client.
//
// Returns:
//   - Category: the parsed category.
//   - error: ErrInvalidCategory when s is not known.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// ImageRecord is one image found in a store, normalized across sources.
// Size, Width and Height stay zero until an analysis pass fills them in.
type ImageRecord struct {
	URL      string      `json:"url"`
	Category Category    `json:"category"`
	Size     int64       `json:"size"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Alt      string      `json:"alt,omitempty"`
	MimeType string      `json:"mimeType,omitempty"`
	Source   ImageSource `json:"-"`
}

// NewImageRecord builds a record whose category follows src.
func NewImageRecord(url string, src ImageSource) ImageRecord {
	return ImageRecord{
		URL:      url,
		Category: src.Category(),
		Source:   src,
	}
}

// Valid reports whether the record can be handed to clients.
// The URL must validate and the source must agree with the category.
func (r ImageRecord) Valid() bool {
	if !ValidateImageURL(r.URL) || !r.Category.Valid() {
		return false
	}
	return r.Source != nil && r.Source.Category() == r.Category
}

// SideData flattens the record's source into client-facing identifiers.
func (r ImageRecord) SideData() SideData {
	if r.Source == nil {
		return SideData{}
	}
	return r.Source.sideData()
}

// recordJSON is the wire form: record fields plus the flattened side data.
type recordJSON struct {
	plainRecord
	SideData
}

type plainRecord ImageRecord

// MarshalJSON writes the source identifiers next to the record fields.
func (r ImageRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{plainRecord: plainRecord(r), SideData: r.SideData()})
}

// UnmarshalJSON restores Source from the flattened identifiers when present.
func (r *ImageRecord) UnmarshalJSON(data []byte) error {
	var wire recordJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = ImageRecord(wire.plainRecord)
	if src, ok := wire.SideData.Source(); ok {
		r.Source = src
	}
	return nil
}

// Stats summarizes an aggregation.
type Stats struct {
	TotalFiles int              `json:"totalFiles"`
	Categories map[Category]int `json:"categories"`
}

// NewStats returns Stats with every category present at zero.
func NewStats() Stats {
	counts := make(map[Category]int, len(AllCategories))
	for _, c := range AllCategories {
		counts[c] = 0
	}
	return Stats{Categories: counts}
}

// AggregationResult is the outcome of one aggregation run. It is not persisted.
type AggregationResult struct {
	Images  []ImageRecord `json:"images"`
	Skipped []Category    `json:"skipped"`
	Stats   Stats         `json:"stats"`
}
