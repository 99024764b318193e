package domain

import "time"

type ProductImage struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type ProductVariant struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	SKU               string   `json:"sku,omitempty"`
	Price             float64  `json:"price"`
	CompareAtPrice    *float64 `json:"compare_at_price,omitempty"`
	InStock           bool     `json:"in_stock"`
	QuantityAvailable int      `json:"quantity_available"`
}

// CatalogEntry is one cached product from the commerce platform. Entries are
// replaced wholesale on refresh, never mutated in place.
type CatalogEntry struct {
	ProductID      string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Price          float64          `json:"price"`
	Currency       string           `json:"currency"`
	Images         []ProductImage   `json:"images"`
	Variants       []ProductVariant `json:"variants"`
	InventoryCount int              `json:"inventory_count"`
	Tags           []string         `json:"tags,omitempty"`
	FetchedAt      time.Time        `json:"fetched_at"`
}

// Snapshot derives the point-in-time cart copy for this product. The first
// tag becomes the display badge, palette tags ("palette:<color>") become the
// color swatch list.
func (e CatalogEntry) Snapshot() ProductSnapshot {
	snap := ProductSnapshot{Name: e.Title}
	for _, tag := range e.Tags {
		if len(tag) > 8 && tag[:8] == "palette:" {
			snap.Palette = append(snap.Palette, tag[8:])
			continue
		}
		if snap.Badge == "" {
			snap.Badge = tag
		}
	}
	return snap
}
