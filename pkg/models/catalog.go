package models

import "time"

// Item is a catalog entry as read from the product store. The ranking engine
// only ever reads items; it never mutates them.
type Item struct {
	ID            string    `json:"id" db:"id" validate:"required"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Brand         string    `json:"brand" db:"brand"`
	Category      string    `json:"category" db:"category"`
	Tags          []string  `json:"tags,omitempty" db:"tags"`
	SuitableFor   []string  `json:"suitable_for,omitempty" db:"suitable_for"`
	SkinType      []string  `json:"skin_type,omitempty" db:"skin_type"`
	Price         *float64  `json:"price,omitempty" db:"price"`
	Currency      string    `json:"currency,omitempty" db:"currency"`
	Stock         int       `json:"stock" db:"stock"`
	AverageRating float64   `json:"average_rating" db:"rating"` // 1..5, 0 when unrated
	IsFavorite    bool      `json:"is_favorite,omitempty" db:"-"`
	TokenBag      *TokenBag `json:"products_tokens,omitempty" db:"products_tokens"`
	UpdatedAt     time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// FieldTokens holds the tokens produced for a single item field.
type FieldTokens struct {
	Field  string   `json:"field"`
	Tokens []string `json:"tokens"`
}

// TokenBag is the precomputed tokenization of an item. Fields keeps the
// order in which fields were tokenized; Tokens is the flattened,
// deduplicated, order-preserving union of all field tokens.
type TokenBag struct {
	Fields []FieldTokens `json:"fields,omitempty"`
	Tokens []string      `json:"tokens,omitempty"`
}

// CatalogEvent announces a new or edited catalog item.
type CatalogEvent struct {
	Action    string    `json:"action" validate:"required,oneof=new edit"`
	Item      Item      `json:"product" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// Neighbor is one entry of an item's similarity neighborhood.
type Neighbor struct {
	ItemID     string  `json:"item_id"`
	Similarity float64 `json:"similarity"`
}

// IndexSummary describes a fitted catalog index.
type IndexSummary struct {
	Version       string    `json:"version"`
	Items         int       `json:"items"`
	Vocabulary    int       `json:"vocabulary"`
	NeighborLinks int       `json:"neighbor_links"`
	Threshold     float64   `json:"similarity_threshold"`
	BuiltAt       time.Time `json:"built_at"`
	BuildDuration string    `json:"build_duration"`
}
