package catalog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category is a locally persisted product category. It is keyed uniquely by
// name and by slug; the Square ID is carried when known so later syncs can
// resolve it directly.
type Category struct {
	ID        uuid.UUID `json:"id"`
	SquareID  *string   `json:"square_id,omitempty"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a locally persisted product synced from the Square catalog,
// keyed uniquely by Square ID and by slug. Active mirrors the external
// visibility flags as of the last sync; archived products stay in the table
// with Active=false.
type Product struct {
	ID                 uuid.UUID       `json:"id"`
	SquareID           string          `json:"square_id"`
	Name               string          `json:"name"`
	Slug               string          `json:"slug"`
	Description        string          `json:"description,omitempty"`
	BasePrice          decimal.Decimal `json:"base_price"`
	Images             []string        `json:"images"`
	Ordinal            int             `json:"ordinal"`
	CategoryID         uuid.UUID       `json:"category_id"`
	Active             bool            `json:"active"`
	Calories           *int            `json:"calories,omitempty"`
	DietaryPreferences []string        `json:"dietary_preferences,omitempty"`
	Ingredients        string          `json:"ingredients,omitempty"`
	Allergens          []string        `json:"allergens,omitempty"`
	Nutrition          json.RawMessage `json:"nutrition,omitempty"` // raw Square block, stored verbatim
	Variants           []*Variant      `json:"variants,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Variant is one purchasable variation of a product, keyed uniquely by its
// Square variation ID. Variants are replaced wholesale on every product
// update, never diffed.
type Variant struct {
	ID                uuid.UUID        `json:"id"`
	ProductID         uuid.UUID        `json:"product_id"`
	SquareVariationID string           `json:"square_variation_id"`
	Name              string           `json:"name,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"` // nil when Square has no price
	Ordinal           int              `json:"ordinal"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
