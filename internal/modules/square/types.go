package square

import "strings"

// Catalog object type discriminators used by the Square API.
const (
	TypeItem          = "ITEM"
	TypeItemVariation = "ITEM_VARIATION"
	TypeCategory      = "CATEGORY"
	TypeImage         = "IMAGE"
)

// Money is an amount in minor currency units (cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// CatalogObject is the polymorphic envelope Square wraps every catalog entity
// in. Exactly one of the *Data fields is populated, matching Type.
type CatalogObject struct {
	Type                  string             `json:"type"`
	ID                    string             `json:"id"`
	UpdatedAt             string             `json:"updated_at,omitempty"`
	IsDeleted             bool               `json:"is_deleted,omitempty"`
	PresentAtAllLocations bool               `json:"present_at_all_locations,omitempty"`
	ItemData              *ItemData          `json:"item_data,omitempty"`
	ItemVariationData     *ItemVariationData `json:"item_variation_data,omitempty"`
	CategoryData          *CategoryData      `json:"category_data,omitempty"`
	ImageData             *ImageData         `json:"image_data,omitempty"`
}

// ItemData describes a sellable catalog item and its variations.
type ItemData struct {
	Name                   string                  `json:"name"`
	Description            string                  `json:"description,omitempty"`
	DescriptionHTML        string                  `json:"description_html,omitempty"`
	DescriptionPlaintext   string                  `json:"description_plaintext,omitempty"`
	CategoryID             string                  `json:"category_id,omitempty"` // legacy single reference
	Categories             []CategoryRef           `json:"categories,omitempty"`  // modern ordered list
	Variations             []CatalogObject         `json:"variations,omitempty"`
	ImageIDs               []string                `json:"image_ids,omitempty"`
	Visibility             string                  `json:"visibility,omitempty"` // PUBLIC | PRIVATE
	AvailableOnline        *bool                   `json:"available_online,omitempty"`
	FoodAndBeverageDetails *FoodAndBeverageDetails `json:"food_and_beverage_details,omitempty"`
}

// FoodAndBeverageDetails is the optional nutrition block on a catalog item.
type FoodAndBeverageDetails struct {
	CalorieCount       *int                `json:"calorie_count,omitempty"`
	DietaryPreferences []DietaryPreference `json:"dietary_preferences,omitempty"`
	Ingredients        []Ingredient        `json:"ingredients,omitempty"`
}

// DietaryPreference is one dietary tag, either a Square standard name or a
// merchant-entered custom name.
type DietaryPreference struct {
	Type         string `json:"type,omitempty"`
	StandardName string `json:"standard_name,omitempty"`
	CustomName   string `json:"custom_name,omitempty"`
}

// Ingredient shares the standard/custom naming shape of dietary preferences.
type Ingredient = DietaryPreference

// CategoryRef is an entry in an item's ordered category list.
type CategoryRef struct {
	ID      string `json:"id"`
	Ordinal int64  `json:"ordinal,omitempty"`
}

// ItemVariationData describes one purchasable variation of an item. A
// variation without a price is valid.
type ItemVariationData struct {
	ItemID      string `json:"item_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Ordinal     int    `json:"ordinal,omitempty"`
	PricingType string `json:"pricing_type,omitempty"`
	PriceMoney  *Money `json:"price_money,omitempty"`
}

// CategoryData carries a category's display name.
type CategoryData struct {
	Name string `json:"name"`
}

// ImageData carries the hosted URL of a catalog image.
type ImageData struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// CategoryIDs returns the item's category references, preferring the modern
// ordered list over the legacy single ID.
func (o CatalogObject) CategoryIDs() []string {
	if o.ItemData == nil {
		return nil
	}
	if len(o.ItemData.Categories) > 0 {
		ids := make([]string, 0, len(o.ItemData.Categories))
		for _, ref := range o.ItemData.Categories {
			if ref.ID != "" {
				ids = append(ids, ref.ID)
			}
		}
		return ids
	}
	if o.ItemData.CategoryID != "" {
		return []string{o.ItemData.CategoryID}
	}
	return nil
}

// Snapshot is one point-in-time view of the external catalog. It is immutable
// once fetched and lives for a single sync run.
type Snapshot struct {
	Objects        []CatalogObject `json:"objects"`
	RelatedObjects []CatalogObject `json:"related_objects"`
}

// objectsOfType filters the snapshot's top-level objects by type.
func (s *Snapshot) objectsOfType(t string) []CatalogObject {
	var out []CatalogObject
	for _, obj := range s.Objects {
		if obj.Type == t {
			out = append(out, obj)
		}
	}
	return out
}

// Items returns the snapshot's top-level catalog items.
func (s *Snapshot) Items() []CatalogObject {
	return s.objectsOfType(TypeItem)
}

// Categories returns the snapshot's categories, wherever Square placed them.
func (s *Snapshot) Categories() []CatalogObject {
	cats := s.objectsOfType(TypeCategory)
	for _, obj := range s.RelatedObjects {
		if obj.Type == TypeCategory {
			cats = append(cats, obj)
		}
	}
	return cats
}

// RelatedImageURL looks up an image URL inline in the snapshot's related
// objects, avoiding a network call.
func (s *Snapshot) RelatedImageURL(imageID string) (string, bool) {
	for _, list := range [][]CatalogObject{s.RelatedObjects, s.Objects} {
		for _, obj := range list {
			if obj.Type == TypeImage && obj.ID == imageID && obj.ImageData != nil && obj.ImageData.URL != "" {
				return obj.ImageData.URL, true
			}
		}
	}
	return "", false
}

// ── Orders & payments ─────────────────────────────────────────────────────────

// Order is the subset of a Square order the webhook handler needs.
type Order struct {
	ID           string        `json:"id"`
	State        string        `json:"state"` // OPEN | COMPLETED | CANCELED
	Fulfillments []Fulfillment `json:"fulfillments,omitempty"`
	TotalMoney   *Money        `json:"total_money,omitempty"`
}

// Fulfillment is one fulfillment leg of an order.
type Fulfillment struct {
	UID   string `json:"uid,omitempty"`
	Type  string `json:"type"`  // PICKUP | DELIVERY | SHIPMENT
	State string `json:"state"` // PROPOSED | RESERVED | PREPARED | COMPLETED | CANCELED | FAILED
}

// Payment is the subset of a Square payment the webhook handler needs.
type Payment struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id,omitempty"`
	Status      string `json:"status"` // APPROVED | PENDING | COMPLETED | CANCELED | FAILED
	AmountMoney *Money `json:"amount_money,omitempty"`
}

// Refund is the subset of a Square refund the webhook handler needs.
type Refund struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Status    string `json:"status"` // PENDING | COMPLETED | REJECTED | FAILED
}

// NormalizeState upper-cases and trims a Square state string.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
