package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/amasijo/dulceria-backend/internal/modules/catalog"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

// curatedBucketHost serves images uploaded by hand through the admin panel.
// Anything hosted there, or under a local path, is considered manually
// curated and wins over a synced set that is not strictly larger.
const curatedBucketHost = "assets.amasijo.ar"

// categoryNameOverrides translates Square category names from the current
// menu scheme onto local display names.
var categoryNameOverrides = map[string]string{
	"alfajores clasicos":  "Alfajores",
	"alfajores premium":   "Alfajores",
	"facturas y medialunas": "Facturas",
}

// legacyCategoryNames covers names that predate the current scheme.
var legacyCategoryNames = map[string]string{
	"dulces":    "Alfajores",
	"panaderia": "Facturas",
	"bebidas":   "Cafeteria",
}

func mapCategoryName(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if name, ok := categoryNameOverrides[key]; ok {
		return name
	}
	if name, ok := legacyCategoryNames[key]; ok {
		return name
	}
	return strings.TrimSpace(raw)
}

// processItem maps one external catalog item with its variations onto a local
// product row. Any failure here is the caller's to record; it never aborts
// the batch.
func (e *Engine) processItem(ctx context.Context, obj square.CatalogObject, run *runState) error {
	if obj.ItemData == nil {
		return fmt.Errorf("item %s has no item data", obj.ID)
	}
	data := obj.ItemData

	syncedImages := e.images.Resolve(ctx, data.ImageIDs, run.snapshot)

	existing, err := e.repo.ProductBySquareID(ctx, obj.ID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("lookup product: %w", err)
	}

	cat := e.resolveItemCategory(ctx, obj, run)
	description := e.sanitizeDescription(data)
	price := basePrice(data.Variations)
	variants := buildVariants(data.Variations)
	nutrition := extractNutrition(data)
	active := itemActive(obj)

	if existing != nil {
		existing.Name = data.Name
		existing.Description = description
		existing.BasePrice = price
		existing.Images = chooseImages(existing.Images, syncedImages)
		existing.CategoryID = cat.ID
		existing.Active = active
		applyNutrition(existing, nutrition)
		for _, v := range variants {
			v.ProductID = existing.ID
		}
		existing.Variants = variants
		if err := e.store(ctx, func() error { return e.repo.UpdateProduct(ctx, existing) }); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	}

	p := &catalog.Product{
		ID:          uuid.New(),
		SquareID:    obj.ID,
		Name:        data.Name,
		Slug:        slug.Make(data.Name),
		Description: description,
		BasePrice:   price,
		Images:      syncedImages, // new products take the external set as-is
		CategoryID:  cat.ID,
		Active:      active,
		Variants:    variants,
	}
	applyNutrition(p, nutrition)
	for _, v := range variants {
		v.ProductID = p.ID
	}

	err = e.store(ctx, func() error { return e.repo.CreateProduct(ctx, p) })
	if constraint, conflict := catalog.ConstraintViolation(err); conflict {
		if strings.Contains(constraint, "variation") {
			// A previous partial failure left these variants attached to an
			// existing row; update that row instead of creating a twin.
			if healed := e.healFromVariantConflict(ctx, p, variants); healed {
				return nil
			}
		}
		p.Slug = fmt.Sprintf("%s-%d", p.Slug, time.Now().UnixMilli())
		log.Printf("sync: create of %q hit constraint %s, retrying with slug %s", data.Name, constraint, p.Slug)
		err = e.store(ctx, func() error { return e.repo.CreateProduct(ctx, p) })
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (e *Engine) healFromVariantConflict(ctx context.Context, p *catalog.Product, variants []*catalog.Variant) bool {
	for _, v := range variants {
		owner, err := e.repo.ProductByVariationID(ctx, v.SquareVariationID)
		if err != nil {
			continue
		}
		log.Printf("sync: variation %s already owned by product %s, updating it instead", v.SquareVariationID, owner.SquareID)
		owner.SquareID = p.SquareID
		owner.Name = p.Name
		owner.Description = p.Description
		owner.BasePrice = p.BasePrice
		owner.Images = p.Images
		owner.CategoryID = p.CategoryID
		owner.Active = p.Active
		owner.Calories = p.Calories
		owner.DietaryPreferences = p.DietaryPreferences
		owner.Ingredients = p.Ingredients
		owner.Allergens = p.Allergens
		owner.Nutrition = p.Nutrition
		for _, pv := range variants {
			pv.ProductID = owner.ID
		}
		owner.Variants = variants
		if err := e.store(ctx, func() error { return e.repo.UpdateProduct(ctx, owner) }); err != nil {
			log.Printf("sync: self-heal update for %s failed: %v", owner.SquareID, err)
			return false
		}
		return true
	}
	return false
}

func (e *Engine) resolveItemCategory(ctx context.Context, obj square.CatalogObject, run *runState) *catalog.Category {
	squareCatID := ""
	if ids := obj.CategoryIDs(); len(ids) > 0 {
		squareCatID = ids[0]
	}
	if mapped, ok := run.remap[squareCatID]; ok {
		squareCatID = mapped
	}
	rawName := run.categoryNames[squareCatID]
	if squareCatID == "" || rawName == "" {
		return run.defaultCategory
	}

	cat, err := e.ensureCategory(ctx, squareCatID, mapCategoryName(rawName))
	if err != nil {
		log.Printf("sync: category resolution for item %s failed, falling back to default: %v", obj.ID, err)
		return run.defaultCategory
	}
	return cat
}

// sanitizeDescription prefers the HTML description over the plaintext ones
// and strips disallowed markup. The result always overwrites the stored
// description, even when empty, so partial formatting edits propagate.
func (e *Engine) sanitizeDescription(data *square.ItemData) string {
	raw := data.DescriptionHTML
	if raw == "" {
		raw = data.Description
	}
	if raw == "" {
		raw = data.DescriptionPlaintext
	}
	return strings.TrimSpace(e.sanitizer.Sanitize(raw))
}

func validVariation(v square.CatalogObject) bool {
	return v.Type == square.TypeItemVariation && v.ID != "" && v.ItemVariationData != nil
}

// basePrice derives the product's base price from the first valid variation.
// A valid variation without price data yields a zero base price.
func basePrice(variations []square.CatalogObject) decimal.Decimal {
	for _, v := range variations {
		if !validVariation(v) {
			continue
		}
		if v.ItemVariationData.PriceMoney == nil {
			return decimal.Zero
		}
		return decimal.New(v.ItemVariationData.PriceMoney.Amount, -2)
	}
	return decimal.Zero
}

// buildVariants maps valid variations to local variant rows. A variation
// without price data yields a variant with a null price, not a failure.
func buildVariants(variations []square.CatalogObject) []*catalog.Variant {
	var variants []*catalog.Variant
	for i, v := range variations {
		if !validVariation(v) {
			continue
		}
		variant := &catalog.Variant{
			ID:                uuid.New(),
			SquareVariationID: v.ID,
			Name:              v.ItemVariationData.Name,
			Ordinal:           i,
		}
		if money := v.ItemVariationData.PriceMoney; money != nil {
			price := decimal.New(money.Amount, -2)
			variant.Price = &price
		}
		variants = append(variants, variant)
	}
	return variants
}

// itemActive reports whether the item should be visible locally. Each failing
// condition is logged on its own.
func itemActive(obj square.CatalogObject) bool {
	active := true
	if obj.IsDeleted {
		log.Printf("sync: item %s is marked deleted", obj.ID)
		active = false
	}
	data := obj.ItemData
	if data.AvailableOnline != nil && !*data.AvailableOnline {
		log.Printf("sync: item %s is not available online", obj.ID)
		active = false
	}
	if !obj.PresentAtAllLocations {
		log.Printf("sync: item %s is not present at all locations", obj.ID)
		active = false
	}
	if strings.EqualFold(data.Visibility, "PRIVATE") {
		log.Printf("sync: item %s visibility is private", obj.ID)
		active = false
	}
	return active
}

// chooseImages applies the manual-vs-synced precedence policy on update:
// operator-curated images survive unless the synced set is strictly larger.
func chooseImages(existing, synced []string) []string {
	if hasManualImages(existing) && len(synced) <= len(existing) {
		return existing
	}
	return synced
}

func hasManualImages(urls []string) bool {
	for _, u := range urls {
		if isManualImage(u) {
			return true
		}
	}
	return false
}

func isManualImage(u string) bool {
	if strings.HasPrefix(u, "/images/") {
		return true
	}
	if strings.Contains(u, curatedBucketHost) {
		return true
	}
	// Anything not tagged as a Square-hosted URL counts as curated.
	return !strings.Contains(u, "square")
}

func applyNutrition(p *catalog.Product, n *Nutrition) {
	if n == nil {
		p.Calories = nil
		p.DietaryPreferences = nil
		p.Ingredients = ""
		p.Allergens = nil
		p.Nutrition = nil
		return
	}
	p.Calories = n.Calories
	p.DietaryPreferences = n.DietaryPreferences
	p.Ingredients = n.Ingredients
	p.Allergens = n.Allergens
	p.Nutrition = n.Raw
}
