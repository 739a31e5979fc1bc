package sync

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

// Nutrition is the metadata extracted opportunistically from a Square
// food-and-beverage block.
type Nutrition struct {
	Calories           *int
	DietaryPreferences []string
	Ingredients        string
	Allergens          []string
	Raw                json.RawMessage
}

// allergenVocabulary maps canonical allergen names to the ingredient keywords
// that betray them.
var allergenVocabulary = map[string][]string{
	"dairy":     {"milk", "butter", "cream", "cheese", "dulce de leche", "condensed milk", "yogurt"},
	"eggs":      {"egg", "yolk", "meringue", "albumen"},
	"gluten":    {"wheat", "flour", "gluten", "barley", "rye", "semolina"},
	"peanuts":   {"peanut"},
	"sesame":    {"sesame", "tahini"},
	"soy":       {"soy", "lecithin"},
	"tree nuts": {"almond", "walnut", "hazelnut", "pecan", "cashew", "pistachio", "coconut"},
}

// extractNutrition pulls calories, dietary tags, ingredients and inferred
// allergens from an item's nutrition block. The raw block is kept verbatim
// for forward compatibility. Returns nil when the item carries no block.
func extractNutrition(data *square.ItemData) *Nutrition {
	if data == nil || data.FoodAndBeverageDetails == nil {
		return nil
	}
	details := data.FoodAndBeverageDetails

	n := &Nutrition{Calories: details.CalorieCount}
	for _, pref := range details.DietaryPreferences {
		if name := preferenceName(pref); name != "" {
			n.DietaryPreferences = append(n.DietaryPreferences, name)
		}
	}

	var parts []string
	for _, ing := range details.Ingredients {
		if name := preferenceName(ing); name != "" {
			parts = append(parts, name)
		}
	}
	n.Ingredients = strings.Join(parts, ", ")
	n.Allergens = inferAllergens(n.Ingredients)

	if raw, err := json.Marshal(details); err == nil {
		n.Raw = raw
	}
	return n
}

func preferenceName(p square.DietaryPreference) string {
	if p.StandardName != "" {
		return strings.ToLower(p.StandardName)
	}
	return strings.ToLower(strings.TrimSpace(p.CustomName))
}

// inferAllergens keyword-matches the fixed allergen vocabulary against the
// free-text ingredients.
func inferAllergens(ingredients string) []string {
	if ingredients == "" {
		return nil
	}
	text := strings.ToLower(ingredients)
	var found []string
	for allergen, keywords := range allergenVocabulary {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				found = append(found, allergen)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}
