package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

func TestExtractNutritionNilWithoutBlock(t *testing.T) {
	assert.Nil(t, extractNutrition(nil))
	assert.Nil(t, extractNutrition(&square.ItemData{Name: "Alfajor"}))
}

func TestExtractNutrition(t *testing.T) {
	calories := 420
	data := &square.ItemData{
		Name: "Alfajor de Maicena",
		FoodAndBeverageDetails: &square.FoodAndBeverageDetails{
			CalorieCount: &calories,
			DietaryPreferences: []square.DietaryPreference{
				{StandardName: "VEGETARIAN"},
				{CustomName: " Sin conservantes "},
			},
			Ingredients: []square.Ingredient{
				{CustomName: "Wheat flour"},
				{CustomName: "Dulce de leche"},
				{CustomName: "Coconut"},
			},
		},
	}

	n := extractNutrition(data)
	require.NotNil(t, n)
	require.NotNil(t, n.Calories)
	assert.Equal(t, 420, *n.Calories)
	assert.Equal(t, []string{"vegetarian", "sin conservantes"}, n.DietaryPreferences)
	assert.Equal(t, "wheat flour, dulce de leche, coconut", n.Ingredients)
	assert.Equal(t, []string{"dairy", "gluten", "tree nuts"}, n.Allergens)
	assert.NotEmpty(t, n.Raw)
}

func TestInferAllergens(t *testing.T) {
	tests := []struct {
		name        string
		ingredients string
		want        []string
	}{
		{"empty", "", nil},
		{"no matches", "sugar, water, salt", nil},
		{"dairy via dulce de leche", "dulce de leche, sugar", []string{"dairy"}},
		{"egg and gluten", "egg yolk, wheat flour", []string{"eggs", "gluten"}},
		{"sorted output", "walnut, milk, sesame", []string{"dairy", "sesame", "tree nuts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferAllergens(tt.ingredients))
		})
	}
}
