package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amasijo/dulceria-backend/internal/modules/catalog"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

func catalogItem(id, name, categoryID string, variations ...square.CatalogObject) square.CatalogObject {
	return square.CatalogObject{
		Type:                  square.TypeItem,
		ID:                    id,
		PresentAtAllLocations: true,
		ItemData: &square.ItemData{
			Name:       name,
			CategoryID: categoryID,
			Variations: variations,
		},
	}
}

func TestRunCreatesNewProduct(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeClient{snapshot: &square.Snapshot{
		Objects: []square.CatalogObject{
			catalogItem("sq-1", "Alfajor", "cat-alf", variation("v1", 1299)),
			category("cat-alf", "ALFAJORES"),
		},
	}}
	e := newTestEngine(repo, client)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.Total)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1.0, summary.SuccessRate)

	p, err := repo.ProductBySquareID(context.Background(), "sq-1")
	require.NoError(t, err)
	assert.Equal(t, "Alfajor", p.Name)
	assert.Equal(t, "alfajor", p.Slug)
	assert.True(t, p.BasePrice.Equal(decimal.RequireFromString("12.99")), "got %s", p.BasePrice)
	assert.True(t, p.Active)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "v1", p.Variants[0].SquareVariationID)

	cat, err := repo.CategoryByName(context.Background(), "ALFAJORES")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, p.CategoryID)
}

func TestRunFallsBackToDefaultCategory(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeClient{snapshot: &square.Snapshot{
		Objects: []square.CatalogObject{
			catalogItem("sq-1", "Alfajor", "", variation("v1", 1299)),
		},
	}}
	e := newTestEngine(repo, client)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	p, err := repo.ProductBySquareID(context.Background(), "sq-1")
	require.NoError(t, err)
	def, err := repo.CategoryByName(context.Background(), "General")
	require.NoError(t, err)
	assert.Equal(t, def.ID, p.CategoryID)
}

func TestRunArchivesStaleProducts(t *testing.T) {
	repo := newFakeRepo()
	repo.products = append(repo.products,
		&catalog.Product{
			ID: uuid.New(), SquareID: "sq-old", Name: "Discontinued", Slug: "discontinued",
			Active: true, CreatedAt: time.Now().Add(-48 * time.Hour),
		},
		&catalog.Product{
			ID: uuid.New(), SquareID: "sq-young", Name: "Just added", Slug: "just-added",
			Active: true, CreatedAt: time.Now(),
		},
	)
	client := &fakeClient{snapshot: &square.Snapshot{}}
	e := newTestEngine(repo, client)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Archived)
	assert.Equal(t, 1.0, summary.SuccessRate) // empty catalog is a clean run

	old, err := repo.ProductBySquareID(context.Background(), "sq-old")
	require.NoError(t, err)
	assert.False(t, old.Active, "stale product should be archived, not deleted")

	young, err := repo.ProductBySquareID(context.Background(), "sq-young")
	require.NoError(t, err)
	assert.True(t, young.Active, "products younger than the cutoff are spared")
}

func TestRunIsolatesItemFailures(t *testing.T) {
	repo := newFakeRepo()
	// The broken item already exists locally; its failure this run must not
	// get it archived, because it is still present upstream.
	repo.products = append(repo.products, &catalog.Product{
		ID: uuid.New(), SquareID: "sq-bad", Name: "Broken", Slug: "broken",
		Active: true, CreatedAt: time.Now().Add(-48 * time.Hour),
	})
	client := &fakeClient{snapshot: &square.Snapshot{
		Objects: []square.CatalogObject{
			catalogItem("sq-1", "Alfajor", "", variation("v1", 1299)),
			{Type: square.TypeItem, ID: "sq-bad"}, // no item data
		},
	}}
	e := newTestEngine(repo, client)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 2, summary.Total)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "sq-bad", summary.Errors[0].SquareID)
	assert.Equal(t, 0.5, summary.SuccessRate)
	assert.Zero(t, summary.Archived)

	bad, err := repo.ProductBySquareID(context.Background(), "sq-bad")
	require.NoError(t, err)
	assert.True(t, bad.Active)
}

func TestRunIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	client := &fakeClient{snapshot: &square.Snapshot{
		Objects: []square.CatalogObject{
			catalogItem("sq-1", "Alfajor", "cat-alf", variation("v1", 1299)),
			category("cat-alf", "Alfajores"),
		},
	}}
	e := newTestEngine(repo, client)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	first, err := repo.ProductBySquareID(context.Background(), "sq-1")
	require.NoError(t, err)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)

	second, err := repo.ProductBySquareID(context.Background(), "sq-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "a second run updates in place")

	all, err := repo.ListProducts(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunPreservesCuratedImagesOnUpdate(t *testing.T) {
	repo := newFakeRepo()
	existing := &catalog.Product{
		ID: uuid.New(), SquareID: "sq-1", Name: "Alfajor", Slug: "alfajor",
		Images: []string{"/images/hero.jpg"},
		Active: true, CreatedAt: time.Now(),
	}
	repo.products = append(repo.products, existing)

	client := &fakeClient{snapshot: &square.Snapshot{
		Objects: []square.CatalogObject{
			catalogItem("sq-1", "Alfajor Renombrado", "", variation("v1", 1500)),
		},
	}}
	e := newTestEngine(repo, client)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	p, err := repo.ProductBySquareID(context.Background(), "sq-1")
	require.NoError(t, err)
	assert.Equal(t, "Alfajor Renombrado", p.Name)
	assert.Equal(t, []string{"/images/hero.jpg"}, p.Images, "curated images win over an empty synced set")
	assert.True(t, p.BasePrice.Equal(decimal.RequireFromString("15")))
}

func TestRunSelfHealsFromVariantConflict(t *testing.T) {
	repo := newFakeRepo()
	// A previous partial run stored the product under a different Square ID
	// but already owns variation v1.
	owner := &catalog.Product{
		ID: uuid.New(), SquareID: "sq-old-id", Name: "Alfajor", Slug: "alfajor-viejo",
		Active: true, CreatedAt: time.Now(),
		Variants: []*catalog.Variant{{ID: uuid.New(), SquareVariationID: "v1"}},
	}
	repo.products = append(repo.products, owner)

	client := &fakeClient{snapshot: &square.Snapshot{
		Objects: []square.CatalogObject{
			catalogItem("sq-new-id", "Alfajor", "", variation("v1", 1299)),
		},
	}}
	e := newTestEngine(repo, client)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Errors)

	healed, err := repo.ProductBySquareID(context.Background(), "sq-new-id")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, healed.ID, "the existing row absorbs the new identity")

	all, err := repo.ListProducts(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, all, 1, "no twin product is created")
}
