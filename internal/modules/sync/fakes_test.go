package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/amasijo/dulceria-backend/internal/modules/catalog"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

// fakeRepo is an in-memory catalog.Repository. It enforces the same uniqueness
// rules as the real store so conflict-recovery paths can be exercised.
type fakeRepo struct {
	mu         stdsync.Mutex
	categories []*catalog.Category
	products   []*catalog.Product

	createProductErr error // injected once, cleared on use
}

func newFakeRepo() *fakeRepo { return &fakeRepo{} }

func (f *fakeRepo) CategoryBySquareID(ctx context.Context, squareID string) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.SquareID != nil && *c.SquareID == squareID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeRepo) CategoryByName(ctx context.Context, name string) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if equalFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeRepo) CategoryBySlug(ctx context.Context, slug string) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeRepo) ListCategories(ctx context.Context) ([]*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*catalog.Category, len(f.categories))
	copy(out, f.categories)
	return out, nil
}

func (f *fakeRepo) CreateCategory(ctx context.Context, c *catalog.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if equalFold(existing.Name, c.Name) {
			return uniqueViolation("categories_name_key")
		}
		if existing.Slug == c.Slug {
			return uniqueViolation("categories_slug_key")
		}
	}
	cp := *c
	cp.CreatedAt = time.Now()
	f.categories = append(f.categories, &cp)
	return nil
}

func (f *fakeRepo) SetCategorySquareID(ctx context.Context, id uuid.UUID, squareID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.categories {
		if c.ID == id {
			c.SquareID = &squareID
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (f *fakeRepo) ProductBySquareID(ctx context.Context, squareID string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.SquareID == squareID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeRepo) ProductByVariationID(ctx context.Context, variationID string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		for _, v := range p.Variants {
			if v.SquareVariationID == variationID {
				cp := *p
				return &cp, nil
			}
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeRepo) ProductBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeRepo) ListProducts(ctx context.Context, activeOnly bool) ([]*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*catalog.Product
	for _, p := range f.products {
		if activeOnly && !p.Active {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRepo) CreateProduct(ctx context.Context, p *catalog.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createProductErr != nil {
		err := f.createProductErr
		f.createProductErr = nil
		return err
	}
	for _, existing := range f.products {
		if existing.SquareID == p.SquareID {
			return uniqueViolation("products_square_id_key")
		}
		if existing.Slug == p.Slug {
			return uniqueViolation("products_slug_key")
		}
		for _, ev := range existing.Variants {
			for _, nv := range p.Variants {
				if ev.SquareVariationID == nv.SquareVariationID {
					return uniqueViolation("product_variants_square_variation_id_key")
				}
			}
		}
	}
	cp := *p
	cp.CreatedAt = time.Now()
	f.products = append(f.products, &cp)
	return nil
}

func (f *fakeRepo) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.products {
		if existing.ID == p.ID {
			cp := *p
			cp.CreatedAt = existing.CreatedAt
			cp.UpdatedAt = time.Now()
			f.products[i] = &cp
			return nil
		}
	}
	return catalog.ErrNotFound
}

func (f *fakeRepo) ArchiveStale(ctx context.Context, validSquareIDs []string, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	valid := make(map[string]bool, len(validSquareIDs))
	for _, id := range validSquareIDs {
		valid[id] = true
	}
	var archived int64
	for _, p := range f.products {
		if p.Active && !valid[p.SquareID] && p.CreatedAt.Before(cutoff) {
			p.Active = false
			archived++
		}
	}
	return archived, nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// uniqueViolation mimics lib/pq's duplicate-key error shape.
func uniqueViolation(constraint string) error {
	return &pq.Error{
		Code:       "23505",
		Constraint: constraint,
		Message:    fmt.Sprintf("duplicate key value violates unique constraint %q", constraint),
	}
}

// fakeClient is a canned CatalogClient.
type fakeClient struct {
	snapshot *square.Snapshot
	objects  map[string]*square.CatalogObject
}

func (c *fakeClient) SearchCatalog(ctx context.Context) (*square.Snapshot, error) {
	if c.snapshot == nil {
		return &square.Snapshot{}, nil
	}
	return c.snapshot, nil
}

func (c *fakeClient) RetrieveCatalogObject(ctx context.Context, id string) (*square.CatalogObject, error) {
	if obj, ok := c.objects[id]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("object %s not found", id)
}
