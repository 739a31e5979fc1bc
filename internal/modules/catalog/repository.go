package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = errors.New("catalog: not found")

// Repository defines the interface for the local product catalog store.
type Repository interface {
	// ── Categories ──────────────────────────────────────────────────────────
	CategoryBySquareID(ctx context.Context, squareID string) (*Category, error)
	// CategoryByName matches case-insensitively on the trimmed name.
	CategoryByName(ctx context.Context, name string) (*Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	// SetCategorySquareID backfills a Square ID onto a row that lacked one.
	SetCategorySquareID(ctx context.Context, id uuid.UUID, squareID string) error

	// ── Products ────────────────────────────────────────────────────────────
	ProductBySquareID(ctx context.Context, squareID string) (*Product, error)
	// ProductByVariationID finds the product owning a variant, used to
	// self-heal from a partially failed previous sync.
	ProductByVariationID(ctx context.Context, variationID string) (*Product, error)
	ProductBySlug(ctx context.Context, slug string) (*Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	// UpdateProduct rewrites all product fields and replaces the variant set
	// wholesale inside a single transaction.
	UpdateProduct(ctx context.Context, p *Product) error
	// ArchiveStale flags inactive every active product whose Square ID is not
	// in validSquareIDs and that was created before cutoff. Rows are never
	// deleted. Returns the number of archived products.
	ArchiveStale(ctx context.Context, validSquareIDs []string, cutoff time.Time) (int64, error)
}
