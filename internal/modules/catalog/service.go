package catalog

import "context"

// Service defines the read-side catalog logic consumed by the storefront.
type Service interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	ListCategories(ctx context.Context) ([]*Category, error)
}

type service struct{ repo Repository }

// NewService creates a new catalog service.
func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) ListProducts(ctx context.Context, activeOnly bool) ([]*Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	return s.repo.ProductBySlug(ctx, slug)
}

func (s *service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.repo.ListCategories(ctx)
}
