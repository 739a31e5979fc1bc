package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = errors.New("order: not found")

// Repository defines the interface for local order state storage.
type Repository interface {
	BySquareOrderID(ctx context.Context, squareOrderID string) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error

	CateringBySquareOrderID(ctx context.Context, squareOrderID string) (*CateringOrder, error)
	UpdateCateringPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
}
