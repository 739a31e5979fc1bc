package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Service applies webhook-driven state transitions to local order records.
type Service interface {
	// ApplyStatus advances an order to next if the monotonic progression
	// allows it. Returns whether anything changed; a guarded-off transition
	// is not an error.
	ApplyStatus(ctx context.Context, squareOrderID string, next Status) (bool, error)

	// ApplyPaymentStatus updates the payment status of the order with the
	// given Square order ID, falling back to the catering order table when no
	// plain order matches.
	ApplyPaymentStatus(ctx context.Context, squareOrderID string, status PaymentStatus) error

	// Method returns the order's fulfillment method, read from the stored
	// column or inferred from the order metadata.
	Method(ctx context.Context, squareOrderID string) (FulfillmentMethod, error)
}

type service struct{ repo Repository }

// NewService creates a new order state service.
func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) ApplyStatus(ctx context.Context, squareOrderID string, next Status) (bool, error) {
	o, err := s.repo.BySquareOrderID(ctx, squareOrderID)
	if err != nil {
		return false, fmt.Errorf("order %s: %w", squareOrderID, err)
	}
	if !CanAdvance(o.Status, next) {
		log.Printf("order: %s stays %s, ignoring %s", squareOrderID, o.Status, next)
		return false, nil
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, next); err != nil {
		return false, fmt.Errorf("order %s: update status: %w", squareOrderID, err)
	}
	log.Printf("order: %s advanced %s -> %s", squareOrderID, o.Status, next)
	return true, nil
}

func (s *service) ApplyPaymentStatus(ctx context.Context, squareOrderID string, status PaymentStatus) error {
	if o, err := s.repo.BySquareOrderID(ctx, squareOrderID); err == nil {
		return s.repo.UpdatePaymentStatus(ctx, o.ID, status)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("order %s: %w", squareOrderID, err)
	}

	co, err := s.repo.CateringBySquareOrderID(ctx, squareOrderID)
	if err != nil {
		return fmt.Errorf("order %s: no order or catering order: %w", squareOrderID, err)
	}
	return s.repo.UpdateCateringPaymentStatus(ctx, co.ID, status)
}

func (s *service) Method(ctx context.Context, squareOrderID string) (FulfillmentMethod, error) {
	o, err := s.repo.BySquareOrderID(ctx, squareOrderID)
	if err != nil {
		return "", fmt.Errorf("order %s: %w", squareOrderID, err)
	}
	if o.FulfillmentMethod != "" {
		return o.FulfillmentMethod, nil
	}
	return methodFromMetadata(o.Metadata), nil
}

// methodFromMetadata digs the fulfillment method out of the order metadata
// blob that checkout stored. Defaults to pickup, the storefront's most common
// method.
func methodFromMetadata(metadata json.RawMessage) FulfillmentMethod {
	if len(metadata) == 0 {
		return MethodPickup
	}
	var meta struct {
		FulfillmentMethod string `json:"fulfillment_method"`
		DeliveryMethod    string `json:"delivery_method"`
	}
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return MethodPickup
	}
	raw := meta.FulfillmentMethod
	if raw == "" {
		raw = meta.DeliveryMethod
	}
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DELIVERY", "LOCAL_DELIVERY":
		return MethodDelivery
	case "SHIPMENT", "SHIPPING", "NATIONWIDE":
		return MethodShipment
	default:
		return MethodPickup
	}
}
