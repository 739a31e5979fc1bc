package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of an order. The progression is
// monotonic: PENDING → PROCESSING → READY/SHIPPING/OUT_FOR_DELIVERY →
// DELIVERED/COMPLETED, with CANCELLED as an absorbing state.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusProcessing     Status = "PROCESSING"
	StatusReady          Status = "READY"
	StatusShipping       Status = "SHIPPING"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// PaymentStatus represents the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// statusRank totally orders the lifecycle so a late or generic webhook event
// can never move an order backwards. READY, SHIPPING and OUT_FOR_DELIVERY
// share a tier: which one applies depends on the fulfillment method, and
// out-of-order delivery between them is harmless.
var statusRank = map[Status]int{
	StatusPending:        0,
	StatusProcessing:     1,
	StatusReady:          2,
	StatusShipping:       2,
	StatusOutForDelivery: 2,
	StatusDelivered:      3,
	StatusCompleted:      3,
	StatusCancelled:      4,
}

// Terminal reports whether the status accepts no further non-cancel updates.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanAdvance reports whether current may transition to next under the
// monotonic progression. Terminal statuses are never overwritten by
// non-terminal events; an explicit cancellation applies from any
// non-terminal state.
func CanAdvance(current, next Status) bool {
	if current == next {
		return false
	}
	if current.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return statusRank[next] >= statusRank[current]
}

// FulfillmentMethod indicates how an order reaches the customer.
type FulfillmentMethod string

const (
	MethodPickup   FulfillmentMethod = "PICKUP"
	MethodDelivery FulfillmentMethod = "DELIVERY"
	MethodShipment FulfillmentMethod = "SHIPMENT"
)

// Order is the local record of a storefront order, keyed by the Square order
// ID that every webhook event carries.
type Order struct {
	ID                uuid.UUID         `json:"id"`
	SquareOrderID     string            `json:"square_order_id"`
	OrderNumber       string            `json:"order_number"`
	Status            Status            `json:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	FulfillmentMethod FulfillmentMethod `json:"fulfillment_method,omitempty"`
	Total             decimal.Decimal   `json:"total"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	Metadata          json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CateringOrder is the catering counterpart of Order. Payments for catering
// jobs reference the same Square order IDs, so payment webhooks fall back to
// this table when no plain order matches.
type CateringOrder struct {
	ID            uuid.UUID       `json:"id"`
	SquareOrderID string          `json:"square_order_id"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	EventDate     *time.Time      `json:"event_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
