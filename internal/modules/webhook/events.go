package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/amasijo/dulceria-backend/internal/modules/order"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
)

// fulfillmentStatus maps (fulfillment method, Square fulfillment state) to a
// local order status. A miss falls through to the overall-state mapping.
var fulfillmentStatus = map[order.FulfillmentMethod]map[string]order.Status{
	order.MethodPickup: {
		"PROPOSED":  order.StatusProcessing,
		"RESERVED":  order.StatusProcessing,
		"PREPARED":  order.StatusReady,
		"COMPLETED": order.StatusCompleted,
		"CANCELED":  order.StatusCancelled,
	},
	order.MethodDelivery: {
		"PROPOSED":  order.StatusProcessing,
		"RESERVED":  order.StatusProcessing,
		"PREPARED":  order.StatusOutForDelivery,
		"COMPLETED": order.StatusDelivered,
		"CANCELED":  order.StatusCancelled,
	},
	order.MethodShipment: {
		"PROPOSED":  order.StatusProcessing,
		"RESERVED":  order.StatusProcessing,
		"PREPARED":  order.StatusShipping,
		"COMPLETED": order.StatusDelivered,
		"CANCELED":  order.StatusCancelled,
	},
}

// overallStatus maps a Square order's overall state to a local status. These
// are the least specific signals, so the monotonic guard decides whether they
// apply.
func overallStatus(state string) (order.Status, bool) {
	switch square.NormalizeState(state) {
	case "OPEN":
		return order.StatusProcessing, true
	case "COMPLETED":
		return order.StatusCompleted, true
	case "CANCELED":
		return order.StatusCancelled, true
	case "DRAFT":
		return order.StatusPending, true
	}
	return "", false
}

// paymentStatus maps a Square payment status to a local payment status.
func paymentStatus(status string) order.PaymentStatus {
	switch square.NormalizeState(status) {
	case "COMPLETED":
		return order.PaymentPaid
	case "FAILED", "CANCELED":
		return order.PaymentFailed
	default: // APPROVED, PENDING
		return order.PaymentPending
	}
}

type orderEventBody struct {
	OrderID string `json:"order_id"`
	State   string `json:"state,omitempty"`
	Version int    `json:"version,omitempty"`
}

type fulfillmentUpdate struct {
	FulfillmentUID string `json:"fulfillment_uid,omitempty"`
	OldState       string `json:"old_state,omitempty"`
	NewState       string `json:"new_state"`
}

type fulfillmentUpdatedBody struct {
	OrderID           string              `json:"order_id"`
	State             string              `json:"state,omitempty"`
	FulfillmentUpdate []fulfillmentUpdate `json:"fulfillment_update"`
}

type orderEventObject struct {
	OrderCreated       *orderEventBody         `json:"order_created,omitempty"`
	OrderUpdated       *orderEventBody         `json:"order_updated,omitempty"`
	FulfillmentUpdated *fulfillmentUpdatedBody `json:"order_fulfillment_updated,omitempty"`
}

func (h *Handler) handleCatalogEvent(ctx context.Context, evt Event) Result {
	if h.cache != nil {
		h.cache.InvalidatePattern("catalog")
	}
	summary, err := h.sync.Run(ctx)
	if err != nil {
		log.Printf("webhook: %s: catalog sync failed: %v", evt.Type, err)
		return Result{Success: false, Message: fmt.Sprintf("catalog sync failed: %v", err)}
	}
	return Result{Success: true, Message: fmt.Sprintf(
		"catalog sync complete: %d/%d items synced, %d errors",
		summary.Synced, summary.Total, len(summary.Errors))}
}

func (h *Handler) handleOrderEvent(ctx context.Context, evt Event) Result {
	var obj orderEventObject
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil {
		log.Printf("webhook: %s: bad order payload: %v", evt.Type, err)
		return Result{Success: false, Message: "unparseable order payload"}
	}

	// Fulfillment sub-events carry their own new_state; the fulfillment
	// method comes from the order record stored at checkout.
	if f := obj.FulfillmentUpdated; f != nil && len(f.FulfillmentUpdate) > 0 {
		newState := square.NormalizeState(f.FulfillmentUpdate[len(f.FulfillmentUpdate)-1].NewState)
		method, err := h.orders.Method(ctx, f.OrderID)
		if err != nil {
			log.Printf("webhook: %s: fulfillment method for %s: %v", evt.Type, f.OrderID, err)
			return Result{Success: false, Message: fmt.Sprintf("order %s not found", f.OrderID)}
		}
		if status, ok := fulfillmentStatus[method][newState]; ok {
			return h.applyStatus(ctx, f.OrderID, status)
		}
		log.Printf("webhook: no status for method=%s state=%s, falling back to order state", method, newState)
	}

	orderID := ""
	switch {
	case obj.OrderCreated != nil:
		orderID = obj.OrderCreated.OrderID
	case obj.OrderUpdated != nil:
		orderID = obj.OrderUpdated.OrderID
	case obj.FulfillmentUpdated != nil:
		orderID = obj.FulfillmentUpdated.OrderID
	}
	if orderID == "" {
		return Result{Success: false, Message: "order event without order_id"}
	}

	sq, err := h.client.RetrieveOrder(ctx, orderID)
	if err != nil {
		log.Printf("webhook: %s: retrieve order %s: %v", evt.Type, orderID, err)
		return Result{Success: false, Message: fmt.Sprintf("could not fetch order %s", orderID)}
	}
	status, ok := overallStatus(sq.State)
	if !ok {
		log.Printf("webhook: order %s has unknown state %q", orderID, sq.State)
		return Result{Success: true, Message: fmt.Sprintf("order state %q not handled", sq.State)}
	}
	return h.applyStatus(ctx, orderID, status)
}

func (h *Handler) applyStatus(ctx context.Context, squareOrderID string, status order.Status) Result {
	changed, err := h.orders.ApplyStatus(ctx, squareOrderID, status)
	if err != nil {
		log.Printf("webhook: apply status %s to %s: %v", status, squareOrderID, err)
		return Result{Success: false, Message: fmt.Sprintf("order %s update failed", squareOrderID)}
	}
	if !changed {
		return Result{Success: true, Message: fmt.Sprintf("order %s unchanged", squareOrderID)}
	}
	return Result{Success: true, Message: fmt.Sprintf("order %s set to %s", squareOrderID, status)}
}

func (h *Handler) handlePaymentEvent(ctx context.Context, evt Event) Result {
	var obj struct {
		Payment *square.Payment `json:"payment"`
	}
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil || obj.Payment == nil {
		log.Printf("webhook: %s: bad payment payload", evt.Type)
		return Result{Success: false, Message: "unparseable payment payload"}
	}
	if obj.Payment.OrderID == "" {
		return Result{Success: true, Message: "payment without order reference, nothing to update"}
	}

	status := paymentStatus(obj.Payment.Status)
	if err := h.orders.ApplyPaymentStatus(ctx, obj.Payment.OrderID, status); err != nil {
		log.Printf("webhook: %s: payment status for %s: %v", evt.Type, obj.Payment.OrderID, err)
		return Result{Success: false, Message: fmt.Sprintf("order %s payment update failed", obj.Payment.OrderID)}
	}
	return Result{Success: true, Message: fmt.Sprintf("order %s payment set to %s", obj.Payment.OrderID, status)}
}

func (h *Handler) handleRefundEvent(ctx context.Context, evt Event) Result {
	var obj struct {
		Refund *square.Refund `json:"refund"`
	}
	if err := json.Unmarshal(evt.Data.Object, &obj); err != nil || obj.Refund == nil {
		log.Printf("webhook: %s: bad refund payload", evt.Type)
		return Result{Success: false, Message: "unparseable refund payload"}
	}

	if square.NormalizeState(obj.Refund.Status) != "COMPLETED" {
		log.Printf("webhook: refund %s in status %s, not mutating", obj.Refund.ID, obj.Refund.Status)
		return Result{Success: true, Message: fmt.Sprintf("refund status %s noted, no change", obj.Refund.Status)}
	}
	if obj.Refund.OrderID == "" {
		return Result{Success: true, Message: "refund without order reference, nothing to update"}
	}
	if err := h.orders.ApplyPaymentStatus(ctx, obj.Refund.OrderID, order.PaymentRefunded); err != nil {
		log.Printf("webhook: %s: refund for %s: %v", evt.Type, obj.Refund.OrderID, err)
		return Result{Success: false, Message: fmt.Sprintf("order %s refund update failed", obj.Refund.OrderID)}
	}
	return Result{Success: true, Message: fmt.Sprintf("order %s marked refunded", obj.Refund.OrderID)}
}

// dispatch routes one verified event to its handler. Unrecognized types are
// reported as not handled, which is not an error.
func (h *Handler) dispatch(ctx context.Context, evt Event) Result {
	switch {
	case evt.Type == "catalog.version.updated" || strings.HasPrefix(evt.Type, "inventory."):
		return h.handleCatalogEvent(ctx, evt)
	case strings.HasPrefix(evt.Type, "order."):
		return h.handleOrderEvent(ctx, evt)
	case strings.HasPrefix(evt.Type, "payment."):
		return h.handlePaymentEvent(ctx, evt)
	case strings.HasPrefix(evt.Type, "refund."):
		return h.handleRefundEvent(ctx, evt)
	default:
		log.Printf("webhook: event type %q not handled", evt.Type)
		return Result{Success: true, Message: fmt.Sprintf("event type %q not handled", evt.Type)}
	}
}
