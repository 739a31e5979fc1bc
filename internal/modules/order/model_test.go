package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		next    Status
		want    bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"processing to ready", StatusProcessing, StatusReady, true},
		{"ready to completed", StatusReady, StatusCompleted, true},
		{"same status is a no-op", StatusProcessing, StatusProcessing, false},

		// A late generic OPEN event must never downgrade a prepared order.
		{"ready not downgraded to processing", StatusReady, StatusProcessing, false},
		{"delivered not downgraded to processing", StatusDelivered, StatusProcessing, false},
		{"out for delivery not downgraded to pending", StatusOutForDelivery, StatusPending, false},

		// READY, SHIPPING and OUT_FOR_DELIVERY share a tier.
		{"ready to out for delivery", StatusReady, StatusOutForDelivery, true},
		{"shipping to ready", StatusShipping, StatusReady, true},

		// Terminal statuses accept nothing further.
		{"completed stays completed", StatusCompleted, StatusProcessing, false},
		{"completed not cancellable", StatusCompleted, StatusCancelled, false},
		{"cancelled stays cancelled", StatusCancelled, StatusProcessing, false},
		{"cancelled not re-cancellable", StatusCancelled, StatusCancelled, false},

		// Explicit cancellation applies from any non-terminal state.
		{"pending cancellable", StatusPending, StatusCancelled, true},
		{"delivered cancellable", StatusDelivered, StatusCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAdvance(tt.current, tt.next))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusDelivered.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestMethodFromMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		want     FulfillmentMethod
	}{
		{"empty defaults to pickup", "", MethodPickup},
		{"malformed defaults to pickup", "{not json", MethodPickup},
		{"fulfillment method", `{"fulfillment_method":"delivery"}`, MethodDelivery},
		{"legacy delivery method key", `{"delivery_method":"shipping"}`, MethodShipment},
		{"nationwide alias", `{"fulfillment_method":"NATIONWIDE"}`, MethodShipment},
		{"local delivery alias", `{"delivery_method":"local_delivery"}`, MethodDelivery},
		{"unknown defaults to pickup", `{"fulfillment_method":"teleport"}`, MethodPickup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, methodFromMetadata([]byte(tt.metadata)))
		})
	}
}
