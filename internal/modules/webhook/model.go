package webhook

import "encoding/json"

// SignatureHeader is the header Square sends the request signature in.
const SignatureHeader = "X-Square-HmacSha256-Signature"

// Event is the envelope of every Square webhook notification.
type Event struct {
	Type       string    `json:"type"`
	EventID    string    `json:"event_id"`
	MerchantID string    `json:"merchant_id"`
	CreatedAt  string    `json:"created_at,omitempty"`
	Data       EventData `json:"data"`
}

// EventData wraps the event-type-specific payload.
type EventData struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Object json.RawMessage `json:"object"`
}

// Result is the envelope every webhook invocation responds with, whatever
// happened inside.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
