package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amasijo/dulceria-backend/internal/cache"
	"github.com/amasijo/dulceria-backend/internal/modules/order"
	"github.com/amasijo/dulceria-backend/internal/modules/square"
	"github.com/amasijo/dulceria-backend/internal/modules/sync"
)

// Syncer runs a full catalog sync in response to catalog-changed events.
type Syncer interface {
	Run(ctx context.Context) (*sync.Summary, error)
}

// OrderFetcher fetches full order details when an event does not carry
// enough state on its own.
type OrderFetcher interface {
	RetrieveOrder(ctx context.Context, id string) (*square.Order, error)
}

// Config holds the webhook handler settings.
type Config struct {
	// SignatureKey is the shared secret Square signs notifications with.
	SignatureKey string
	// NotificationURL is the exact URL registered with Square; it is part of
	// the signed payload.
	NotificationURL string
}

// Handler processes inbound Square webhook notifications. It is stateless per
// invocation; delivery is at-least-once and every mutation it performs is
// idempotent.
type Handler struct {
	cfg    Config
	sync   Syncer
	orders order.Service
	client OrderFetcher
	cache  *cache.TTLCache
}

// NewHandler creates a webhook handler.
func NewHandler(cfg Config, syncer Syncer, orders order.Service, client OrderFetcher, cacheStore *cache.TTLCache) *Handler {
	return &Handler{cfg: cfg, sync: syncer, orders: orders, client: client, cache: cacheStore}
}

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Post("/api/webhooks/square", h.receive)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, Result{Success: false, Message: "unreadable body"})
		return
	}

	if !VerifySignature(r.Header.Get(SignatureHeader), h.cfg.NotificationURL, body, h.cfg.SignatureKey) {
		log.Printf("webhook: rejected request with invalid signature")
		respond(w, http.StatusUnauthorized, Result{Success: false, Message: "invalid signature"})
		return
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		log.Printf("webhook: unparseable event: %v", err)
		respond(w, http.StatusBadRequest, Result{Success: false, Message: "unparseable event"})
		return
	}

	log.Printf("webhook: received %s (%s)", evt.Type, evt.EventID)
	result := h.dispatch(r.Context(), evt)
	respond(w, http.StatusOK, result)
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
