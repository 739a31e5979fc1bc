package sync

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the manual sync trigger used by operators.
type Handler struct{ engine *Engine }

func NewHandler(engine *Engine) *Handler { return &Handler{engine: engine} }

// RegisterRoutes mounts the trigger behind the given guard middleware.
func (h *Handler) RegisterRoutes(r *chi.Mux, guard func(http.Handler) http.Handler) {
	r.With(guard).Post("/api/v1/sync", h.runSync)
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Run(r.Context())
	if err != nil {
		respond(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"summary": summary,
	})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
