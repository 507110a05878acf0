package http

import (
	"net/http"

	"github.com/quollsec/authgate/pkg/httpx"
)

// handleLivez reports process liveness.
//
//	GET /livez
func (h *Handler) handleLivez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness, including database connectivity.
//
//	GET /readyz
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.Ping(ctx); err != nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "not_ready", "database is unreachable")
		return
	}
	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
