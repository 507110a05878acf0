package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quollsec/authgate/pkg/slogx"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slogx.FromContext(ctx).Error("failed to encode json response", "error", err)
	}
}

// NoCache sets headers forbidding any caching of the response. Applied to
// everything carrying credentials or secrets.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
