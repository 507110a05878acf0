// Package http exposes the authentication service over a JSON API.
package http

import (
	"context"
	"net/http"

	"github.com/quollsec/authgate/pkg/httpx"
	"github.com/quollsec/authgate/pkg/slogx"
)

type apiError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(ctx, w, status, apiError{Code: code, Description: description})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter, err error) {
	slogx.FromContext(ctx).Error("request failed", "error", err)
	writeError(ctx, w, http.StatusInternalServerError, "server_error", "an internal error occurred")
}
