package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/pkg/httpx"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegister creates a new account.
//
//	POST /v1/auth/register
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	user, err := h.Users.Register(ctx, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidUsername):
		writeError(ctx, w, http.StatusBadRequest, "invalid_username",
			"username must be 3-32 characters of letters, digits, dot, underscore or hyphen")
		return
	case errors.Is(err, service.ErrWeakPassword):
		writeError(ctx, w, http.StatusBadRequest, "weak_password",
			"password must be between 8 and 128 characters")
		return
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(ctx, w, http.StatusConflict, "username_taken", "username is already registered")
		return
	default:
		writeInternalError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusCreated, domain.IdentityOf(user))
}
