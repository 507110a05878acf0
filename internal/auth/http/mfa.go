package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/internal/auth/store"
	"github.com/quollsec/authgate/pkg/httpx"
	"github.com/quollsec/authgate/pkg/totpx"
)

type enrollResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	// QRCode is a base64-encoded PNG; omitted when rendering failed, in
	// which case the secret and URI still allow manual entry.
	QRCode  string `json:"qr_code,omitempty"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// handleMFAEnroll provisions a fresh TOTP secret for the authenticated user.
//
//	POST /v1/auth/mfa/totp
func (h *Handler) handleMFAEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		writeError(ctx, w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	resp, err := h.Enrollment.StartEnrollment(ctx, userID)
	switch {
	case err == nil, errors.Is(err, totpx.ErrRenderFailed):
		// A failed render degrades to manual entry; everything else is
		// fatal.
	case errors.Is(err, store.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "user_not_found", "account no longer exists")
		return
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		writeError(ctx, w, http.StatusConflict, "mfa_already_enabled",
			"a second factor is already active; disable it before re-enrolling")
		return
	default:
		writeInternalError(ctx, w, err)
		return
	}

	out := enrollResponse{
		Secret:  resp.Secret,
		URI:     resp.URI,
		Issuer:  resp.Issuer,
		Account: resp.Account,
	}
	if len(resp.QRCode) > 0 {
		out.QRCode = base64.StdEncoding.EncodeToString(resp.QRCode)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(ctx, w, http.StatusOK, out)
}

type verifyRequest struct {
	Code string `json:"code"`
}

// handleMFAVerify confirms a pending enrollment with a current code.
//
//	POST /v1/auth/mfa/totp/verify
func (h *Handler) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		writeError(ctx, w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	err := h.Enrollment.ConfirmEnrollment(ctx, userID, req.Code, time.Now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "user_not_found", "account no longer exists")
		return
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		writeError(ctx, w, http.StatusConflict, "mfa_already_enabled", "a second factor is already active")
		return
	case errors.Is(err, service.ErrEnrollmentNotPending):
		writeError(ctx, w, http.StatusConflict, "enrollment_not_pending", "no enrollment in progress; start one first")
		return
	case errors.Is(err, service.ErrEnrollmentConflict):
		writeError(ctx, w, http.StatusConflict, "enrollment_conflict", "enrollment was restarted; scan the newest secret")
		return
	case errors.Is(err, service.ErrInvalidCode):
		writeError(ctx, w, http.StatusUnauthorized, "invalid_code", "one-time code is incorrect")
		return
	default:
		writeInternalError(ctx, w, err)
		return
	}

	httpx.WriteJSON(ctx, w, http.StatusOK, map[string]string{"status": "enabled"})
}

// handleMFADisable deactivates the second factor.
//
//	DELETE /v1/auth/mfa/totp
func (h *Handler) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		writeError(ctx, w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return
	}

	err := h.Enrollment.Disable(ctx, userID, time.Now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "user_not_found", "account no longer exists")
		return
	case errors.Is(err, service.ErrMFANotEnabled):
		writeError(ctx, w, http.StatusConflict, "mfa_not_enabled", "no second factor is active")
		return
	default:
		writeInternalError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
