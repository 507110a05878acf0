package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/pkg/httpx"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SecondFactorRequired bool            `json:"second_factor_required"`
	ChallengeToken       string          `json:"challenge_token,omitempty"`
	SessionToken         string          `json:"session_token,omitempty"`
	User                 domain.Identity `json:"user"`
}

// handleLogin runs the password factor.
//
//	POST /v1/auth/login
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	res, err := h.Login.SubmitPassword(ctx, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(ctx, w, http.StatusUnauthorized, "invalid_credentials", "username or password is incorrect")
		return
	default:
		writeInternalError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(ctx, w, http.StatusOK, loginResponse{
		SecondFactorRequired: res.SecondFactorRequired,
		ChallengeToken:       res.ChallengeToken,
		SessionToken:         res.SessionToken,
		User:                 res.User,
	})
}

type otpRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// handleLoginOTP runs the second factor against a pending challenge.
//
//	POST /v1/auth/login/otp
func (h *Handler) handleLoginOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.ChallengeToken == "" {
		writeError(ctx, w, http.StatusBadRequest, "invalid_request", "challenge_token is required")
		return
	}

	res, err := h.Login.SubmitSecondFactor(ctx, req.ChallengeToken, req.Code, time.Now().UTC())
	switch {
	case err == nil:
	case errors.Is(err, service.ErrChallengeExpired):
		writeError(ctx, w, http.StatusUnauthorized, "challenge_expired_or_unknown",
			"challenge token is unknown, expired or already used; log in again")
		return
	case errors.Is(err, service.ErrTooManyAttempts):
		writeError(ctx, w, http.StatusUnauthorized, "too_many_attempts",
			"too many incorrect codes; log in again")
		return
	case errors.Is(err, service.ErrInvalidCode):
		writeError(ctx, w, http.StatusUnauthorized, "invalid_code", "one-time code is incorrect")
		return
	default:
		writeInternalError(ctx, w, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(ctx, w, http.StatusOK, loginResponse{
		SessionToken: res.SessionToken,
		User:         res.User,
	})
}
