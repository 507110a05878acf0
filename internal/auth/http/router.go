package http

import (
	"net/http"

	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/internal/auth/store"
	"github.com/quollsec/authgate/pkg/httpx"
	"github.com/quollsec/authgate/pkg/jwtx"
)

// Handler wires the services to the HTTP routes.
type Handler struct {
	Users      *service.UserService
	Login      *service.LoginService
	Enrollment *service.EnrollmentService
	Store      store.Store
	Verifier   jwtx.Verifier
}

// Router builds the service mux. Credential-bearing endpoints sit behind a
// strict per-IP rate limit; the MFA management endpoints additionally
// require a valid session token.
func (h *Handler) Router() http.Handler {
	strict := httpx.RateLimitByIP(httpx.RateLimitStrict)
	moderate := httpx.RateLimitByIP(httpx.RateLimitModerate)
	authn := httpx.AuthnMiddleware(h.Verifier)

	mux := http.NewServeMux()

	mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.handleRegister), moderate))
	mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.handleLogin), strict))
	mux.Handle("POST /v1/auth/login/otp",
		httpx.Chain(http.HandlerFunc(h.handleLoginOTP), strict))

	mux.Handle("POST /v1/auth/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.handleMFAEnroll), moderate, authn))
	mux.Handle("POST /v1/auth/mfa/totp/verify",
		httpx.Chain(http.HandlerFunc(h.handleMFAVerify), strict, authn))
	mux.Handle("DELETE /v1/auth/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.handleMFADisable), moderate, authn))

	mux.HandleFunc("GET /livez", h.handleLivez)
	mux.HandleFunc("GET /readyz", h.handleReadyz)

	return mux
}
