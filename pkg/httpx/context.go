package httpx

import (
	"context"

	"github.com/quollsec/authgate/pkg/jwtx"
)

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyUsername
	ctxKeyClaims
)

// WithIdentity stores the authenticated identity on the request context.
func WithIdentity(ctx context.Context, claims jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, claims.Subject)
	ctx = context.WithValue(ctx, ctxKeyUsername, claims.Username)
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// UserIDFromContext returns the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(string)
	return id, ok && id != ""
}

// UsernameFromContext returns the authenticated username, if any.
func UsernameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(ctxKeyUsername).(string)
	return name, ok && name != ""
}

// ClaimsFromContext returns the full session claims, if any.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(jwtx.Claims)
	return claims, ok
}
