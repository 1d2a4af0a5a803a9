package auth

import (
	"context"

	"github.com/xhashpass/authworker/internal/model"
)

type contextKey string

const claimsContextKey contextKey = "session_claims"

// ContextWithClaims stores verified session claims in ctx.
func ContextWithClaims(ctx context.Context, claims *model.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the verified claims, or nil when the bearer middleware did not run.
func ClaimsFromContext(ctx context.Context) *model.TokenClaims {
	claims, ok := ctx.Value(claimsContextKey).(*model.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
