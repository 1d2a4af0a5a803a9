package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/model"
	"github.com/xhashpass/authworker/internal/service"
)

// WorkerTokenHeader carries the shared secret of trusted workers.
const WorkerTokenHeader = "X-Worker-Token"

// WorkerAuthConfig configures WorkerAuth.
type WorkerAuthConfig struct {
	Logger        *slog.Logger
	Authenticator *auth.WorkerAuthenticator
}

// WorkerAuth admits only callers presenting the worker secret.
// Every failure gets the same response.
func WorkerAuth(cfg WorkerAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Authenticator.Check(r.Header.Get(WorkerTokenHeader)) {
				cfg.Logger.Warn("worker authentication failed",
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or missing worker token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionVerifier checks a session token.
type SessionVerifier interface {
	VerifyToken(token string) (*service.TokenResult, error)
}

// SessionConfig configures RequireSession.
type SessionConfig struct {
	Logger   *slog.Logger
	Verifier SessionVerifier
}

// RequireSession verifies the bearer token and stores its claims in the
// request context. See auth.ClaimsFromContext.
func RequireSession(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or missing token")
				return
			}

			result, err := cfg.Verifier.VerifyToken(token)
			if err != nil {
				cfg.Logger.Warn("session token rejected",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or missing token")
				return
			}

			ctx := auth.ContextWithClaims(r.Context(), &model.TokenClaims{
				UserID:    result.UserID,
				KeyID:     result.KeyID,
				ExpiresAt: result.ExpiresAt,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
