package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/model"
	"github.com/xhashpass/authworker/internal/validation"
)

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	identity IdentityService
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(identity IdentityService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, logger: logger}
}

// RegisterResponse is returned by POST /auth/register. APIKey is shown once.
type RegisterResponse struct {
	ID             uuid.UUID `json:"id"`
	APIKey         string    `json:"apiKey"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Success        bool          `json:"success"`
	Token          string        `json:"token"`
	TokenExpiresAt time.Time     `json:"tokenExpiresAt"`
	User           model.Profile `json:"user"`
}

// VerifyTokenResponse is returned by GET /auth/verify-token.
type VerifyTokenResponse struct {
	Valid     bool      `json:"valid"`
	UserID    uuid.UUID `json:"userId"`
	KeyID     uuid.UUID `json:"keyId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyAPIKeyRequest is the body of POST /auth/verify-api-key.
type VerifyAPIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// VerifyAPIKeyResponse is returned by POST /auth/verify-api-key.
// Remaining is -1 for unlimited tiers.
type VerifyAPIKeyResponse struct {
	Valid            bool                   `json:"valid"`
	UserID           uuid.UUID              `json:"userId"`
	KeyID            uuid.UUID              `json:"keyId"`
	SubscriptionType model.SubscriptionType `json:"subscriptionType"`
	RateLimit        int                    `json:"rateLimit"`
	Remaining        int64                  `json:"remaining"`
	ExpiresAt        time.Time              `json:"expiresAt"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req validation.RegistrationInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user registered", slog.String("user_id", res.UserID.String()))

	writeJSON(w, http.StatusCreated, RegisterResponse{
		ID:             res.UserID,
		APIKey:         res.APIKey,
		Token:          res.Token,
		TokenExpiresAt: res.TokenExpiresAt,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success:        res.Success,
		Token:          res.Token,
		TokenExpiresAt: res.TokenExpiresAt,
		User:           res.User,
	})
}

// VerifyToken handles GET /auth/verify-token. The session middleware has
// already verified the bearer token.
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or missing token")
		return
	}

	writeJSON(w, http.StatusOK, VerifyTokenResponse{
		Valid:     true,
		UserID:    claims.UserID,
		KeyID:     claims.KeyID,
		ExpiresAt: claims.ExpiresAt,
	})
}

// VerifyAPIKey handles POST /auth/verify-api-key.
func (h *AuthHandler) VerifyAPIKey(w http.ResponseWriter, r *http.Request) {
	var req VerifyAPIKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.VerifyAPIKey(r.Context(), req.APIKey)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	setRateLimitHeaders(w, res.RateLimit, res.Remaining, res.ResetAt)
	writeJSON(w, http.StatusOK, VerifyAPIKeyResponse{
		Valid:            res.Valid,
		UserID:           res.UserID,
		KeyID:            res.KeyID,
		SubscriptionType: res.SubscriptionType,
		RateLimit:        res.RateLimit,
		Remaining:        res.Remaining,
		ExpiresAt:        res.ExpiresAt,
	})
}
