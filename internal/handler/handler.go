// Package handler provides HTTP request handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/middleware"
	"github.com/xhashpass/authworker/internal/model"
	"github.com/xhashpass/authworker/internal/service"
	"github.com/xhashpass/authworker/internal/validation"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUserExists         = "USER_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
)

// IdentityService is the application core behind the HTTP API.
type IdentityService interface {
	Register(ctx context.Context, in validation.RegistrationInput) (*service.RegisterResult, error)
	Login(ctx context.Context, in validation.LoginInput) (*service.LoginResult, error)
	VerifyToken(token string) (*service.TokenResult, error)
	VerifyAPIKey(ctx context.Context, apiKey string) (*service.APIKeyResult, error)

	GetUserByID(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	CreateUser(ctx context.Context, in validation.RegistrationInput) (*service.CreateUserResult, error)
	UpdateUser(ctx context.Context, id uuid.UUID, in validation.UpdateInput) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	IsAdmin(ctx context.Context, id uuid.UUID) (bool, error)
	ListAdmins(ctx context.Context) ([]uuid.UUID, error)
	SetAdminStatus(ctx context.Context, id uuid.UUID, isAdmin bool) error
	SetSubscription(ctx context.Context, id uuid.UUID, tier string) error
	RotateAPIKey(ctx context.Context, id uuid.UUID) (string, error)
}

// ErrorResponse is the single error envelope of the API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Details []validation.FieldError `json:"details,omitempty"`
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, CodeNotFound, "Resource not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// decodeJSON reads the request body into dst, answering 400 or 413 itself
// when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request body")
		return false
	}
	return true
}

// userID parses the {id} path parameter. A malformed id cannot name any
// user, so it is reported as not found.
func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
		return uuid.Nil, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses. Unexpected
// errors are logged and answered with a generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
			Code:    CodeValidationFailed,
			Message: "Validation failed",
			Details: verr.Fields,
		}})
		return
	}

	var rlErr *service.RateLimitError
	if errors.As(err, &rlErr) {
		retryAfter := int(rlErr.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		setRateLimitHeaders(w, rlErr.Limit, 0, rlErr.ResetAt)
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
		return
	}

	switch {
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, CodeUserExists, "User already exists")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or missing token")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
	default:
		logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "An internal error occurred")
	}
}

// setRateLimitHeaders sets the standard rate limit headers for limited tiers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit <= 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !resetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}
