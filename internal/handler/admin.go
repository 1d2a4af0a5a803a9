package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/validation"
)

// AdminHandler serves role, subscription and api key management.
type AdminHandler struct {
	identity IdentityService
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(identity IdentityService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{identity: identity, logger: logger}
}

// IsAdminResponse is returned by GET /users/{id}/is-admin.
type IsAdminResponse struct {
	IsAdmin bool `json:"isAdmin"`
}

// AdminListResponse is returned by GET /users/admins.
type AdminListResponse struct {
	AdminUsers []uuid.UUID `json:"adminUsers"`
}

// AdminStatusRequest is the body of POST /users/{id}/admin-status.
type AdminStatusRequest struct {
	IsAdmin *bool `json:"isAdmin"`
}

// SubscriptionRequest is the body of POST /users/{id}/subscription.
type SubscriptionRequest struct {
	SubscriptionType string `json:"subscription_type"`
}

// RotateKeyResponse is returned by POST /users/{id}/api-key/rotate.
type RotateKeyResponse struct {
	APIKey string `json:"apiKey"`
}

// IsAdmin handles GET /users/{id}/is-admin.
func (h *AdminHandler) IsAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	isAdmin, err := h.identity.IsAdmin(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, IsAdminResponse{IsAdmin: isAdmin})
}

// ListAdmins handles GET /users/admins.
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	ids, err := h.identity.ListAdmins(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, AdminListResponse{AdminUsers: ids})
}

// SetAdminStatus handles POST /users/{id}/admin-status.
func (h *AdminHandler) SetAdminStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req AdminStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsAdmin == nil {
		handleServiceError(w, r, h.logger, &validation.Error{Fields: []validation.FieldError{{
			Field:   "isAdmin",
			Rule:    "required",
			Message: "isAdmin is required",
		}}})
		return
	}

	if err := h.identity.SetAdminStatus(r.Context(), id, *req.IsAdmin); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("admin status changed",
		slog.String("user_id", id.String()),
		slog.Bool("is_admin", *req.IsAdmin),
	)

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Admin status updated successfully"})
}

// SetSubscription handles POST /users/{id}/subscription.
func (h *AdminHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req SubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.identity.SetSubscription(r.Context(), id, req.SubscriptionType); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Subscription updated successfully"})
}

// RotateAPIKey handles POST /users/{id}/api-key/rotate.
// The new plaintext key is returned once; the old key stops working immediately.
func (h *AdminHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	apiKey, err := h.identity.RotateAPIKey(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("api key rotated", slog.String("user_id", id.String()))

	writeJSON(w, http.StatusCreated, RotateKeyResponse{APIKey: apiKey})
}
