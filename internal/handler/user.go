package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/validation"
)

// UserHandler serves user record CRUD for trusted workers.
type UserHandler struct {
	identity IdentityService
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(identity IdentityService, logger *slog.Logger) *UserHandler {
	return &UserHandler{identity: identity, logger: logger}
}

// CreateUserResponse is returned by POST /user. APIKey is shown once.
type CreateUserResponse struct {
	ID      uuid.UUID `json:"id"`
	APIKey  string    `json:"apiKey"`
	Message string    `json:"message"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

// Get handles GET /user/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	profile, err := h.identity.GetUserByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Create handles POST /user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req validation.RegistrationInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.identity.CreateUser(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user created", slog.String("user_id", res.ID.String()))

	writeJSON(w, http.StatusCreated, CreateUserResponse{
		ID:      res.ID,
		APIKey:  res.APIKey,
		Message: "User created successfully",
	})
}

// Update handles POST /user/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req validation.UpdateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.identity.UpdateUser(r.Context(), id, req); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "User updated successfully"})
}

// Delete handles DELETE /user/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.identity.DeleteUser(r.Context(), id); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user deleted", slog.String("user_id", id.String()))

	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
