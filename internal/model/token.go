package model

import (
	"time"

	"github.com/google/uuid"
)

// TokenClaims are the application claims carried by a session token.
type TokenClaims struct {
	UserID    uuid.UUID
	KeyID     uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}
