package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/cache"
	"github.com/xhashpass/authworker/internal/model"
)

// Gateway is the credential store the identity service reads and writes.
// Missing rows are reported as model.ErrNotFound.
type Gateway interface {
	FindUserByEmail(ctx context.Context, email string) (*model.UserRecord, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*model.UserRecord, error)
	// CreateUser stores the user and its credential atomically.
	// A duplicate email returns model.ErrEmailExists.
	CreateUser(ctx context.Context, user *model.User, cred *model.Credential) error
	UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUserIDsByType(ctx context.Context, userType model.UserType) ([]uuid.UUID, error)

	FindCredentialsByPrefix(ctx context.Context, prefix string) ([]*model.Credential, error)
	UpdateCredentialKey(ctx context.Context, cred *model.Credential) error
	UpdateCredentialTier(ctx context.Context, cred *model.Credential) error
}

// RateLimiter throttles api key usage per credential.
type RateLimiter interface {
	CheckAPIKeyRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) *cache.RateLimitResult
}

// KeyCache remembers successful api key verifications.
// SetVerifiedKey must drop the write when InvalidateUser ran after epoch was
// read from KeyEpoch.
type KeyCache interface {
	KeyEpoch(ctx context.Context) (int64, error)
	GetVerifiedKey(ctx context.Context, apiKey string) (*model.Credential, error)
	SetVerifiedKey(ctx context.Context, apiKey string, cred *model.Credential, epoch int64) error
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}
