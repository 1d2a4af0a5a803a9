package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xhashpass/authworker/internal/model"
)

const userRecordColumns = `
	u.id, u.full_name, u.email, u.password_hash, u.user_type, u.created_at, u.updated_at,
	c.id, c.user_id, c.subscription_type, c.key_hash, c.key_prefix, c.key_env,
	c.rate_limit, c.rate_limit_reset_at, c.created_at, c.expires_at`

// CreateUser inserts a user and its credential in one transaction.
// A duplicate email (any case) returns model.ErrEmailExists.
func (r *Repository) CreateUser(ctx context.Context, user *model.User, cred *model.Credential) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, full_name, email, password_hash, user_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		user.ID,
		user.FullName,
		user.Email,
		user.PasswordHash,
		string(user.UserType),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credentials (id, user_id, subscription_type, key_hash, key_prefix, key_env,
			rate_limit, rate_limit_reset_at, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		cred.ID,
		cred.UserID,
		string(cred.SubscriptionType),
		cred.KeyHash,
		cred.KeyPrefix,
		cred.KeyEnv,
		cred.RateLimit,
		cred.RateLimitResetAt,
		cred.CreatedAt,
		cred.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailExists
		}
		return fmt.Errorf("failed to commit user creation: %w", err)
	}

	return nil
}

// FindUserByEmail retrieves a user and its credential by email, ignoring case.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*model.UserRecord, error) {
	query := `SELECT ` + userRecordColumns + `
		FROM users u
		LEFT JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`
	return scanUserRecord(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

// FindUserByID retrieves a user and its credential by ID.
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*model.UserRecord, error) {
	query := `SELECT ` + userRecordColumns + `
		FROM users u
		LEFT JOIN credentials c ON c.user_id = u.id
		WHERE u.id = $1
	`
	return scanUserRecord(r.pool.QueryRow(ctx, query, id))
}

// UpdateUser applies the non-nil fields of upd.
func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) error {
	if upd.IsEmpty() {
		return nil
	}

	var fullName, userType *string
	if upd.FullName != nil {
		fullName = upd.FullName
	}
	if upd.UserType != nil {
		ut := string(*upd.UserType)
		userType = &ut
	}

	query := `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
			user_type = COALESCE($3, user_type),
			updated_at = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, fullName, userType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

// DeleteUser removes a user. The credential row is removed by cascade.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListUserIDsByType returns the IDs of all users of the given type, oldest first.
func (r *Repository) ListUserIDsByType(ctx context.Context, userType model.UserType) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM users
		WHERE user_type = $1
		ORDER BY created_at ASC
	`, string(userType))
	if err != nil {
		return nil, fmt.Errorf("failed to list users by type: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan user ids: %w", err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	return ids, nil
}

// credentialColumns receives the nullable side of the users/credentials join.
type credentialColumns struct {
	ID               *uuid.UUID
	UserID           *uuid.UUID
	SubscriptionType *string
	KeyHash          *string
	KeyPrefix        *string
	KeyEnv           *string
	RateLimit        *int
	RateLimitResetAt *time.Time
	CreatedAt        *time.Time
	ExpiresAt        *time.Time
}

func (c *credentialColumns) credential() *model.Credential {
	if c.ID == nil {
		return nil
	}
	return &model.Credential{
		ID:               *c.ID,
		UserID:           *c.UserID,
		SubscriptionType: model.SubscriptionType(*c.SubscriptionType),
		KeyHash:          *c.KeyHash,
		KeyPrefix:        *c.KeyPrefix,
		KeyEnv:           *c.KeyEnv,
		RateLimit:        *c.RateLimit,
		RateLimitResetAt: *c.RateLimitResetAt,
		CreatedAt:        *c.CreatedAt,
		ExpiresAt:        *c.ExpiresAt,
	}
}

func scanUserRecord(row pgx.Row) (*model.UserRecord, error) {
	var (
		rec      model.UserRecord
		userType string
		cred     credentialColumns
	)

	err := row.Scan(
		&rec.ID,
		&rec.FullName,
		&rec.Email,
		&rec.PasswordHash,
		&userType,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&cred.ID,
		&cred.UserID,
		&cred.SubscriptionType,
		&cred.KeyHash,
		&cred.KeyPrefix,
		&cred.KeyEnv,
		&cred.RateLimit,
		&cred.RateLimitResetAt,
		&cred.CreatedAt,
		&cred.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	rec.UserType = model.UserType(userType)
	rec.Credential = cred.credential()
	return &rec, nil
}
