package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xhashpass/authworker/internal/model"
)

// FindCredentialsByPrefix returns candidate credentials for api key verification.
func (r *Repository) FindCredentialsByPrefix(ctx context.Context, prefix string) ([]*model.Credential, error) {
	query := `
		SELECT id, user_id, subscription_type, key_hash, key_prefix, key_env,
			rate_limit, rate_limit_reset_at, created_at, expires_at
		FROM credentials
		WHERE key_prefix = $1
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials by prefix: %w", err)
	}

	creds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Credential, error) {
		var (
			c    model.Credential
			tier string
		)
		err := row.Scan(
			&c.ID,
			&c.UserID,
			&tier,
			&c.KeyHash,
			&c.KeyPrefix,
			&c.KeyEnv,
			&c.RateLimit,
			&c.RateLimitResetAt,
			&c.CreatedAt,
			&c.ExpiresAt,
		)
		c.SubscriptionType = model.SubscriptionType(tier)
		return &c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}

	return creds, nil
}

// UpdateCredentialKey stores a rotated key for cred.UserID.
func (r *Repository) UpdateCredentialKey(ctx context.Context, cred *model.Credential) error {
	query := `
		UPDATE credentials
		SET key_hash = $2,
			key_prefix = $3,
			key_env = $4,
			rate_limit_reset_at = $5,
			expires_at = $6
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		cred.UserID,
		cred.KeyHash,
		cred.KeyPrefix,
		cred.KeyEnv,
		cred.RateLimitResetAt,
		cred.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

// UpdateCredentialTier stores a new subscription tier and its derived limits for cred.UserID.
func (r *Repository) UpdateCredentialTier(ctx context.Context, cred *model.Credential) error {
	query := `
		UPDATE credentials
		SET subscription_type = $2,
			rate_limit = $3,
			rate_limit_reset_at = $4,
			expires_at = $5
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		cred.UserID,
		string(cred.SubscriptionType),
		cred.RateLimit,
		cred.RateLimitResetAt,
		cred.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential tier: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}
