// Package service implements the identity operations behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/metrics"
	"github.com/xhashpass/authworker/internal/model"
	"github.com/xhashpass/authworker/internal/validation"
)

// DefaultGatewayTimeout bounds every credential store call.
const DefaultGatewayTimeout = 5 * time.Second

// Deps wires an Identity. Store, Hasher and Tokens are required.
type Deps struct {
	Store          Gateway
	Hasher         *auth.Hasher
	Tokens         *auth.TokenIssuer
	Limiter        RateLimiter
	KeyCache       KeyCache
	Metrics        metrics.Recorder
	Logger         *slog.Logger
	GatewayTimeout time.Duration
	KeyEnv         string
}

// Identity registers, authenticates and manages users.
// It holds no mutable state and is safe for concurrent use.
type Identity struct {
	store    Gateway
	hasher   *auth.Hasher
	tokens   *auth.TokenIssuer
	limiter  RateLimiter
	keyCache KeyCache
	metrics  metrics.Recorder
	logger   *slog.Logger
	timeout  time.Duration
	keyEnv   string
	now      func() time.Time
}

// NewIdentity creates an Identity from d.
func NewIdentity(d Deps) *Identity {
	if d.Metrics == nil {
		d.Metrics = metrics.NewNoop()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.GatewayTimeout <= 0 {
		d.GatewayTimeout = DefaultGatewayTimeout
	}
	if d.KeyEnv == "" {
		d.KeyEnv = auth.EnvLive
	}
	return &Identity{
		store:    d.Store,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		limiter:  d.Limiter,
		keyCache: d.KeyCache,
		metrics:  d.Metrics,
		logger:   d.Logger,
		timeout:  d.GatewayTimeout,
		keyEnv:   d.KeyEnv,
		now:      time.Now,
	}
}

// RegisterResult is returned by Register.
type RegisterResult struct {
	UserID         uuid.UUID
	APIKey         string // plaintext, shown once
	Token          string
	TokenExpiresAt time.Time
}

// LoginResult is returned by Login.
type LoginResult struct {
	Success        bool
	Token          string
	TokenExpiresAt time.Time
	User           model.Profile
}

// CreateUserResult is returned by CreateUser.
type CreateUserResult struct {
	ID     uuid.UUID
	APIKey string // plaintext, shown once
}

// TokenResult is returned by VerifyToken.
type TokenResult struct {
	Valid     bool
	UserID    uuid.UUID
	KeyID     uuid.UUID
	ExpiresAt time.Time
}

// APIKeyResult is returned by VerifyAPIKey.
type APIKeyResult struct {
	Valid            bool
	UserID           uuid.UUID
	KeyID            uuid.UUID
	SubscriptionType model.SubscriptionType
	RateLimit        int
	Remaining        int64 // -1 when the tier is unlimited
	ResetAt          time.Time
	ExpiresAt        time.Time
}

// Register creates a self-service account and signs the caller in.
func (s *Identity) Register(ctx context.Context, in validation.RegistrationInput) (*RegisterResult, error) {
	in, err := validation.ValidateRegistration(in)
	if err != nil {
		s.metrics.IncRegistration(metrics.StatusInvalid)
		return nil, err
	}

	user, cred, apiKey, err := s.createAccount(ctx, in)
	if err != nil {
		s.metrics.IncRegistration(registrationStatus(err))
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, cred.ID)
	if err != nil {
		s.metrics.IncRegistration(metrics.StatusError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncRegistration(metrics.StatusSuccess)
	return &RegisterResult{
		UserID:         user.ID,
		APIKey:         apiKey,
		Token:          token,
		TokenExpiresAt: expiresAt,
	}, nil
}

// CreateUser creates an account on behalf of a trusted worker. Any user type is allowed.
func (s *Identity) CreateUser(ctx context.Context, in validation.RegistrationInput) (*CreateUserResult, error) {
	in, err := validation.ValidateNewUser(in)
	if err != nil {
		s.metrics.IncRegistration(metrics.StatusInvalid)
		return nil, err
	}

	user, _, apiKey, err := s.createAccount(ctx, in)
	if err != nil {
		s.metrics.IncRegistration(registrationStatus(err))
		return nil, err
	}

	s.metrics.IncRegistration(metrics.StatusSuccess)
	return &CreateUserResult{ID: user.ID, APIKey: apiKey}, nil
}

// createAccount stores a new user with a Free tier credential. The input must be validated.
func (s *Identity) createAccount(ctx context.Context, in validation.RegistrationInput) (*model.User, *model.Credential, string, error) {
	err := s.call(ctx, "find_user_by_email", func(ctx context.Context) error {
		_, err := s.store.FindUserByEmail(ctx, in.Email)
		return err
	})
	switch {
	case err == nil:
		return nil, nil, "", ErrConflict
	case !errors.Is(err, model.ErrNotFound):
		return nil, nil, "", err
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, "", fmt.Errorf("hash password: %w", err)
	}

	key, err := auth.GenerateAPIKey(s.hasher, s.keyEnv)
	if err != nil {
		return nil, nil, "", fmt.Errorf("generate api key: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.New(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: passwordHash,
		UserType:     model.UserType(in.UserType),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	cred := model.NewCredential(user.ID, model.SubscriptionFree, key.Hash, key.Prefix, key.Env, now)

	err = s.call(ctx, "create_user", func(ctx context.Context) error {
		return s.store.CreateUser(ctx, user, cred)
	})
	if err != nil {
		if errors.Is(err, model.ErrEmailExists) {
			return nil, nil, "", ErrConflict
		}
		return nil, nil, "", err
	}

	return user, cred, key.Plaintext, nil
}

// Login checks an email and password pair. Unknown accounts and wrong
// passwords fail with the same ErrUnauthorized.
func (s *Identity) Login(ctx context.Context, in validation.LoginInput) (*LoginResult, error) {
	in, err := validation.ValidateLogin(in)
	if err != nil {
		s.metrics.IncLogin(metrics.StatusInvalid)
		return nil, err
	}

	var rec *model.UserRecord
	err = s.call(ctx, "find_user_by_email", func(ctx context.Context) error {
		var err error
		rec, err = s.store.FindUserByEmail(ctx, in.Email)
		return err
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.hasher.VerifyDummy(in.Password)
			s.metrics.IncLogin(metrics.StatusFailed)
			return nil, ErrUnauthorized
		}
		s.metrics.IncLogin(metrics.StatusError)
		return nil, err
	}

	ok, err := s.hasher.Verify(in.Password, rec.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash is unreadable",
			slog.String("user_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	if !ok {
		s.metrics.IncLogin(metrics.StatusFailed)
		return nil, ErrUnauthorized
	}

	keyID := uuid.Nil
	if rec.Credential != nil {
		keyID = rec.Credential.ID
	}

	token, expiresAt, err := s.tokens.Issue(rec.ID, keyID)
	if err != nil {
		s.metrics.IncLogin(metrics.StatusError)
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.IncLogin(metrics.StatusSuccess)
	return &LoginResult{
		Success:        true,
		Token:          token,
		TokenExpiresAt: expiresAt,
		User:           rec.ToProfile(),
	}, nil
}

// GetUserByID returns the public profile of a user.
func (s *Identity) GetUserByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	rec, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := rec.ToProfile()
	return &profile, nil
}

// UpdateUser changes the name and/or type of a user.
func (s *Identity) UpdateUser(ctx context.Context, id uuid.UUID, in validation.UpdateInput) error {
	in, err := validation.ValidateUserUpdate(in)
	if err != nil {
		return err
	}

	upd := model.UserUpdate{FullName: in.FullName}
	if in.UserType != nil {
		ut := model.UserType(*in.UserType)
		upd.UserType = &ut
	}

	return s.updateUser(ctx, id, upd)
}

// DeleteUser removes a user and its credential.
func (s *Identity) DeleteUser(ctx context.Context, id uuid.UUID) error {
	err := s.call(ctx, "delete_user", func(ctx context.Context) error {
		return s.store.DeleteUser(ctx, id)
	})
	if err != nil {
		return notFound(err)
	}

	s.invalidateKeys(ctx, id)
	return nil
}

// IsAdmin reports whether the user holds the Admin type.
func (s *Identity) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	rec, err := s.findUser(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.IsAdmin(), nil
}

// ListAdmins returns the IDs of every Admin user.
func (s *Identity) ListAdmins(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.call(ctx, "list_user_ids_by_type", func(ctx context.Context) error {
		var err error
		ids, err = s.store.ListUserIDsByType(ctx, model.UserTypeAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

// SetAdminStatus promotes a user to Admin or demotes them to Client.
func (s *Identity) SetAdminStatus(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	ut := model.UserTypeClient
	if isAdmin {
		ut = model.UserTypeAdmin
	}
	return s.updateUser(ctx, id, model.UserUpdate{UserType: &ut})
}

// VerifyToken checks a session token.
func (s *Identity) VerifyToken(token string) (*TokenResult, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.metrics.IncTokenVerification(metrics.StatusInvalid)
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	s.metrics.IncTokenVerification(metrics.StatusSuccess)
	return &TokenResult{
		Valid:     true,
		UserID:    claims.UserID,
		KeyID:     claims.KeyID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// VerifyAPIKey authenticates a plaintext api key and consumes one request
// from its tier's rate limit.
func (s *Identity) VerifyAPIKey(ctx context.Context, apiKey string) (*APIKeyResult, error) {
	parsed, err := auth.ParseAPIKey(apiKey)
	if err != nil {
		s.metrics.IncAPIKeyVerification(metrics.StatusInvalid)
		return nil, ErrUnauthorized
	}

	cred, err := s.lookupKey(ctx, apiKey, parsed.Prefix)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			s.metrics.IncAPIKeyVerification(metrics.StatusInvalid)
		} else {
			s.metrics.IncAPIKeyVerification(metrics.StatusError)
		}
		return nil, err
	}

	now := s.now()
	if cred.IsExpired(now) {
		s.metrics.IncAPIKeyVerification(metrics.StatusExpired)
		return nil, ErrUnauthorized
	}

	result := &APIKeyResult{
		Valid:            true,
		UserID:           cred.UserID,
		KeyID:            cred.ID,
		SubscriptionType: cred.SubscriptionType,
		RateLimit:        cred.RateLimit,
		Remaining:        -1,
		ResetAt:          now.Add(model.RateLimitWindow),
		ExpiresAt:        cred.ExpiresAt,
	}

	if s.limiter != nil && cred.RateLimit > 0 {
		rl := s.limiter.CheckAPIKeyRateLimit(ctx, cred.ID.String(), cred.RateLimit, cred.TierConfig().Burst)
		if !rl.Allowed {
			s.metrics.IncAPIKeyVerification(metrics.StatusRateLimited)
			return nil, &RateLimitError{Limit: cred.RateLimit, RetryAfter: rl.RetryAfter, ResetAt: rl.ResetAt}
		}
		result.Remaining = rl.Remaining
		result.ResetAt = rl.ResetAt
	}

	s.metrics.IncAPIKeyVerification(metrics.StatusSuccess)
	return result, nil
}

// lookupKey finds the credential a plaintext key belongs to, consulting the
// verified key cache before paying for argon2.
func (s *Identity) lookupKey(ctx context.Context, apiKey, prefix string) (*model.Credential, error) {
	cacheable := false
	var epoch int64
	if s.keyCache != nil {
		var err error
		if epoch, err = s.keyCache.KeyEpoch(ctx); err != nil {
			s.logger.Warn("verified key cache epoch read failed", slog.String("error", err.Error()))
		} else {
			cacheable = true
		}

		cached, err := s.keyCache.GetVerifiedKey(ctx, apiKey)
		if err != nil {
			s.logger.Warn("verified key cache read failed", slog.String("error", err.Error()))
		}
		if cached != nil {
			s.metrics.IncKeyCacheHit()
			return cached, nil
		}
		s.metrics.IncKeyCacheMiss()
	}

	var candidates []*model.Credential
	err := s.call(ctx, "find_credentials_by_prefix", func(ctx context.Context) error {
		var err error
		candidates, err = s.store.FindCredentialsByPrefix(ctx, prefix)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, cred := range candidates {
		ok, err := s.hasher.Verify(apiKey, cred.KeyHash)
		if err != nil || !ok {
			continue
		}
		if cacheable {
			if err := s.keyCache.SetVerifiedKey(ctx, apiKey, cred, epoch); err != nil {
				s.logger.Warn("verified key cache write failed", slog.String("error", err.Error()))
			}
		}
		return cred, nil
	}

	return nil, ErrUnauthorized
}

// RotateAPIKey replaces a user's api key and returns the new plaintext once.
// The credential keeps its id and tier.
func (s *Identity) RotateAPIKey(ctx context.Context, userID uuid.UUID) (string, error) {
	rec, err := s.findUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if rec.Credential == nil {
		return "", ErrNotFound
	}

	key, err := auth.GenerateAPIKey(s.hasher, s.keyEnv)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}

	now := s.now().UTC()
	cred := *rec.Credential
	cred.KeyHash = key.Hash
	cred.KeyPrefix = key.Prefix
	cred.KeyEnv = key.Env
	cred.RateLimitResetAt = now.Add(model.RateLimitWindow)
	cred.ExpiresAt = now.Add(cred.TierConfig().KeyLifetime)

	err = s.call(ctx, "update_credential_key", func(ctx context.Context) error {
		return s.store.UpdateCredentialKey(ctx, &cred)
	})
	if err != nil {
		return "", notFound(err)
	}

	s.invalidateKeys(ctx, userID)
	return key.Plaintext, nil
}

// SetSubscription moves a user's credential to another tier. Rate limit,
// window and key expiry are derived from the new tier.
func (s *Identity) SetSubscription(ctx context.Context, userID uuid.UUID, tier string) error {
	subscription, err := validation.ValidateSubscription(tier)
	if err != nil {
		return err
	}

	rec, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if rec.Credential == nil {
		return ErrNotFound
	}

	now := s.now().UTC()
	cfg := model.TierConfigFor(subscription)
	cred := *rec.Credential
	cred.SubscriptionType = subscription
	cred.RateLimit = cfg.RequestsPerMinute
	cred.RateLimitResetAt = now.Add(model.RateLimitWindow)
	cred.ExpiresAt = now.Add(cfg.KeyLifetime)

	err = s.call(ctx, "update_credential_tier", func(ctx context.Context) error {
		return s.store.UpdateCredentialTier(ctx, &cred)
	})
	if err != nil {
		return notFound(err)
	}

	s.invalidateKeys(ctx, userID)
	return nil
}

func (s *Identity) findUser(ctx context.Context, id uuid.UUID) (*model.UserRecord, error) {
	var rec *model.UserRecord
	err := s.call(ctx, "find_user_by_id", func(ctx context.Context) error {
		var err error
		rec, err = s.store.FindUserByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

func (s *Identity) updateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) error {
	err := s.call(ctx, "update_user", func(ctx context.Context) error {
		return s.store.UpdateUser(ctx, id, upd)
	})
	return notFound(err)
}

func (s *Identity) invalidateKeys(ctx context.Context, userID uuid.UUID) {
	if s.keyCache == nil {
		return
	}
	if err := s.keyCache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("verified key cache invalidation failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// call runs a store operation under the gateway timeout. Store sentinels
// pass through; any other failure is wrapped in ErrGateway.
func (s *Identity) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveGatewayDuration(op, time.Since(start))

	if err == nil || errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrEmailExists) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrGateway, op, err)
}

// notFound maps the store's missing row sentinel to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func registrationStatus(err error) string {
	if errors.Is(err, ErrConflict) {
		return metrics.StatusConflict
	}
	return metrics.StatusError
}
