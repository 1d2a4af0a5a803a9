package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// SubscriptionType is the tier attached to a credential record.
type SubscriptionType string

// Subscription tiers.
const (
	SubscriptionFree       SubscriptionType = "Free"
	SubscriptionPro        SubscriptionType = "Pro"
	SubscriptionPremium    SubscriptionType = "Premium"
	SubscriptionEnterprise SubscriptionType = "Enterprise"
)

// SubscriptionTypes contains all valid tiers.
var SubscriptionTypes = []SubscriptionType{
	SubscriptionFree,
	SubscriptionPro,
	SubscriptionPremium,
	SubscriptionEnterprise,
}

// IsValid reports whether s is a known tier.
func (s SubscriptionType) IsValid() bool {
	return slices.Contains(SubscriptionTypes, s)
}

// TierConfig defines rate limit and key lifetime per tier.
type TierConfig struct {
	RequestsPerMinute int // 0 means unlimited
	Burst             int
	KeyLifetime       time.Duration
}

// RateLimitWindow is the window rate_limit is expressed over.
const RateLimitWindow = time.Minute

// TierConfigs maps tiers to their limits.
var TierConfigs = map[SubscriptionType]TierConfig{
	SubscriptionFree:       {RequestsPerMinute: 60, Burst: 10, KeyLifetime: 30 * 24 * time.Hour},
	SubscriptionPro:        {RequestsPerMinute: 600, Burst: 50, KeyLifetime: 365 * 24 * time.Hour},
	SubscriptionPremium:    {RequestsPerMinute: 3000, Burst: 200, KeyLifetime: 365 * 24 * time.Hour},
	SubscriptionEnterprise: {RequestsPerMinute: 0, Burst: 0, KeyLifetime: 730 * 24 * time.Hour},
}

// TierConfigFor returns the configuration for a tier, defaulting to Free.
func TierConfigFor(tier SubscriptionType) TierConfig {
	if cfg, ok := TierConfigs[tier]; ok {
		return cfg
	}
	return TierConfigs[SubscriptionFree]
}

// Credential is the api key and subscription record owned by exactly one user.
type Credential struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
	KeyHash          string           `json:"-"` // Never serialize
	KeyPrefix        string           `json:"key_prefix"`
	KeyEnv           string           `json:"-"`
	RateLimit        int              `json:"rate_limit"`
	RateLimitResetAt time.Time        `json:"rate_limit_reset_at"`
	CreatedAt        time.Time        `json:"created_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
}

// NewCredential builds a credential for a freshly generated key on the given tier.
func NewCredential(userID uuid.UUID, tier SubscriptionType, keyHash, keyPrefix, keyEnv string, now time.Time) *Credential {
	cfg := TierConfigFor(tier)
	return &Credential{
		ID:               uuid.New(),
		UserID:           userID,
		SubscriptionType: tier,
		KeyHash:          keyHash,
		KeyPrefix:        keyPrefix,
		KeyEnv:           keyEnv,
		RateLimit:        cfg.RequestsPerMinute,
		RateLimitResetAt: now.Add(RateLimitWindow),
		CreatedAt:        now,
		ExpiresAt:        now.Add(cfg.KeyLifetime),
	}
}

// IsExpired reports whether the key is past its expiry at t.
func (c *Credential) IsExpired(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}

// TierConfig returns the limits of the credential's tier.
func (c *Credential) TierConfig() TierConfig {
	return TierConfigFor(c.SubscriptionType)
}

// MaskedKey returns the displayable form of the key: the prefix with the secret hidden.
func (c *Credential) MaskedKey() string {
	env := c.KeyEnv
	if env == "" {
		env = "live"
	}
	return "xhp_" + env + "_" + c.KeyPrefix + "_****"
}
