package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xhashpass/authworker/internal/model"
)

const (
	verifiedKeyPrefix = "apikey:verified:"
	userKeysPrefix    = "apikey:user:"
	keyEpochKey       = "apikey:epoch"
	verifiedKeyTTL    = 5 * time.Minute
)

// storeVerifiedKeyScript writes an entry only while the epoch still matches the
// one read before the store lookup. KEYS: epoch, entry, user index.
// ARGV: epoch, entry data, ttl seconds, digest.
var storeVerifiedKeyScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1]) or '0'
	if current ~= ARGV[1] then
		return 0
	end

	redis.call('SET', KEYS[2], ARGV[2], 'EX', tonumber(ARGV[3]))
	redis.call('SADD', KEYS[3], ARGV[4])
	redis.call('EXPIRE', KEYS[3], tonumber(ARGV[3]))
	return 1
`)

// cachedCredential is what a successful argon2 verification leaves behind.
// The key hash is never cached.
type cachedCredential struct {
	KeyID            uuid.UUID              `json:"key_id"`
	UserID           uuid.UUID              `json:"user_id"`
	SubscriptionType model.SubscriptionType `json:"subscription_type"`
	RateLimit        int                    `json:"rate_limit"`
	ExpiresAt        time.Time              `json:"expires_at"`
}

// GetVerifiedKey returns the credential a plaintext key was last verified against.
// A miss or a corrupt entry returns nil.
func (c *Cache) GetVerifiedKey(ctx context.Context, apiKey string) (*model.Credential, error) {
	data, err := c.client.Get(ctx, verifiedKeyPrefix+keyDigest(apiKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get verified key: %w", err)
	}

	var cached cachedCredential
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.Credential{
		ID:               cached.KeyID,
		UserID:           cached.UserID,
		SubscriptionType: cached.SubscriptionType,
		RateLimit:        cached.RateLimit,
		ExpiresAt:        cached.ExpiresAt,
	}, nil
}

// KeyEpoch returns the invalidation epoch. Read it before loading a credential
// from the store and hand it to SetVerifiedKey.
func (c *Cache) KeyEpoch(ctx context.Context) (int64, error) {
	epoch, err := c.client.Get(ctx, keyEpochKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get key epoch: %w", err)
	}
	return epoch, nil
}

// SetVerifiedKey remembers a successful verification and indexes it by user
// so the entry can be dropped when the user's credential changes. The write
// is skipped when any invalidation happened after epoch was read.
func (c *Cache) SetVerifiedKey(ctx context.Context, apiKey string, cred *model.Credential, epoch int64) error {
	data, err := json.Marshal(cachedCredential{
		KeyID:            cred.ID,
		UserID:           cred.UserID,
		SubscriptionType: cred.SubscriptionType,
		RateLimit:        cred.RateLimit,
		ExpiresAt:        cred.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal verified key: %w", err)
	}

	digest := keyDigest(apiKey)
	keys := []string{keyEpochKey, verifiedKeyPrefix + digest, userKeysPrefix + cred.UserID.String()}

	err = storeVerifiedKeyScript.Run(ctx, c.client, keys,
		strconv.FormatInt(epoch, 10), data, int(verifiedKeyTTL.Seconds()), digest,
	).Err()
	if err != nil {
		return fmt.Errorf("cache verified key: %w", err)
	}
	return nil
}

// InvalidateUser drops every cached verification for userID. Bumping the
// epoch first makes verifications still in flight discard their write.
func (c *Cache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Incr(ctx, keyEpochKey).Err(); err != nil {
		return fmt.Errorf("bump key epoch: %w", err)
	}

	userKey := userKeysPrefix + userID.String()

	digests, err := c.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list cached keys: %w", err)
	}

	keys := make([]string, 0, len(digests)+1)
	for _, d := range digests {
		keys = append(keys, verifiedKeyPrefix+d)
	}
	keys = append(keys, userKey)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate cached keys: %w", err)
	}
	return nil
}

func keyDigest(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
