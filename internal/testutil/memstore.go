package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/xhashpass/authworker/internal/model"
)

// MemoryStore is an in-memory credential store. Email uniqueness is enforced
// case-insensitively under a mutex, matching the database unique index.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]model.User
	byEmail     map[string]uuid.UUID
	credentials map[uuid.UUID]model.Credential // by user id
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[uuid.UUID]model.User),
		byEmail:     make(map[string]uuid.UUID),
		credentials: make(map[uuid.UUID]model.Credential),
	}
}

func (s *MemoryStore) record(id uuid.UUID) *model.UserRecord {
	rec := &model.UserRecord{User: s.users[id]}
	if cred, ok := s.credentials[id]; ok {
		rec.Credential = &cred
	}
	return rec
}

// FindUserByEmail implements the store lookup by email.
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.record(id), nil
}

// FindUserByID implements the store lookup by id.
func (s *MemoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return nil, model.ErrNotFound
	}
	return s.record(id), nil
}

// CreateUser stores a user and its credential together.
func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return model.ErrEmailExists
	}
	s.users[user.ID] = *user
	s.byEmail[email] = user.ID
	s.credentials[user.ID] = *cred
	return nil
}

// UpdateUser applies the non-nil fields of upd.
func (s *MemoryStore) UpdateUser(ctx context.Context, id uuid.UUID, upd model.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.UserType != nil {
		u.UserType = *upd.UserType
	}
	s.users[id] = u
	return nil
}

// DeleteUser removes a user and its credential.
func (s *MemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(u.Email))
	delete(s.users, id)
	delete(s.credentials, id)
	return nil
}

// ListUserIDsByType returns matching ids, oldest first.
func (s *MemoryStore) ListUserIDsByType(ctx context.Context, userType model.UserType) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.User
	for _, u := range s.users {
		if u.UserType == userType {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	ids := make([]uuid.UUID, 0, len(matched))
	for _, u := range matched {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// FindCredentialsByPrefix returns credentials with the given key prefix.
func (s *MemoryStore) FindCredentialsByPrefix(ctx context.Context, prefix string) ([]*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Credential
	for _, c := range s.credentials {
		if c.KeyPrefix == prefix {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}

// UpdateCredentialKey replaces the key fields of a user's credential.
func (s *MemoryStore) UpdateCredentialKey(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[cred.UserID]
	if !ok {
		return model.ErrNotFound
	}
	c.KeyHash = cred.KeyHash
	c.KeyPrefix = cred.KeyPrefix
	c.KeyEnv = cred.KeyEnv
	c.RateLimitResetAt = cred.RateLimitResetAt
	c.ExpiresAt = cred.ExpiresAt
	s.credentials[cred.UserID] = c
	return nil
}

// UpdateCredentialTier replaces the tier fields of a user's credential.
func (s *MemoryStore) UpdateCredentialTier(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[cred.UserID]
	if !ok {
		return model.ErrNotFound
	}
	c.SubscriptionType = cred.SubscriptionType
	c.RateLimit = cred.RateLimit
	c.RateLimitResetAt = cred.RateLimitResetAt
	c.ExpiresAt = cred.ExpiresAt
	s.credentials[cred.UserID] = c
	return nil
}

// Credential returns a copy of the stored credential for userID.
func (s *MemoryStore) Credential(userID uuid.UUID) (model.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[userID]
	return c, ok
}

// UserCount returns the number of stored users.
func (s *MemoryStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
