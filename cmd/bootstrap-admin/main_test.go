package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/model"
	"github.com/xhashpass/authworker/internal/service"
	"github.com/xhashpass/authworker/internal/testutil"
)

func newIdentity(store *testutil.MemoryStore) *service.Identity {
	return service.NewIdentity(service.Deps{
		Store:  store,
		Hasher: auth.NewHasher(auth.Params{Time: 1, Memory: 1024, Threads: 1}),
		KeyEnv: auth.EnvTest,
	})
}

func TestRun_JSON(t *testing.T) {
	store := testutil.NewMemoryStore()
	var out bytes.Buffer

	err := run(context.Background(), newIdentity(store), options{
		fullName: "Root Admin",
		email:    "Root@Example.com",
		password: "correct horse",
		tier:     "Enterprise",
		format:   "json",
	}, &out)
	require.NoError(t, err)

	var got output
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "root@example.com", got.Email)
	assert.Equal(t, "Enterprise", got.SubscriptionType)
	assert.True(t, strings.HasPrefix(got.APIKey, "xhp_test_"))

	id, err := uuid.Parse(got.UserID)
	require.NoError(t, err)

	rec, err := store.FindUserByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.UserTypeAdmin, rec.UserType)

	cred, ok := store.Credential(id)
	require.True(t, ok)
	assert.Equal(t, model.SubscriptionEnterprise, cred.SubscriptionType)
}

func TestRun_PlainPrintsOnlyTheKey(t *testing.T) {
	var out bytes.Buffer

	err := run(context.Background(), newIdentity(testutil.NewMemoryStore()), options{
		fullName: "Root Admin",
		email:    "root@example.com",
		password: "correct horse",
		format:   "plain",
	}, &out)
	require.NoError(t, err)

	line := strings.TrimSpace(out.String())
	_, err = auth.ParseAPIKey(line)
	assert.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{"bad format", options{email: "a@example.com", password: "p", format: "xml"}, "invalid format"},
		{"missing email", options{password: "p", format: "plain"}, "email and password are required"},
		{"missing password", options{email: "a@example.com", format: "plain"}, "email and password are required"},
		{"unknown tier", options{fullName: "Root", email: "a@example.com", password: "p", tier: "Gold", format: "plain"}, "invalid tier"},
		{"short name", options{fullName: "R", email: "a@example.com", password: "p", format: "plain"}, "create admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			err := run(context.Background(), newIdentity(store), tt.opts, &bytes.Buffer{})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 0, store.UserCount())
		})
	}
}

func TestRun_ExistingEmail(t *testing.T) {
	store := testutil.NewMemoryStore()
	identity := newIdentity(store)
	opts := options{fullName: "Root Admin", email: "root@example.com", password: "p", format: "plain"}

	require.NoError(t, run(context.Background(), identity, opts, &bytes.Buffer{}))

	err := run(context.Background(), identity, opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, 1, store.UserCount())
}
