package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey_Live(t *testing.T) {
	t.Parallel()

	h := cheapHasher()
	key, err := GenerateAPIKey(h, EnvLive)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(key.Plaintext, "xhp_live_") {
		t.Errorf("Key should start with xhp_live_, got: %s", key.Plaintext)
	}
	if len(key.Prefix) != KeyPrefixLen {
		t.Errorf("Prefix should be %d chars, got: %d", KeyPrefixLen, len(key.Prefix))
	}
	if key.Env != EnvLive {
		t.Errorf("Env = %q, want %q", key.Env, EnvLive)
	}
	if !strings.HasPrefix(key.Hash, "$argon2id$v=") {
		t.Errorf("Hash should be in PHC format, got: %s", key.Hash)
	}

	match, err := h.Verify(key.Plaintext, key.Hash)
	if err != nil || !match {
		t.Errorf("plaintext should verify against its hash, match=%v err=%v", match, err)
	}
}

func TestGenerateAPIKey_Test(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey(cheapHasher(), EnvTest)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(key.Plaintext, "xhp_test_") {
		t.Errorf("Key should start with xhp_test_, got: %s", key.Plaintext)
	}
}

func TestGenerateAPIKey_DefaultsToLive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  string
	}{
		{"invalid env", "invalid"},
		{"empty env", ""},
		{"prod env", "prod"},
	}

	h := cheapHasher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, err := GenerateAPIKey(h, tt.env)
			if err != nil {
				t.Fatalf("GenerateAPIKey failed: %v", err)
			}
			if !strings.HasPrefix(key.Plaintext, "xhp_live_") {
				t.Errorf("Expected xhp_live_ prefix for env %q, got: %s", tt.env, key.Plaintext)
			}
		})
	}
}

func TestGenerateAPIKey_RoundTripsThroughParse(t *testing.T) {
	t.Parallel()

	key, err := GenerateAPIKey(cheapHasher(), EnvTest)
	if err != nil {
		t.Fatalf("GenerateAPIKey failed: %v", err)
	}

	parsed, err := ParseAPIKey(key.Plaintext)
	if err != nil {
		t.Fatalf("ParseAPIKey failed: %v", err)
	}
	if parsed.Prefix != key.Prefix || parsed.Env != EnvTest || len(parsed.Secret) != KeySecretLen {
		t.Errorf("parsed = %+v, generated prefix %q", parsed, key.Prefix)
	}
}

func TestGenerateAPIKey_UniquePrefixes(t *testing.T) {
	t.Parallel()

	h := cheapHasher()
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := GenerateAPIKey(h, EnvLive)
		if err != nil {
			t.Fatalf("GenerateAPIKey failed: %v", err)
		}
		if seen[key.Plaintext] {
			t.Fatalf("duplicate key generated: %s", key.Plaintext)
		}
		seen[key.Plaintext] = true
	}
}

func TestParseAPIKey_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"old prefix", "pk_live_abc123_0123456789abcdef0123456789abcdef"},
		{"unknown env", "xhp_prod_abc123_0123456789abcdef0123456789abcdef"},
		{"short prefix", "xhp_live_abc12_0123456789abcdef0123456789abcdef"},
		{"uppercase hex", "xhp_live_ABC123_0123456789abcdef0123456789abcdef"},
		{"short secret", "xhp_live_abc123_0123456789abcdef"},
		{"trailing data", "xhp_live_abc123_0123456789abcdef0123456789abcdef_x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseAPIKey(tt.key); err != ErrInvalidKeyFormat {
				t.Errorf("ParseAPIKey(%q) error = %v, want ErrInvalidKeyFormat", tt.key, err)
			}
		})
	}
}
