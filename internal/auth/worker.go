package auth

import (
	"crypto/sha256"
	"crypto/subtle"
)

// WorkerAuthenticator checks the shared secret presented by peer workers.
type WorkerAuthenticator struct {
	digest [sha256.Size]byte
	set    bool
}

// NewWorkerAuthenticator creates a checker for secret. An empty secret rejects every request.
func NewWorkerAuthenticator(secret string) *WorkerAuthenticator {
	if secret == "" {
		return &WorkerAuthenticator{}
	}
	return &WorkerAuthenticator{digest: sha256.Sum256([]byte(secret)), set: true}
}

// Check reports whether presented equals the configured secret.
// Both sides are hashed first so the comparison time does not depend on length.
func (w *WorkerAuthenticator) Check(presented string) bool {
	if !w.set || presented == "" {
		return false
	}
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(got[:], w.digest[:]) == 1
}
