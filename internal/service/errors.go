package service

import (
	"errors"
	"fmt"
	"time"
)

// Service errors. Validation failures are reported as *validation.Error.
var (
	ErrConflict     = errors.New("user already exists")
	ErrUnauthorized = errors.New("invalid credentials")
	ErrNotFound     = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid token")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrGateway      = errors.New("credential store unavailable")
)

// RateLimitError carries the limiter state for a rejected api key.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
