// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by the auth counters.
const (
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusConflict    = "conflict"
	StatusInvalid     = "invalid"
	StatusExpired     = "expired"
	StatusRateLimited = "rate_limited"
	StatusError       = "error"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Identity operations
	IncRegistration(status string)
	IncLogin(status string)
	IncAPIKeyVerification(status string)
	IncTokenVerification(status string)

	// Verified key cache
	IncKeyCacheHit()
	IncKeyCacheMiss()

	// Store latency per gateway operation
	ObserveGatewayDuration(operation string, duration time.Duration)

	// HTTP surface
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
