package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Registrations       map[string]uint64
	Logins              map[string]uint64
	APIKeyVerifies      map[string]uint64
	TokenVerifies       map[string]uint64
	KeyCacheHits        uint64
	KeyCacheMisses      uint64
	GatewayCalls        map[string]uint64
	HTTPRequests        uint64
	HTTPDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu             sync.Mutex
	registrations  map[string]uint64
	logins         map[string]uint64
	apiKeyVerifies map[string]uint64
	tokenVerifies  map[string]uint64
	gatewayCalls   map[string]uint64

	keyCacheHits        uint64
	keyCacheMisses      uint64
	httpRequests        uint64
	httpDurationTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		registrations:  make(map[string]uint64),
		logins:         make(map[string]uint64),
		apiKeyVerifies: make(map[string]uint64),
		tokenVerifies:  make(map[string]uint64),
		gatewayCalls:   make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Registrations:       copyCounts(m.registrations),
		Logins:              copyCounts(m.logins),
		APIKeyVerifies:      copyCounts(m.apiKeyVerifies),
		TokenVerifies:       copyCounts(m.tokenVerifies),
		GatewayCalls:        copyCounts(m.gatewayCalls),
		KeyCacheHits:        atomic.LoadUint64(&m.keyCacheHits),
		KeyCacheMisses:      atomic.LoadUint64(&m.keyCacheMisses),
		HTTPRequests:        atomic.LoadUint64(&m.httpRequests),
		HTTPDurationTotalNs: atomic.LoadInt64(&m.httpDurationTotalNs),
	}
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

// IncRegistration counts a registration outcome.
func (m *InMemoryRecorder) IncRegistration(status string) { m.inc(m.registrations, status) }

// IncLogin counts a login outcome.
func (m *InMemoryRecorder) IncLogin(status string) { m.inc(m.logins, status) }

// IncAPIKeyVerification counts an api key verification outcome.
func (m *InMemoryRecorder) IncAPIKeyVerification(status string) { m.inc(m.apiKeyVerifies, status) }

// IncTokenVerification counts a session token verification outcome.
func (m *InMemoryRecorder) IncTokenVerification(status string) { m.inc(m.tokenVerifies, status) }

// IncKeyCacheHit increments the verified key cache hit counter.
func (m *InMemoryRecorder) IncKeyCacheHit() {
	atomic.AddUint64(&m.keyCacheHits, 1)
}

// IncKeyCacheMiss increments the verified key cache miss counter.
func (m *InMemoryRecorder) IncKeyCacheMiss() {
	atomic.AddUint64(&m.keyCacheMisses, 1)
}

// ObserveGatewayDuration counts a gateway call.
func (m *InMemoryRecorder) ObserveGatewayDuration(operation string, _ time.Duration) {
	m.inc(m.gatewayCalls, operation)
}

// ObserveHTTPRequest records a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(_, _ string, _ int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
	atomic.AddInt64(&m.httpDurationTotalNs, duration.Nanoseconds())
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
