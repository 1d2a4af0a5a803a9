package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncRegistration(string) {}
func (n *NoopRecorder) IncLogin(string) {}
func (n *NoopRecorder) IncAPIKeyVerification(string) {}
func (n *NoopRecorder) IncTokenVerification(string) {}
func (n *NoopRecorder) IncKeyCacheHit() {}
func (n *NoopRecorder) IncKeyCacheMiss() {}
func (n *NoopRecorder) ObserveGatewayDuration(string, time.Duration) {}
func (n *NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
