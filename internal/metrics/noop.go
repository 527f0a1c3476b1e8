package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
func (n *NoopRecorder) IncAuthCacheHit()                                                           {}
func (n *NoopRecorder) IncAuthCacheMiss()                                                          {}
func (n *NoopRecorder) IncAuthFailure(reason string)                                               {}
func (n *NoopRecorder) IncTokenIssued()                                                            {}
func (n *NoopRecorder) IncEntityCreated(kind string)                                               {}
func (n *NoopRecorder) IncEntityUpdated(kind string)                                               {}
func (n *NoopRecorder) IncEntityDeleted(kind string)                                               {}
func (n *NoopRecorder) IncImageUpload(status string)                                               {}
