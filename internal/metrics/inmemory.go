package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests    uint64
	AuthCacheHits   uint64
	AuthCacheMisses uint64
	AuthFailures    map[string]uint64
	TokensIssued    uint64
	Created         map[string]uint64
	Updated         map[string]uint64
	Deleted         map[string]uint64
	ImageUploads    map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	httpRequests    uint64
	authCacheHits   uint64
	authCacheMisses uint64
	tokensIssued    uint64

	mu           sync.Mutex
	authFailures map[string]uint64
	created      map[string]uint64
	updated      map[string]uint64
	deleted      map[string]uint64
	imageUploads map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		authFailures: make(map[string]uint64),
		created:      make(map[string]uint64),
		updated:      make(map[string]uint64),
		deleted:      make(map[string]uint64),
		imageUploads: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		HTTPRequests:    atomic.LoadUint64(&m.httpRequests),
		AuthCacheHits:   atomic.LoadUint64(&m.authCacheHits),
		AuthCacheMisses: atomic.LoadUint64(&m.authCacheMisses),
		TokensIssued:    atomic.LoadUint64(&m.tokensIssued),
		AuthFailures:    copyCounts(m.authFailures),
		Created:         copyCounts(m.created),
		Updated:         copyCounts(m.updated),
		Deleted:         copyCounts(m.deleted),
		ImageUploads:    copyCounts(m.imageUploads),
	}
}

// ObserveHTTPRequest counts a served request.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}

// IncAuthCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncAuthCacheHit() {
	atomic.AddUint64(&m.authCacheHits, 1)
}

// IncAuthCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncAuthCacheMiss() {
	atomic.AddUint64(&m.authCacheMisses, 1)
}

// IncAuthFailure increments the failure counter for reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) {
	m.inc(m.authFailures, reason)
}

// IncTokenIssued increments the issued token counter.
func (m *InMemoryRecorder) IncTokenIssued() {
	atomic.AddUint64(&m.tokensIssued, 1)
}

// IncEntityCreated increments the created counter for kind.
func (m *InMemoryRecorder) IncEntityCreated(kind string) {
	m.inc(m.created, kind)
}

// IncEntityUpdated increments the updated counter for kind.
func (m *InMemoryRecorder) IncEntityUpdated(kind string) {
	m.inc(m.updated, kind)
}

// IncEntityDeleted increments the deleted counter for kind.
func (m *InMemoryRecorder) IncEntityDeleted(kind string) {
	m.inc(m.deleted, kind)
}

// IncImageUpload increments the upload counter for status.
func (m *InMemoryRecorder) IncImageUpload(status string) {
	m.inc(m.imageUploads, status)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, label string) {
	m.mu.Lock()
	counts[label]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
