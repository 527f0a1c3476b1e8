// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Entity kinds used as metric labels.
const (
	KindUser       = "user"
	KindTag        = "tag"
	KindIngredient = "ingredient"
	KindRecipe     = "recipe"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory for tests.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Auth metrics
	IncAuthCacheHit()
	IncAuthCacheMiss()
	IncAuthFailure(reason string)
	IncTokenIssued()

	// Domain metrics
	IncEntityCreated(kind string)
	IncEntityUpdated(kind string)
	IncEntityDeleted(kind string)
	IncImageUpload(status string) // status: "stored" or "rejected"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
