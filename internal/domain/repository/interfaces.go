package repository

import (
	"context"
	"time"

	"hermes/internal/domain/models"
)

// EventStream is a live feed of fully-formed events (e.g. a WebSocket feed).
type EventStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Event, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PriceSource resolves historical closing prices. A missing price is not an
// error: (0, false, nil) means "not yet resolvable".
type PriceSource interface {
	ClosePrice(ctx context.Context, symbol string, onOrBefore time.Time) (float64, bool, error)
}

// SnapshotStore persists whole-blob snapshots keyed by string. Load fills
// dest; a missing key yields found=false and leaves dest untouched.
type SnapshotStore interface {
	Save(ctx context.Context, key string, value interface{}) error
	Load(ctx context.Context, key string, dest interface{}) (bool, error)
}

// OutcomeSink receives resolved calibration outcomes for offline analysis.
type OutcomeSink interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, o *models.ResolvedOutcome) error
	Health(ctx context.Context) error
	Close() error
}

// OutcomePublisher announces resolved outcomes to downstream consumers.
type OutcomePublisher interface {
	Publish(ctx context.Context, o *models.ResolvedOutcome) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordEventScored(scope, eventType string)
	RecordOutcomeResolved(scope, group string, hit bool)
	RecordPendingDepth(n int)
	RecordCalibratedScore(scope, eventType string, score float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
