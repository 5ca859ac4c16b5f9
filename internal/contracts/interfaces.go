package contracts

import (
	"context"
)

// DataProvider supplies the instrument universe and point-in-time
// snapshots. Implementations may fail with ErrDataUnavailable or
// ErrTimeout; the orchestrator isolates those per instrument.
type DataProvider interface {
	// Universe returns the full ordered list of instrument codes.
	// Batch numbering is defined against this ordering.
	Universe(ctx context.Context) ([]string, error)

	// FetchSnapshot returns a fresh snapshot for one code.
	FetchSnapshot(ctx context.Context, code string) (*InstrumentSnapshot, error)
}

// Evaluator turns a snapshot into a strategy result. Implementations
// are pure: no I/O, no shared state, total over validated snapshots.
type Evaluator interface {
	ID() StrategyID
	Evaluate(snapshot *InstrumentSnapshot) StrategyResult
}

// Notifier delivers an alert transition event. Fire-and-forget: a
// delivery failure never affects alert state.
type Notifier interface {
	Notify(ctx context.Context, alert Alert, event AlertEvent) error
}

// AlertStore durably stores alert records. The engine treats it as a
// plain keyed repository.
type AlertStore interface {
	Get(ctx context.Context, id string) (*Alert, error)
	Put(ctx context.Context, alert *Alert) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Alert, error)
}

// BaselineProvider supplies the trailing volume baseline used by
// volume-surge alerts.
type BaselineProvider interface {
	VolumeBaseline(ctx context.Context, code string) (float64, error)
}
