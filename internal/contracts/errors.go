package contracts

import "errors"

// Error taxonomy for the screening engine. Callers branch with errors.Is;
// wrapping sites add context with fmt.Errorf("...: %w", err).
var (
	// ErrDataUnavailable means the provider returned nothing for a code.
	// During a batch the instrument is skipped and the error count grows.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrTimeout means the provider exceeded its deadline. Handled the
	// same way as ErrDataUnavailable.
	ErrTimeout = errors.New("fetch timeout")

	// ErrValidation marks malformed input: a bad alert condition at
	// creation, or a snapshot missing required numeric fields.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for an unknown alert id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition marks an illegal alert state-machine edge.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOutOfRange is returned when a batch number is >= total batches.
	ErrOutOfRange = errors.New("batch number out of range")

	// ErrBatchInFlight is returned when a batch number already has a
	// running batch; duplicate concurrent runs are rejected, not queued.
	ErrBatchInFlight = errors.New("batch already in flight")
)
