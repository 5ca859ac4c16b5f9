package strategy

import (
	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Both evaluators are pure: same snapshot in, same result out, no I/O.
// They are safe to call from any number of workers without locking.

// Confidence buckets derived from the raw score. Raw scores can exceed
// 100; the bucket uses the raw value so a very strong signal reads as
// high confidence even before display clamping.
func confidenceFor(matched bool, score int) contracts.Confidence {
	switch {
	case matched && score >= 90:
		return contracts.ConfidenceHigh
	case matched:
		return contracts.ConfidenceMedium
	default:
		return contracts.ConfidenceLow
	}
}
