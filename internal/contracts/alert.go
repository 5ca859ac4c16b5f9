package contracts

import (
	"fmt"
	"time"
)

// AlertKind is the watch condition category.
type AlertKind string

const (
	AlertPriceThreshold AlertKind = "price-threshold"
	AlertStrategyMatch  AlertKind = "strategy-match"
	AlertVolumeSurge    AlertKind = "volume-surge"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
	AlertDisabled  AlertStatus = "disabled"
)

// Comparison operators for price-threshold conditions.
const (
	OpGTE = ">="
	OpLTE = "<="
)

// AlertCondition is the condition payload of an alert. Which fields are
// meaningful depends on the alert kind.
type AlertCondition struct {
	// price-threshold
	Operator  string  `json:"operator,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`

	// strategy-match
	StrategyID StrategyID `json:"strategy_id,omitempty"`

	// volume-surge: trigger when volume > SurgeMultiple x trailing baseline
	SurgeMultiple float64 `json:"surge_multiple,omitempty"`
}

// Alert is a user-defined watch condition with an explicit lifecycle.
// It is owned by the alert engine and mutated only through the defined
// transitions.
type Alert struct {
	ID             string         `json:"id"`
	InstrumentCode string         `json:"instrument_code"`
	Kind           AlertKind      `json:"kind"`
	Condition      AlertCondition `json:"condition"`
	Status         AlertStatus    `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	TriggeredAt    *time.Time     `json:"triggered_at,omitempty"`
}

// ValidateCondition checks the condition against the alert kind.
// Rejected alerts are never created.
func ValidateCondition(kind AlertKind, code string, cond AlertCondition) error {
	if code == "" {
		return fmt.Errorf("%w: empty instrument code", ErrValidation)
	}

	switch kind {
	case AlertPriceThreshold:
		if cond.Operator != OpGTE && cond.Operator != OpLTE {
			return fmt.Errorf("%w: operator must be %q or %q, got %q", ErrValidation, OpGTE, OpLTE, cond.Operator)
		}
		if cond.Threshold <= 0 {
			return fmt.Errorf("%w: threshold must be positive, got %v", ErrValidation, cond.Threshold)
		}
	case AlertStrategyMatch:
		if cond.StrategyID != StrategyA && cond.StrategyID != StrategyB {
			return fmt.Errorf("%w: unknown strategy id %q", ErrValidation, cond.StrategyID)
		}
	case AlertVolumeSurge:
		if cond.SurgeMultiple <= 1 {
			return fmt.Errorf("%w: surge multiple must exceed 1, got %v", ErrValidation, cond.SurgeMultiple)
		}
	default:
		return fmt.Errorf("%w: unknown alert kind %q", ErrValidation, kind)
	}

	return nil
}

// AlertEvent describes a state transition handed to the notifier.
type AlertEvent struct {
	Kind           string      `json:"kind"` // "triggered", "reset", "enabled", "disabled"
	AlertID        string      `json:"alert_id"`
	InstrumentCode string      `json:"instrument_code"`
	Status         AlertStatus `json:"status"`
	Message        string      `json:"message"`
	At             time.Time   `json:"at"`
}
