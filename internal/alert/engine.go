package alert

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// Engine owns the alert collection. Every mutation goes through the
// defined transitions; evaluation passes read many alerts while
// create/toggle/setStatus touch one, so the collection sits behind a
// readers-writer lock. Notification delivery is fire-and-forget and
// never affects alert state.
type Engine struct {
	store    contracts.AlertStore
	notifier contracts.Notifier
	baseline contracts.BaselineProvider
	logger   *logger.Logger

	mu     sync.RWMutex
	alerts map[string]*contracts.Alert

	// id generation: engine epoch plus an atomically incremented
	// sequence, with a collision check against the loaded set.
	epoch int64
	seq   atomic.Uint64

	notifyWG sync.WaitGroup
}

// Update is the screening output handed to one evaluation pass.
type Update struct {
	Results   []contracts.CombinedResult
	Snapshots map[string]*contracts.InstrumentSnapshot
}

// Outcome pairs an alert with whether this pass transitioned it.
type Outcome struct {
	Alert        contracts.Alert
	Transitioned bool
}

// NewEngine creates an engine and loads the persisted alert set.
func NewEngine(ctx context.Context, store contracts.AlertStore, notifier contracts.Notifier, baseline contracts.BaselineProvider, log *logger.Logger) (*Engine, error) {
	persisted, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	alerts := make(map[string]*contracts.Alert, len(persisted))
	for _, a := range persisted {
		alerts[a.ID] = a
	}

	log.WithField("count", len(alerts)).Info("Alert engine loaded")

	return &Engine{
		store:    store,
		notifier: notifier,
		baseline: baseline,
		logger:   log,
		alerts:   alerts,
		epoch:    time.Now().UnixNano(),
	}, nil
}

// Create registers a new alert in active state. The condition is
// validated synchronously; a rejected alert is never created. Ids are
// collision-free under concurrent creation.
func (e *Engine) Create(ctx context.Context, kind contracts.AlertKind, code string, condition contracts.AlertCondition) (*contracts.Alert, error) {
	if err := contracts.ValidateCondition(kind, code, condition); err != nil {
		return nil, err
	}

	alert := &contracts.Alert{
		InstrumentCode: code,
		Kind:           kind,
		Condition:      condition,
		Status:         contracts.AlertActive,
		CreatedAt:      time.Now(),
	}

	e.mu.Lock()
	for {
		id := e.nextID()
		if _, taken := e.alerts[id]; !taken {
			alert.ID = id
			break
		}
		// Collision with a persisted id from an earlier epoch; the
		// sequence advances, so the loop terminates.
	}
	e.alerts[alert.ID] = alert
	e.mu.Unlock()

	if err := e.store.Put(ctx, alert); err != nil {
		e.mu.Lock()
		delete(e.alerts, alert.ID)
		e.mu.Unlock()
		return nil, fmt.Errorf("failed to persist alert: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"alert": alert.ID,
		"kind":  kind,
		"code":  code,
	}).Info("Alert created")

	out := *alert
	return &out, nil
}

// nextID builds a process-unique alert id.
func (e *Engine) nextID() string {
	return fmt.Sprintf("al-%x-%06d", e.epoch, e.seq.Add(1))
}

// Get returns a copy of one alert.
func (e *Engine) Get(ctx context.Context, id string) (*contracts.Alert, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	alert, ok := e.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", contracts.ErrNotFound, id)
	}
	out := *alert
	return &out, nil
}

// List returns a copy of all alerts.
func (e *Engine) List(ctx context.Context) []contracts.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]contracts.Alert, 0, len(e.alerts))
	for _, alert := range e.alerts {
		out = append(out, *alert)
	}
	return out
}

// Toggle flips active<->disabled regardless of prior triggered history:
// a disabled alert becomes active, anything else becomes disabled.
func (e *Engine) Toggle(ctx context.Context, id string) (*contracts.Alert, error) {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: alert %s", contracts.ErrNotFound, id)
	}

	var eventKind string
	if alert.Status == contracts.AlertDisabled {
		alert.Status = contracts.AlertActive
		eventKind = "enabled"
	} else {
		alert.Status = contracts.AlertDisabled
		eventKind = "disabled"
	}
	snapshot := *alert
	e.mu.Unlock()

	if err := e.store.Put(ctx, &snapshot); err != nil {
		e.logger.WithError(err).WithField("alert", id).Error("Failed to persist alert toggle")
	}

	e.dispatch(snapshot, contracts.AlertEvent{
		Kind:           eventKind,
		AlertID:        snapshot.ID,
		InstrumentCode: snapshot.InstrumentCode,
		Status:         snapshot.Status,
		Message:        fmt.Sprintf("alert %s %s", snapshot.ID, eventKind),
		At:             time.Now(),
	})

	return &snapshot, nil
}

// SetStatus performs an explicit administrative transition, e.g. the
// manual reset of triggered back to active. Illegal edges fail with
// ErrInvalidTransition; setting the current status again is a no-op.
func (e *Engine) SetStatus(ctx context.Context, id string, status contracts.AlertStatus) (*contracts.Alert, error) {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: alert %s", contracts.ErrNotFound, id)
	}

	if alert.Status == status {
		snapshot := *alert
		e.mu.Unlock()
		return &snapshot, nil
	}

	if !validTransition(alert.Status, status) {
		from := alert.Status
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", contracts.ErrInvalidTransition, from, status)
	}

	alert.Status = status
	if status == contracts.AlertTriggered {
		now := time.Now()
		alert.TriggeredAt = &now
	}
	snapshot := *alert
	e.mu.Unlock()

	if err := e.store.Put(ctx, &snapshot); err != nil {
		e.logger.WithError(err).WithField("alert", id).Error("Failed to persist alert status")
	}

	eventKind := "status-change"
	if status == contracts.AlertActive {
		eventKind = "reset"
	}
	e.dispatch(snapshot, contracts.AlertEvent{
		Kind:           eventKind,
		AlertID:        snapshot.ID,
		InstrumentCode: snapshot.InstrumentCode,
		Status:         snapshot.Status,
		Message:        fmt.Sprintf("alert %s set to %s", snapshot.ID, status),
		At:             time.Now(),
	})

	return &snapshot, nil
}

// Delete removes an alert permanently.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	_, ok := e.alerts[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: alert %s", contracts.ErrNotFound, id)
	}
	delete(e.alerts, id)
	e.mu.Unlock()

	if err := e.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// validTransition encodes the state machine edges reachable through
// SetStatus. disabled cannot jump straight to triggered: it must pass
// through active first.
func validTransition(from, to contracts.AlertStatus) bool {
	switch from {
	case contracts.AlertActive:
		return to == contracts.AlertTriggered || to == contracts.AlertDisabled
	case contracts.AlertTriggered:
		return to == contracts.AlertActive || to == contracts.AlertDisabled
	case contracts.AlertDisabled:
		return to == contracts.AlertActive
	}
	return false
}

// EvaluateAll runs one evaluation pass over every alert. Only active
// alerts are considered; evaluating a disabled or already-triggered
// alert is a no-op reported as not transitioned.
func (e *Engine) EvaluateAll(ctx context.Context, update Update) []Outcome {
	// Index the candidate set once per pass.
	byCode := make(map[string]*contracts.CombinedResult, len(update.Results))
	for i := range update.Results {
		byCode[update.Results[i].Code] = &update.Results[i]
	}

	e.mu.RLock()
	pending := make([]contracts.Alert, 0, len(e.alerts))
	for _, alert := range e.alerts {
		pending = append(pending, *alert)
	}
	e.mu.RUnlock()

	outcomes := make([]Outcome, 0, len(pending))
	for _, alert := range pending {
		if alert.Status != contracts.AlertActive {
			outcomes = append(outcomes, Outcome{Alert: alert, Transitioned: false})
			continue
		}

		met, reason := e.conditionMet(ctx, &alert, byCode, update.Snapshots)
		if !met {
			outcomes = append(outcomes, Outcome{Alert: alert, Transitioned: false})
			continue
		}

		transitioned, current := e.trigger(ctx, alert.ID, reason)
		outcomes = append(outcomes, Outcome{Alert: current, Transitioned: transitioned})
	}

	return outcomes
}

// EvaluateTick evaluates the direct price/volume conditions for one
// instrument against a raw tick between full scans.
func (e *Engine) EvaluateTick(ctx context.Context, code string, price float64, volume int64) []Outcome {
	snapshot := &contracts.InstrumentSnapshot{Code: code, Price: price, Volume: volume}
	update := Update{Snapshots: map[string]*contracts.InstrumentSnapshot{code: snapshot}}

	e.mu.RLock()
	pending := make([]contracts.Alert, 0)
	for _, alert := range e.alerts {
		if alert.InstrumentCode == code && alert.Kind != contracts.AlertStrategyMatch {
			pending = append(pending, *alert)
		}
	}
	e.mu.RUnlock()

	outcomes := make([]Outcome, 0, len(pending))
	for _, alert := range pending {
		if alert.Status != contracts.AlertActive {
			outcomes = append(outcomes, Outcome{Alert: alert, Transitioned: false})
			continue
		}

		met, reason := e.conditionMet(ctx, &alert, nil, update.Snapshots)
		if !met {
			outcomes = append(outcomes, Outcome{Alert: alert, Transitioned: false})
			continue
		}

		transitioned, current := e.trigger(ctx, alert.ID, reason)
		outcomes = append(outcomes, Outcome{Alert: current, Transitioned: transitioned})
	}

	return outcomes
}

// conditionMet checks one active alert against the pass input.
// A missing snapshot or baseline means "not met", never an error.
func (e *Engine) conditionMet(ctx context.Context, alert *contracts.Alert, byCode map[string]*contracts.CombinedResult, snapshots map[string]*contracts.InstrumentSnapshot) (bool, string) {
	switch alert.Kind {
	case contracts.AlertPriceThreshold:
		snapshot, ok := snapshots[alert.InstrumentCode]
		if !ok {
			return false, ""
		}
		cond := alert.Condition
		if cond.Operator == contracts.OpGTE && snapshot.Price >= cond.Threshold {
			return true, fmt.Sprintf("price %.2f >= %.2f", snapshot.Price, cond.Threshold)
		}
		if cond.Operator == contracts.OpLTE && snapshot.Price <= cond.Threshold {
			return true, fmt.Sprintf("price %.2f <= %.2f", snapshot.Price, cond.Threshold)
		}
		return false, ""

	case contracts.AlertStrategyMatch:
		result, ok := byCode[alert.InstrumentCode]
		if !ok {
			return false, ""
		}
		if result.Matched(alert.Condition.StrategyID) {
			return true, fmt.Sprintf("strategy %s matched with total score %d", alert.Condition.StrategyID, result.TotalScore)
		}
		return false, ""

	case contracts.AlertVolumeSurge:
		snapshot, ok := snapshots[alert.InstrumentCode]
		if !ok {
			return false, ""
		}
		baseline, err := e.baseline.VolumeBaseline(ctx, alert.InstrumentCode)
		if err != nil || baseline <= 0 {
			if err != nil {
				e.logger.WithError(err).WithField("code", alert.InstrumentCode).Warn("Volume baseline unavailable")
			}
			return false, ""
		}
		if float64(snapshot.Volume) > alert.Condition.SurgeMultiple*baseline {
			return true, fmt.Sprintf("volume %d above %.1fx baseline %.0f", snapshot.Volume, alert.Condition.SurgeMultiple, baseline)
		}
		return false, ""
	}

	return false, ""
}

// trigger moves an alert to triggered if it is still active. The
// re-check under the write lock closes the race with a concurrent
// toggle or another evaluation pass.
func (e *Engine) trigger(ctx context.Context, id, reason string) (bool, contracts.Alert) {
	e.mu.Lock()
	alert, ok := e.alerts[id]
	if !ok || alert.Status != contracts.AlertActive {
		var current contracts.Alert
		if ok {
			current = *alert
		}
		e.mu.Unlock()
		return false, current
	}

	now := time.Now()
	alert.Status = contracts.AlertTriggered
	alert.TriggeredAt = &now
	snapshot := *alert
	e.mu.Unlock()

	if err := e.store.Put(ctx, &snapshot); err != nil {
		e.logger.WithError(err).WithField("alert", id).Error("Failed to persist triggered alert")
	}

	e.dispatch(snapshot, contracts.AlertEvent{
		Kind:           "triggered",
		AlertID:        snapshot.ID,
		InstrumentCode: snapshot.InstrumentCode,
		Status:         snapshot.Status,
		Message:        reason,
		At:             now,
	})

	e.logger.WithFields(map[string]interface{}{
		"alert":  id,
		"code":   snapshot.InstrumentCode,
		"reason": reason,
	}).Info("Alert triggered")

	return true, snapshot
}

// dispatch delivers an event without blocking the caller. Delivery
// failures are logged and dropped.
func (e *Engine) dispatch(alert contracts.Alert, event contracts.AlertEvent) {
	if e.notifier == nil {
		return
	}

	e.notifyWG.Add(1)
	go func() {
		defer e.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := e.notifier.Notify(ctx, alert, event); err != nil {
			e.logger.WithError(err).WithField("alert", alert.ID).Warn("Notification delivery failed")
		}
	}()
}

// Drain waits for in-flight notifications. Called on shutdown.
func (e *Engine) Drain() {
	e.notifyWG.Wait()
}
