package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// captureNotifier records delivered events and can be told to fail.
type captureNotifier struct {
	mu     sync.Mutex
	events []contracts.AlertEvent
	err    error
}

func (n *captureNotifier) Notify(ctx context.Context, alert contracts.Alert, event contracts.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func newTestEngine(t *testing.T) (*Engine, *captureNotifier, *StaticBaseline) {
	t.Helper()

	notifier := &captureNotifier{}
	baseline := NewStaticBaseline(nil)
	engine, err := NewEngine(context.Background(), NewMemStore(), notifier, baseline, logger.NewNop())
	require.NoError(t, err)
	return engine, notifier, baseline
}

func priceAlert(t *testing.T, engine *Engine, code string, op string, threshold float64) *contracts.Alert {
	t.Helper()

	alert, err := engine.Create(context.Background(), contracts.AlertPriceThreshold, code,
		contracts.AlertCondition{Operator: op, Threshold: threshold})
	require.NoError(t, err)
	return alert
}

func snapshotUpdate(code string, price float64, volume int64) Update {
	return Update{Snapshots: map[string]*contracts.InstrumentSnapshot{
		code: {Code: code, Price: price, Volume: volume},
	}}
}

func TestCreate_ValidatesCondition(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Create(ctx, contracts.AlertPriceThreshold, "7203",
		contracts.AlertCondition{Operator: "==", Threshold: 3000})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = engine.Create(ctx, contracts.AlertVolumeSurge, "7203",
		contracts.AlertCondition{SurgeMultiple: 0.5})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = engine.Create(ctx, contracts.AlertKind("unknown"), "7203", contracts.AlertCondition{})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	// Nothing was created.
	assert.Empty(t, engine.List(ctx))
}

func TestCreate_StartsActive(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, contracts.AlertActive, alert.Status)
	assert.Nil(t, alert.TriggeredAt)
}

func TestCreate_ConcurrentIDsAreDistinct(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	const n = 50
	ids := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alert, err := engine.Create(context.Background(), contracts.AlertPriceThreshold,
				fmt.Sprintf("%04d", 1000+i),
				contracts.AlertCondition{Operator: contracts.OpGTE, Threshold: 100})
			assert.NoError(t, err)
			ids <- alert.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestToggle_FlipsActiveAndDisabled(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)

	toggled, err := engine.Toggle(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertDisabled, toggled.Status)

	toggled, err = engine.Toggle(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertActive, toggled.Status)

	toggled, err = engine.Toggle(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertDisabled, toggled.Status)
}

func TestToggle_TriggeredBecomesDisabled(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)
	_, err := engine.SetStatus(ctx, alert.ID, contracts.AlertTriggered)
	require.NoError(t, err)

	toggled, err := engine.Toggle(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertDisabled, toggled.Status)
}

func TestToggle_UnknownAlert(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Toggle(context.Background(), "al-missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestSetStatus_Transitions(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)

	// active -> triggered sets the trigger time.
	updated, err := engine.SetStatus(ctx, alert.ID, contracts.AlertTriggered)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertTriggered, updated.Status)
	require.NotNil(t, updated.TriggeredAt)

	// triggered -> active is the manual reset.
	updated, err = engine.SetStatus(ctx, alert.ID, contracts.AlertActive)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertActive, updated.Status)

	// active -> disabled, then disabled -> triggered is illegal.
	_, err = engine.SetStatus(ctx, alert.ID, contracts.AlertDisabled)
	require.NoError(t, err)

	_, err = engine.SetStatus(ctx, alert.ID, contracts.AlertTriggered)
	assert.ErrorIs(t, err, contracts.ErrInvalidTransition)

	// Setting the current status again is a no-op.
	updated, err = engine.SetStatus(ctx, alert.ID, contracts.AlertDisabled)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertDisabled, updated.Status)
}

func TestEvaluateAll_PriceThresholdTriggersOnce(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)
	ctx := context.Background()

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)

	// Below the threshold: nothing happens.
	outcomes := engine.EvaluateAll(ctx, snapshotUpdate("7203", 2900, 10000))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Transitioned)
	assert.Equal(t, contracts.AlertActive, outcomes[0].Alert.Status)

	// Crossing the threshold triggers exactly once.
	outcomes = engine.EvaluateAll(ctx, snapshotUpdate("7203", 3100, 10000))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Transitioned)
	assert.Equal(t, contracts.AlertTriggered, outcomes[0].Alert.Status)
	require.NotNil(t, outcomes[0].Alert.TriggeredAt)

	// Re-evaluating the triggered alert is a no-op.
	outcomes = engine.EvaluateAll(ctx, snapshotUpdate("7203", 3200, 10000))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Transitioned)

	engine.Drain()
	assert.Equal(t, 1, notifier.count(), "one triggered notification")

	stored, err := engine.Get(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertTriggered, stored.Status)
}

func TestEvaluateAll_LTEOperator(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	priceAlert(t, engine, "7203", contracts.OpLTE, 2500)

	outcomes := engine.EvaluateAll(ctx, snapshotUpdate("7203", 2400, 10000))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Transitioned)
}

func TestEvaluateAll_DisabledAlertIgnored(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)
	ctx := context.Background()

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)
	_, err := engine.Toggle(ctx, alert.ID)
	require.NoError(t, err)

	outcomes := engine.EvaluateAll(ctx, snapshotUpdate("7203", 3500, 10000))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Transitioned)
	assert.Equal(t, contracts.AlertDisabled, outcomes[0].Alert.Status)

	engine.Drain()
	// Only the toggle event was delivered.
	assert.Equal(t, 1, notifier.count())
}

func TestEvaluateAll_StrategyMatch(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Create(ctx, contracts.AlertStrategyMatch, "7203",
		contracts.AlertCondition{StrategyID: contracts.StrategyA})
	require.NoError(t, err)

	// The candidate set matched strategy B only: no trigger.
	update := Update{Results: []contracts.CombinedResult{{
		Code: "7203",
		StrategyResults: map[contracts.StrategyID]contracts.StrategyResult{
			contracts.StrategyB: {StrategyID: contracts.StrategyB, Matched: true, Score: 90},
		},
		TotalScore: 90,
	}}}
	outcomes := engine.EvaluateAll(ctx, update)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Transitioned)

	// Strategy A match triggers.
	update.Results[0].StrategyResults[contracts.StrategyA] = contracts.StrategyResult{
		StrategyID: contracts.StrategyA, Matched: true, Score: 120,
	}
	outcomes = engine.EvaluateAll(ctx, update)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Transitioned)
}

func TestEvaluateAll_VolumeSurge(t *testing.T) {
	engine, _, baseline := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.Create(ctx, contracts.AlertVolumeSurge, "7203",
		contracts.AlertCondition{SurgeMultiple: 3})
	require.NoError(t, err)

	// No baseline yet: condition not met, no error.
	outcomes := engine.EvaluateAll(ctx, snapshotUpdate("7203", 1000, 500000))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Transitioned)

	baseline.Set("7203", 100000)

	// 250k < 3x 100k baseline.
	outcomes = engine.EvaluateAll(ctx, snapshotUpdate("7203", 1000, 250000))
	assert.False(t, outcomes[0].Transitioned)

	// 500k > 3x 100k baseline.
	outcomes = engine.EvaluateAll(ctx, snapshotUpdate("7203", 1000, 500000))
	assert.True(t, outcomes[0].Transitioned)
}

func TestEvaluateTick_DirectConditionsOnly(t *testing.T) {
	engine, _, baseline := newTestEngine(t)
	ctx := context.Background()
	baseline.Set("7203", 100000)

	priceAlert(t, engine, "7203", contracts.OpGTE, 3000)
	_, err := engine.Create(ctx, contracts.AlertVolumeSurge, "7203",
		contracts.AlertCondition{SurgeMultiple: 3})
	require.NoError(t, err)
	_, err = engine.Create(ctx, contracts.AlertStrategyMatch, "7203",
		contracts.AlertCondition{StrategyID: contracts.StrategyA})
	require.NoError(t, err)
	priceAlert(t, engine, "6758", contracts.OpGTE, 100) // other instrument

	outcomes := engine.EvaluateTick(ctx, "7203", 3100, 400000)

	// Strategy-match and foreign-code alerts are not tick candidates.
	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.True(t, outcome.Transitioned)
	}
}

func TestNotifierFailureDoesNotAffectState(t *testing.T) {
	engine, notifier, _ := newTestEngine(t)
	ctx := context.Background()
	notifier.err = errors.New("webhook down")

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)

	outcomes := engine.EvaluateAll(ctx, snapshotUpdate("7203", 3100, 10000))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Transitioned)

	engine.Drain()

	stored, err := engine.Get(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, contracts.AlertTriggered, stored.Status)
}

func TestDelete_RemovesAlert(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	alert := priceAlert(t, engine, "7203", contracts.OpGTE, 3000)
	require.NoError(t, engine.Delete(ctx, alert.ID))

	_, err := engine.Get(ctx, alert.ID)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	err = engine.Delete(ctx, alert.ID)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestNewEngine_LoadsPersistedAlerts(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	first, err := NewEngine(ctx, store, &captureNotifier{}, NewStaticBaseline(nil), logger.NewNop())
	require.NoError(t, err)

	alert, err := first.Create(ctx, contracts.AlertPriceThreshold, "7203",
		contracts.AlertCondition{Operator: contracts.OpGTE, Threshold: 3000})
	require.NoError(t, err)

	second, err := NewEngine(ctx, store, &captureNotifier{}, NewStaticBaseline(nil), logger.NewNop())
	require.NoError(t, err)

	loaded, err := second.Get(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, loaded.ID)
	assert.Equal(t, contracts.AlertActive, loaded.Status)
}
