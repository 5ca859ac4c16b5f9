package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

var testNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func stopHighSnapshot() *contracts.InstrumentSnapshot {
	return &contracts.InstrumentSnapshot{
		Code:           "4385",
		Name:           "Mercari",
		Price:          3135,
		PriceChangePct: 20,
		Volume:         200000,
		ListingDate:    testNow.AddDate(-2, 0, 0),
		PERatio:        15,
		MarketCap:      5.0e11,
		Low52W:         2100,
		High52W:        3200,
	}
}

func TestStopHigh_WorkedExample(t *testing.T) {
	// base 50 + early 10 + stop-high 40 + volume surge 30 + strong rise 20 + PE 10 = 160
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)
	result := eval.Evaluate(stopHighSnapshot())

	require.True(t, result.Matched)
	assert.Equal(t, 160, result.Score, "raw score stays unclamped")
	assert.Equal(t, 100, result.DisplayScore())
	assert.Equal(t, contracts.StrategyA, result.StrategyID)
	assert.Equal(t, contracts.ConfidenceHigh, result.Confidence)

	assert.InDelta(t, 3135*1.05, result.EntryPrice, 1e-9)
	assert.InDelta(t, 3135*1.24, result.TargetPrice, 1e-9)
	assert.InDelta(t, 3135*0.90, result.StopLossPrice, 1e-9)
	assert.Equal(t, 2.4, result.RiskRewardRatio)
	assert.Equal(t, 30, result.MaxHoldingDays)
	assert.Len(t, result.Reasons, 6)
}

func TestStopHigh_Deterministic(t *testing.T) {
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)
	snapshot := stopHighSnapshot()

	first := eval.Evaluate(snapshot)
	second := eval.Evaluate(snapshot)
	assert.Equal(t, first, second)
}

func TestStopHigh_RejectsOldListings(t *testing.T) {
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)

	snapshot := stopHighSnapshot()
	snapshot.ListingDate = testNow.AddDate(-6, 0, 0)

	result := eval.Evaluate(snapshot)
	assert.False(t, result.Matched)
	assert.Equal(t, 0, result.Score)
	assert.Zero(t, result.EntryPrice)
}

func TestStopHigh_RequiresStopHighMove(t *testing.T) {
	// High score from volume and momentum alone does not match without
	// the stop-high move itself.
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)

	snapshot := stopHighSnapshot()
	snapshot.PriceChangePct = 8 // strong rise, not a stop-high

	result := eval.Evaluate(snapshot)
	// 50 + 10 + 30 + 20 + 10 = 120, still no match
	assert.Equal(t, 120, result.Score)
	assert.False(t, result.Matched)
}

func TestStopHigh_FutureListingDateEligible(t *testing.T) {
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)

	snapshot := stopHighSnapshot()
	snapshot.ListingDate = testNow.AddDate(0, 3, 0)

	result := eval.Evaluate(snapshot)
	// Future listing counts as zero years: still eligible and still gets
	// the early-listing bonus.
	assert.True(t, result.Matched)
	assert.Equal(t, 160, result.Score)
}

func TestStopHigh_MissingPESkipsBonus(t *testing.T) {
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)

	snapshot := stopHighSnapshot()
	snapshot.PERatio = 0

	result := eval.Evaluate(snapshot)
	assert.Equal(t, 150, result.Score)
	assert.True(t, result.Matched)
}

func TestStopHigh_VolumeThresholdConfigurable(t *testing.T) {
	eval := NewStopHigh(StopHighConfig{VolumeSurgeThreshold: 500000}).WithClock(fixedClock)

	result := eval.Evaluate(stopHighSnapshot())
	// 200000 volume no longer clears the raised threshold.
	assert.Equal(t, 130, result.Score)
	assert.True(t, result.Matched)
}

func TestStopHigh_DisplayScoreInRange(t *testing.T) {
	eval := NewStopHigh(DefaultStopHighConfig()).WithClock(fixedClock)

	snapshots := []*contracts.InstrumentSnapshot{
		stopHighSnapshot(),
		{Code: "1111", Price: 100, ListingDate: testNow.AddDate(-4, 0, 0)},
		{Code: "2222", Price: 50, PriceChangePct: -12, Volume: 10, ListingDate: testNow.AddDate(-1, 0, 0)},
	}

	for _, s := range snapshots {
		result := eval.Evaluate(s)
		display := result.DisplayScore()
		assert.GreaterOrEqual(t, display, 0)
		assert.LessOrEqual(t, display, 100)
	}
}
