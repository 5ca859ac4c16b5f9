package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

func matched(id contracts.StrategyID, score int) contracts.StrategyResult {
	return contracts.StrategyResult{StrategyID: id, Matched: true, Score: score}
}

func unmatched(id contracts.StrategyID) contracts.StrategyResult {
	return contracts.StrategyResult{StrategyID: id, Matched: false, Score: 40}
}

func TestCombine_NoneWhenNeitherMatched(t *testing.T) {
	snapshot := &contracts.InstrumentSnapshot{Code: "7203", Name: "Toyota Motor"}

	combined := Combine(snapshot, unmatched(contracts.StrategyA), unmatched(contracts.StrategyB))
	assert.Nil(t, combined)
}

func TestCombine_SingleMatchUnclamped(t *testing.T) {
	// The worked example: strategy A at raw 160, B unmatched.
	snapshot := &contracts.InstrumentSnapshot{Code: "4385", Name: "Mercari"}

	combined := Combine(snapshot, matched(contracts.StrategyA, 160), unmatched(contracts.StrategyB))
	require.NotNil(t, combined)

	assert.Equal(t, 160, combined.TotalScore)
	assert.True(t, combined.Matched(contracts.StrategyA))
	assert.False(t, combined.Matched(contracts.StrategyB))
	assert.False(t, combined.DualMatch())

	// Unmatched results must not leak into the combined set.
	_, ok := combined.StrategyResults[contracts.StrategyB]
	assert.False(t, ok)
}

func TestCombine_DualMatchBonus(t *testing.T) {
	snapshot := &contracts.InstrumentSnapshot{Code: "3998"}

	combined := Combine(snapshot, matched(contracts.StrategyA, 90), matched(contracts.StrategyB, 85))
	require.NotNil(t, combined)

	assert.Equal(t, 90+85+20, combined.TotalScore)
	assert.True(t, combined.DualMatch())
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	results := []contracts.CombinedResult{
		{Code: "9984", TotalScore: 120},
		{Code: "7203", TotalScore: 195},
		{Code: "4385", TotalScore: 120},
		{Code: "6758", TotalScore: 80},
	}

	ranked := Rank(results)
	require.Len(t, ranked, 4)

	assert.Equal(t, "7203", ranked[0].Code)
	assert.Equal(t, 1, ranked[0].Rank)

	// Tie at 120 broken by ascending code.
	assert.Equal(t, "4385", ranked[1].Code)
	assert.Equal(t, "9984", ranked[2].Code)

	assert.Equal(t, "6758", ranked[3].Code)
	assert.Equal(t, 4, ranked[3].Rank)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}
