package selection

import (
	"sort"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Combine merges the two per-strategy results for one instrument.
// Returns nil when neither strategy matched; that filter is what keeps
// the candidate set bounded. Scores are combined raw (unclamped), with
// the dual-match bonus on top.
func Combine(snapshot *contracts.InstrumentSnapshot, resultA, resultB contracts.StrategyResult) *contracts.CombinedResult {
	if !resultA.Matched && !resultB.Matched {
		return nil
	}

	combined := &contracts.CombinedResult{
		Code:            snapshot.Code,
		Name:            snapshot.Name,
		StrategyResults: make(map[contracts.StrategyID]contracts.StrategyResult, 2),
	}

	total := 0
	if resultA.Matched {
		combined.StrategyResults[resultA.StrategyID] = resultA
		total += resultA.Score
	}
	if resultB.Matched {
		combined.StrategyResults[resultB.StrategyID] = resultB
		total += resultB.Score
	}
	if resultA.Matched && resultB.Matched {
		total += contracts.DualMatchBonus
	}

	combined.TotalScore = total
	return combined
}

// Rank orders candidates by descending total score, ties broken by
// ascending instrument code for determinism, and assigns rank 1..N.
// The input slice is sorted in place and returned.
func Rank(results []contracts.CombinedResult) []contracts.CombinedResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return results[i].Code < results[j].Code
	})

	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}
