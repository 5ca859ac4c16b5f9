package strategy

import (
	"fmt"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Strategy B thresholds and trade parameters.
const (
	growthMarketCapMax = 50e9
	growthChangePct    = 3.0
	breakoutVolumeMin  = 50000
	breakoutLowMult    = 1.2

	turnaroundEntryMult  = 1.02
	turnaroundTargetMult = 1.25
	turnaroundStopMult   = 0.90
	turnaroundRiskReward = 2.5
	turnaroundMaxHold    = 45
)

// Turnaround is strategy B: a profit-turnaround and moving-average
// breakout detector. It only considers instruments whose snapshot
// carries both the prior-period and current-period profit figures.
type Turnaround struct{}

// NewTurnaround creates strategy B.
func NewTurnaround() *Turnaround {
	return &Turnaround{}
}

// ID implements contracts.Evaluator.
func (s *Turnaround) ID() contracts.StrategyID {
	return contracts.StrategyB
}

// Evaluate scores one snapshot. Raw score, see strategy A.
func (s *Turnaround) Evaluate(snapshot *contracts.InstrumentSnapshot) contracts.StrategyResult {
	result := contracts.StrategyResult{
		StrategyID: contracts.StrategyB,
		Reasons:    make([]string, 0, 5),
	}

	if snapshot.PriorProfit == nil || snapshot.CurrentProfit == nil {
		result.Reasons = append(result.Reasons, "profit figures for both periods unavailable")
		result.Confidence = contracts.ConfidenceLow
		return result
	}

	score := 50
	result.Reasons = append(result.Reasons, "base score 50")

	profitable := snapshot.PERatio > 0
	if profitable {
		score += 35
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("profitable: PER %.1f", snapshot.PERatio))
	}

	if snapshot.MarketCap < growthMarketCapMax && snapshot.PriceChangePct > growthChangePct {
		score += 25
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("growth potential: market cap %.0f under 50B with +%.1f%% move",
				snapshot.MarketCap, snapshot.PriceChangePct))
	}

	if snapshot.Volume > breakoutVolumeMin && snapshot.Price > snapshot.Low52W*breakoutLowMult {
		score += 25
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("technical breakout: price %.0f above 52w-low band %.0f",
				snapshot.Price, snapshot.Low52W*breakoutLowMult))
	}

	if snapshot.PriceChangePct > 2.0 {
		score += 15
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("positive momentum: +%.1f%%", snapshot.PriceChangePct))
	}

	result.Score = score
	result.Matched = score >= 75 && profitable
	result.Confidence = confidenceFor(result.Matched, score)

	if result.Matched {
		result.EntryPrice = snapshot.Price * turnaroundEntryMult
		result.TargetPrice = snapshot.Price * turnaroundTargetMult
		result.StopLossPrice = snapshot.Price * turnaroundStopMult
		result.RiskRewardRatio = turnaroundRiskReward
		result.MaxHoldingDays = turnaroundMaxHold
	}

	return result
}
