package contracts

// StrategyID identifies one of the two pattern detectors.
type StrategyID string

const (
	StrategyA StrategyID = "A" // stop-high / early-listing detector
	StrategyB StrategyID = "B" // profit-turnaround / MA-breakout detector
)

// Confidence buckets a strategy score for display.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// DualMatchBonus is added to the combined score when both strategies
// match the same instrument.
const DualMatchBonus = 20

// StrategyResult is the outcome of one strategy over one snapshot.
// Score carries the raw, unclamped value; combination always works on
// raw scores and clamping happens only at the display boundary.
type StrategyResult struct {
	StrategyID StrategyID `json:"strategy_id"`
	Matched    bool       `json:"matched"`
	Score      int        `json:"score"`
	Confidence Confidence `json:"confidence"`

	// Trade parameters, populated only on a match.
	EntryPrice      float64 `json:"entry_price,omitempty"`
	TargetPrice     float64 `json:"target_price,omitempty"`
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`
	RiskRewardRatio float64 `json:"risk_reward_ratio,omitempty"`
	MaxHoldingDays  int     `json:"max_holding_days,omitempty"`

	// Reasons is the ordered trail of score contributions.
	Reasons []string `json:"reasons"`
}

// DisplayScore clamps the raw score into [0,100] for presentation.
func (r *StrategyResult) DisplayScore() int {
	if r.Score > 100 {
		return 100
	}
	if r.Score < 0 {
		return 0
	}
	return r.Score
}

// CombinedResult merges the per-strategy results for one instrument.
// Only matched strategies appear in StrategyResults. Created during one
// combine pass and never mutated afterward.
type CombinedResult struct {
	Code            string                        `json:"code"`
	Name            string                        `json:"name"`
	StrategyResults map[StrategyID]StrategyResult `json:"strategy_results"`
	TotalScore      int                           `json:"total_score"`
	Rank            int                           `json:"rank"`
}

// Matched reports whether the named strategy matched this instrument.
func (c *CombinedResult) Matched(id StrategyID) bool {
	_, ok := c.StrategyResults[id]
	return ok
}

// DualMatch reports whether both strategies matched.
func (c *CombinedResult) DualMatch() bool {
	return c.Matched(StrategyA) && c.Matched(StrategyB)
}
