package strategy

import (
	"fmt"
	"time"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Strategy A thresholds and trade parameters.
const (
	maxListingYears   = 5.0
	earlyListingYears = 2.5
	stopHighChangePct = 15.0

	stopHighEntryMult  = 1.05
	stopHighTargetMult = 1.24
	stopHighStopMult   = 0.90
	stopHighRiskReward = 2.4
	stopHighMaxHold    = 30
)

// StopHighConfig holds the tunable knobs of strategy A.
type StopHighConfig struct {
	// VolumeSurgeThreshold is the absolute volume above which the
	// volume-surge bonus applies.
	VolumeSurgeThreshold int64
}

// DefaultStopHighConfig returns the production defaults.
func DefaultStopHighConfig() StopHighConfig {
	return StopHighConfig{
		VolumeSurgeThreshold: 100000,
	}
}

// StopHigh is strategy A: a precision detector for recently listed
// instruments hitting a stop-high move on surging volume.
type StopHigh struct {
	config StopHighConfig
	now    func() time.Time
}

// NewStopHigh creates strategy A with the given config.
func NewStopHigh(config StopHighConfig) *StopHigh {
	if config.VolumeSurgeThreshold <= 0 {
		config.VolumeSurgeThreshold = DefaultStopHighConfig().VolumeSurgeThreshold
	}
	return &StopHigh{
		config: config,
		now:    time.Now,
	}
}

// WithClock overrides the clock. Tests pin listing-age computations.
func (s *StopHigh) WithClock(now func() time.Time) *StopHigh {
	s.now = now
	return s
}

// ID implements contracts.Evaluator.
func (s *StopHigh) ID() contracts.StrategyID {
	return contracts.StrategyA
}

// Evaluate scores one snapshot. The returned score is raw and may
// exceed 100; display clamping is the caller's concern.
func (s *StopHigh) Evaluate(snapshot *contracts.InstrumentSnapshot) contracts.StrategyResult {
	result := contracts.StrategyResult{
		StrategyID: contracts.StrategyA,
		Reasons:    make([]string, 0, 6),
	}

	years := snapshot.YearsSinceListing(s.now())
	if years > maxListingYears {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("listed %.1f years ago, beyond the %.0f-year window", years, maxListingYears))
		result.Confidence = contracts.ConfidenceLow
		return result
	}

	score := 50
	result.Reasons = append(result.Reasons, "base score 50")

	if years <= earlyListingYears {
		score += 10
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("early listing bonus: %.1f years since listing", years))
	}

	isStopHigh := snapshot.PriceChangePct >= stopHighChangePct
	if isStopHigh {
		score += 40
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("stop-high move: +%.1f%%", snapshot.PriceChangePct))
	}

	if snapshot.Volume > s.config.VolumeSurgeThreshold {
		score += 30
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("volume surge: %d > %d", snapshot.Volume, s.config.VolumeSurgeThreshold))
	}

	if snapshot.PriceChangePct > 5.0 {
		score += 20
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("strong rise: +%.1f%%", snapshot.PriceChangePct))
	}

	// PE of 0 means unknown, the bonus is simply skipped.
	if snapshot.PERatio > 0 && snapshot.PERatio < 20 {
		score += 10
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("reasonable valuation: PER %.1f", snapshot.PERatio))
	}

	result.Score = score
	result.Matched = score >= 70 && isStopHigh
	result.Confidence = confidenceFor(result.Matched, score)

	if result.Matched {
		result.EntryPrice = snapshot.Price * stopHighEntryMult
		result.TargetPrice = snapshot.Price * stopHighTargetMult
		result.StopLossPrice = snapshot.Price * stopHighStopMult
		result.RiskRewardRatio = stopHighRiskReward
		result.MaxHoldingDays = stopHighMaxHold
	}

	return result
}
