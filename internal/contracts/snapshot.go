package contracts

import (
	"fmt"
	"math"
	"time"
)

// InstrumentSnapshot is a point-in-time price/volume/fundamental record
// for one instrument. It is fetched fresh per scan and read-only for
// every consumer.
type InstrumentSnapshot struct {
	Code           string     `json:"code"` // exchange ticker, unique key
	Name           string     `json:"name"`
	Price          float64    `json:"price"`
	PriceChangePct float64    `json:"price_change_pct"`
	Volume         int64      `json:"volume"`
	ListingDate    time.Time  `json:"listing_date"`
	EarningsDate   *time.Time `json:"earnings_date,omitempty"`

	// Structured profit pair replacing the free-text period summary.
	// Both must be present for the turnaround strategy to consider the
	// instrument at all.
	PriorProfit   *float64 `json:"prior_profit,omitempty"`
	CurrentProfit *float64 `json:"current_profit,omitempty"`
	ProfitNote    string   `json:"profit_note,omitempty"` // display only

	PERatio   float64 `json:"pe_ratio"` // 0 when unknown
	MarketCap float64 `json:"market_cap"`
	Low52W    float64 `json:"low_52w"`
	High52W   float64 `json:"high_52w"`
	MA5       float64 `json:"ma_5d"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Validate checks that the required numeric fields are present and
// finite. A violation is reported before any evaluator runs; evaluators
// themselves are total over validated snapshots.
func (s *InstrumentSnapshot) Validate() error {
	if s.Code == "" {
		return fmt.Errorf("%w: empty instrument code", ErrValidation)
	}
	if s.Price <= 0 || !isFinite(s.Price) {
		return fmt.Errorf("%w: %s: price must be positive, got %v", ErrValidation, s.Code, s.Price)
	}
	if s.Volume < 0 {
		return fmt.Errorf("%w: %s: negative volume %d", ErrValidation, s.Code, s.Volume)
	}
	for name, v := range map[string]float64{
		"price_change_pct": s.PriceChangePct,
		"pe_ratio":         s.PERatio,
		"market_cap":       s.MarketCap,
		"low_52w":          s.Low52W,
		"high_52w":         s.High52W,
	} {
		if !isFinite(v) {
			return fmt.Errorf("%w: %s: field %s is not finite", ErrValidation, s.Code, name)
		}
	}
	return nil
}

// YearsSinceListing returns the listing age in years at the given time.
// A listing date in the future counts as zero, not as an error.
func (s *InstrumentSnapshot) YearsSinceListing(now time.Time) float64 {
	if s.ListingDate.After(now) {
		return 0
	}
	days := now.Sub(s.ListingDate).Hours() / 24
	return days / 365.25
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
