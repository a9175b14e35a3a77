package algo

import (
	"math"

	"github.com/uhyunpark/algosim/pkg/app/core"
)

// Slice is one scheduled child order of an execution.
type Slice struct {
	Tick      int     `json:"tick"`
	Requested float64 `json:"requested"`
	Filled    float64 `json:"filled"`
	AvgPrice  float64 `json:"avgPrice"`
}

// Report summarises an execution. Percentages are in percent, not fractions.
type Report struct {
	Algorithm string    `json:"algorithm"`
	Asset     int       `json:"asset"`
	Side      core.Side `json:"side"`
	Ticks     int       `json:"ticks"`
	Requested float64   `json:"requested"`
	Filled    float64   `json:"filled"`

	StartPrice float64 `json:"startPrice"`
	EndPrice   float64 `json:"endPrice"`

	// SlippagePct is sum(|fill - start| * qty) over filled notional at the start price.
	SlippagePct float64 `json:"slippagePct"`
	// MarketImpactPct is the reference price move over the run, positive when
	// it moved against the order.
	MarketImpactPct float64 `json:"marketImpactPct"`
	CompletionPct   float64 `json:"completionPct"`

	Aborted  bool   `json:"aborted"`
	AbortErr string `json:"abortErr,omitempty"`
	Err      error  `json:"-"`

	Slices []Slice `json:"slices"`

	slippage float64
}

func (r *Report) abort(err error) {
	r.Aborted = true
	r.Err = err
	r.AbortErr = err.Error()
}

func (r *Report) record(s Slice) {
	r.Slices = append(r.Slices, s)
	if s.Filled <= 0 {
		return
	}
	r.Filled += s.Filled
	r.slippage += math.Abs(s.AvgPrice-r.StartPrice) * s.Filled
}

func (r *Report) finish(endPrice float64) {
	r.EndPrice = endPrice
	if r.Filled > 0 && r.StartPrice > 0 {
		r.SlippagePct = 100 * r.slippage / (r.Filled * r.StartPrice)
	}
	if r.StartPrice > 0 {
		m := 100 * (r.EndPrice/r.StartPrice - 1)
		if r.Side == core.Sell {
			m = -m
		}
		r.MarketImpactPct = m
	}
	if r.Requested > 0 {
		r.CompletionPct = 100 * r.Filled / r.Requested
	}
}
