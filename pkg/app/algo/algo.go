// Package algo runs scheduled parent orders against the simulated market as a
// sequence of market-order slices, one per oracle tick, and reports how the
// execution went.
package algo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/core"
	"github.com/uhyunpark/algosim/pkg/app/oracle"
)

const (
	TWAP = "twap"
	VWAP = "vwap"
)

// sliceNoise is the standard deviation of the multiplicative size noise
// applied to randomised slices.
const sliceNoise = 0.1

// Market is what an execution trades against: a matching engine plus the
// clock that advances the reference price.
type Market interface {
	Match(asset int, side core.Side, qty float64, participant int, limit *float64) (core.Execution, error)
	Tick() error
	Price(asset int) float64
}

// Direct is a Market over an exchange and its oracle with no locking.
type Direct struct {
	Exchange *core.Exchange
	Oracle   *oracle.Oracle
}

func (d Direct) Match(asset int, side core.Side, qty float64, participant int, limit *float64) (core.Execution, error) {
	return d.Exchange.Match(asset, side, qty, participant, limit)
}

func (d Direct) Tick() error             { return d.Oracle.Tick() }
func (d Direct) Price(asset int) float64 { return d.Oracle.Price(asset) }

// Order is a parent order to be worked over Ticks oracle ticks.
type Order struct {
	Asset       int
	Side        core.Side
	Quantity    float64
	Participant int
	Ticks       int
	// Randomize perturbs each slice and pulls it back toward the schedule.
	Randomize bool
	// Lag is the number of oracle ticks to run before the first slice.
	Lag int
}

// VWAPOrder is an Order scheduled along an intraday volume profile.
type VWAPOrder struct {
	Order
	// StartIndex is the tick of the trading day the order starts at, before lag.
	StartIndex  int
	Profile     []params.ProfileSegment
	TicksPerDay int
}

// Runner executes parent orders.
type Runner struct {
	market Market
	src    rand.Source
	log    *zap.SugaredLogger
}

// NewRunner creates a runner trading on m. src drives slice randomisation and
// may be nil; logger may be nil.
func NewRunner(m Market, src rand.Source, logger *zap.SugaredLogger) *Runner {
	if src == nil {
		src = rand.NewPCG(1, 2)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{market: m, src: src, log: logger}
}

// TWAP works the order in equal slices, one per tick.
func (r *Runner) TWAP(ctx context.Context, o Order) Report {
	return r.execute(ctx, TWAP, o, o.Lag, func() []float64 {
		return TWAPWeights(o.Ticks)
	})
}

// VWAP works the order in slices proportional to the volume profile, starting
// at StartIndex+Lag within the trading day.
func (r *Runner) VWAP(ctx context.Context, o VWAPOrder) Report {
	return r.execute(ctx, VWAP, o.Order, o.Lag, func() []float64 {
		profile := o.Profile
		if len(profile) == 0 {
			profile = params.DefaultVolumeProfile()
		}
		tpd := o.TicksPerDay
		if tpd <= 0 {
			tpd = o.Ticks
		}
		return HorizonWeights(DailyWeights(profile, tpd), o.StartIndex+o.Lag, o.Ticks)
	})
}

func (r *Runner) execute(ctx context.Context, name string, o Order, lag int, schedule func() []float64) (rep Report) {
	rep = Report{
		Algorithm: name,
		Asset:     o.Asset,
		Side:      o.Side,
		Ticks:     o.Ticks,
		Requested: o.Quantity,
	}
	if o.Ticks <= 0 {
		return rep
	}
	if !(o.Quantity > 0) {
		rep.abort(fmt.Errorf("%w: %v", core.ErrNonPositiveQuantity, o.Quantity))
		return rep
	}

	rep.StartPrice = r.market.Price(o.Asset)
	defer func() { rep.finish(r.market.Price(o.Asset)) }()

	for i := 0; i < lag; i++ {
		if err := r.tick(ctx); err != nil {
			r.stop(&rep, -1, err)
			return rep
		}
	}

	noise := distuv.Normal{Mu: 0, Sigma: sliceNoise, Src: r.src}
	var target float64 // scheduled quantity through the previous tick
	for i, w := range schedule() {
		if err := ctx.Err(); err != nil {
			r.stop(&rep, i, err)
			return rep
		}

		base := w * o.Quantity
		size := base
		if o.Randomize {
			size = (target - rep.Filled) + (1+noise.Rand())*base
			size = math.Max(0, math.Min(size, o.Quantity-rep.Filled))
		}
		target += base

		s := Slice{Tick: i, Requested: size}
		if size > 0 {
			exec, err := r.market.Match(o.Asset, o.Side, size, o.Participant, nil)
			if err != nil {
				r.stop(&rep, i, err)
				return rep
			}
			s.Filled, s.AvgPrice = exec.Filled, exec.AvgPrice
		}
		rep.record(s)
		r.log.Debugw("algo_slice",
			"algo", name,
			"tick", i,
			"requested", s.Requested,
			"filled", s.Filled,
			"avg_price", s.AvgPrice)

		if err := r.tick(ctx); err != nil {
			r.stop(&rep, i, err)
			return rep
		}
	}
	return rep
}

func (r *Runner) tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.market.Tick()
}

func (r *Runner) stop(rep *Report, tick int, err error) {
	rep.abort(err)
	r.log.Warnw("algo_aborted",
		"algo", rep.Algorithm,
		"asset", rep.Asset,
		"side", rep.Side.String(),
		"tick", tick,
		"filled", rep.Filled,
		"err", err)
}
