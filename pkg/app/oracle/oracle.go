// Package oracle is the synthetic liquidity provider. Each tick it re-prices
// every asset from the book it quoted last tick and re-quotes a full ladder.
package oracle

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/core"
)

// tradingDays is the number of trading days per year used to de-annualise.
const tradingDays = 252

// Oracle drives the reference price of every asset and supplies all
// background liquidity. It trades as core.OracleID, which has unbounded
// cash and inventory.
type Oracle struct {
	ex  *core.Exchange
	cfg params.Oracle
	src rand.Source
	log *zap.SugaredLogger

	tickRfr float64 // per-tick drift
	tickVol float64 // per-tick volatility before beta

	prices []float64
	betas  []float64
	supply []float64

	ticks int
}

// TickRates converts annual rate and volatility into per-tick values for a
// session of ticksPerDay ticks, compounding the rate.
func TickRates(rfr, vol float64, ticksPerDay int) (tickRfr, tickVol float64) {
	periods := float64(tradingDays * ticksPerDay)
	tickRfr = math.Exp(math.Log(1+rfr)/periods) - 1
	tickVol = vol / math.Sqrt(periods)
	return tickRfr, tickVol
}

// New creates an oracle over ex. src seeds every draw, so equal seeds give
// equal price paths. logger may be nil.
func New(ex *core.Exchange, cfg params.Oracle, src rand.Source, logger *zap.SugaredLogger) (*Oracle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle config: %w", err)
	}
	if src == nil {
		src = rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	o := &Oracle{
		ex:  ex,
		cfg: cfg,
		src: src,
		log: logger,
	}
	o.tickRfr, o.tickVol = TickRates(cfg.RiskFreeRate, cfg.Volatility, cfg.TicksPerDay)
	o.syncAssets()
	return o, nil
}

// syncAssets picks up assets added to the exchange since the last call.
func (o *Oracle) syncAssets() {
	for a := len(o.prices); a < o.ex.Assets(); a++ {
		p, err := o.ex.Markets().Get(a)
		if err != nil {
			p.StartPrice, p.Beta, p.Supply = o.cfg.StartPrice, o.cfg.Beta, o.cfg.Supply
		}
		o.prices = append(o.prices, p.StartPrice)
		o.betas = append(o.betas, p.Beta)
		o.supply = append(o.supply, p.Supply)
	}
}

// AddAsset adds an asset to the exchange and starts pricing it.
func (o *Oracle) AddAsset() (int, error) {
	id, err := o.ex.AddAsset()
	if err != nil {
		return 0, err
	}
	o.syncAssets()
	return id, nil
}

// Price returns the current reference price of asset, 0 if unknown.
func (o *Oracle) Price(asset int) float64 {
	o.syncAssets()
	if asset < 0 || asset >= len(o.prices) {
		return 0
	}
	return o.prices[asset]
}

// Prices returns a copy of every reference price.
func (o *Oracle) Prices() []float64 {
	o.syncAssets()
	return append([]float64(nil), o.prices...)
}

// SetBeta changes the volatility multiplier of asset.
func (o *Oracle) SetBeta(asset int, beta float64) error {
	o.syncAssets()
	if asset < 0 || asset >= len(o.betas) {
		return fmt.Errorf("%w: %d", core.ErrUnknownAsset, asset)
	}
	if beta < 0 {
		return fmt.Errorf("beta cannot be negative: %v", beta)
	}
	o.betas[asset] = beta
	return nil
}

// Ticks returns how many ticks have run.
func (o *Oracle) Ticks() int { return o.ticks }

// Config returns the oracle parameters.
func (o *Oracle) Config() params.Oracle { return o.cfg }

// Tick advances the market one step for every asset:
//  1. observe the volume-weighted price of what rests in each book,
//  2. pull every oracle quote,
//  3. move each reference price,
//  4. quote a fresh ladder around it.
func (o *Oracle) Tick() error {
	o.syncAssets()

	observed := make([]float64, len(o.prices))
	for a := range o.prices {
		vwap, ok := o.ex.LiveVWAP(a)
		if !ok {
			// nothing to observe: the price does not move from observation
			vwap = o.prices[a]
		}
		observed[a] = vwap
	}

	if _, err := o.ex.PullQuotes(core.OracleID); err != nil {
		return fmt.Errorf("pull quotes: %w", err)
	}

	for a := range o.prices {
		o.prices[a] = o.nextPrice(a, observed[a])
	}

	for a := range o.prices {
		if err := o.quoteLadder(a); err != nil {
			return fmt.Errorf("quote asset %d: %w", a, err)
		}
	}

	o.ticks++
	return nil
}

// anchor blends the previous price with the observed book price. The blend
// is contrarian: an observed average above prev pulls the anchor below prev.
func (o *Oracle) anchor(prev, observed float64) float64 {
	return (1+o.cfg.Alpha)*prev - o.cfg.Alpha*observed
}

func (o *Oracle) nextPrice(asset int, observed float64) float64 {
	prev := o.prices[asset]
	anchor := o.anchor(prev, observed)
	if anchor < o.cfg.PriceFloor {
		o.log.Warnw("oracle_anchor_clamped",
			"asset", asset,
			"prev", prev,
			"observed", observed,
			"anchor", anchor,
			"floor", o.cfg.PriceFloor)
		anchor = o.cfg.PriceFloor
	}

	walk := distuv.Normal{
		Mu:    o.tickRfr,
		Sigma: o.tickVol * o.betas[asset],
		Src:   o.src,
	}

	next := anchor * (1 + walk.Rand())
	if next < o.cfg.PriceFloor {
		next = o.cfg.PriceFloor
	}
	return next
}

// LadderSizes draws the per-level size profile shared by both sides:
// samples Poisson(lambda) draws, level i receives the number of draws equal to i.
// Draws at or beyond levels fall off the ladder.
func LadderSizes(levels, samples int, lambda float64, src rand.Source) []float64 {
	sizes := make([]float64, levels)
	if levels <= 0 || samples <= 0 {
		return sizes
	}
	pois := distuv.Poisson{Lambda: lambda, Src: src}
	for i := 0; i < samples; i++ {
		k := int(pois.Rand())
		if k < levels {
			sizes[k]++
		}
	}
	return sizes
}

// quoteLadder rests breadth/2 levels per side within ±0.2*beta*vol of the
// reference price, innermost level one step from the price, outermost at the
// edge. Sizes are mirrored so the book's expected mid stays at the price.
func (o *Oracle) quoteLadder(asset int) error {
	levels := o.cfg.Breadth / 2
	price := o.prices[asset]
	spread := 0.2 * o.betas[asset] * o.cfg.Volatility
	step := price * spread / float64(levels)

	lambda := float64(o.cfg.Breadth / 8)
	if lambda < 1 {
		lambda = 1
	}
	samples := int(o.cfg.Depth * o.supply[asset])
	sizes := LadderSizes(levels, samples, lambda, o.src)

	for i, qty := range sizes {
		if qty <= 0 {
			continue
		}
		if _, err := o.ex.Quote(asset, core.Sell, qty, price+float64(i+1)*step, core.OracleID); err != nil {
			return err
		}
	}
	for i, qty := range sizes {
		bid := price - float64(i+1)*step
		if qty <= 0 || bid <= 0 {
			continue
		}
		if _, err := o.ex.Quote(asset, core.Buy, qty, bid, core.OracleID); err != nil {
			return err
		}
	}
	return nil
}
