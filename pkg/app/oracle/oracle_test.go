package oracle

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/core"
	"github.com/uhyunpark/algosim/pkg/app/core/market"
)

func testConfig() params.Oracle {
	cfg := params.Default().Oracle
	cfg.Breadth = 20
	cfg.Supply = 10000
	cfg.Depth = 0.1 // 1000 draws per tick
	return cfg
}

func newTestOracle(t *testing.T, cfg params.Oracle, seed uint64) (*core.Exchange, *Oracle) {
	t.Helper()
	ex, err := core.NewExchange(params.Exchange{
		Assets:        1,
		Participants:  1,
		StartCash:     1e6,
		StartHoldings: 100,
	}, market.Params{StartPrice: cfg.StartPrice, Beta: cfg.Beta, Supply: cfg.Supply})
	require.NoError(t, err)
	o, err := New(ex, cfg, rand.NewPCG(seed, seed+1), nil)
	require.NoError(t, err)
	return ex, o
}

func TestTickRates(t *testing.T) {
	rfr, vol := TickRates(0.03, 0.16, 75)
	require.InDelta(t, math.Pow(1.03, 1.0/(252*75))-1, rfr, 1e-15)
	require.InDelta(t, 0.16/math.Sqrt(252*75), vol, 1e-15)
}

func TestTickBuildsSymmetricLadder(t *testing.T) {
	cfg := testConfig()
	ex, o := newTestOracle(t, cfg, 1)

	require.NoError(t, o.Tick())
	price := o.Price(0)

	asks := ex.Levels(0, core.Sell, 0)
	bids := ex.Levels(0, core.Buy, 0)
	require.NotEmpty(t, asks)
	require.Len(t, bids, len(asks))

	edge := 0.2 * cfg.Beta * cfg.Volatility * price
	for i := range asks {
		require.Greater(t, asks[i].Price, price)
		require.Less(t, bids[i].Price, price)
		require.LessOrEqual(t, asks[i].Price, price+edge+1e-9)
		require.GreaterOrEqual(t, bids[i].Price, price-edge-1e-9)
		// mirrored sizes and distances
		require.Equal(t, asks[i].Qty, bids[i].Qty)
		require.InDelta(t, asks[i].Price-price, price-bids[i].Price, 1e-9)
	}
	for i := 1; i < len(asks); i++ {
		require.Greater(t, asks[i].Price, asks[i-1].Price)
		require.Less(t, bids[i].Price, bids[i-1].Price)
	}

	vwap, ok := ex.LiveVWAP(0)
	require.True(t, ok)
	require.InDelta(t, price, vwap, 1e-6)
}

func TestTickReplacesPreviousQuotes(t *testing.T) {
	ex, o := newTestOracle(t, testConfig(), 2)

	require.NoError(t, o.Tick())
	first := ex.OpenOrders(core.OracleID)
	require.NotEmpty(t, first)

	require.NoError(t, o.Tick())
	for _, old := range first {
		got, ok := ex.Order(old.ID)
		require.True(t, ok)
		require.Zero(t, got.Remaining)
	}
	for _, live := range ex.OpenOrders(core.OracleID) {
		require.Greater(t, live.ID, first[len(first)-1].ID)
	}
	require.Equal(t, 2, o.Ticks())
}

func TestEmptyBookKeepsPrice(t *testing.T) {
	cfg := testConfig()
	cfg.Volatility = 0
	cfg.RiskFreeRate = 0
	ex, o := newTestOracle(t, cfg, 3)

	_, ok := ex.LiveVWAP(0)
	require.False(t, ok)
	require.NoError(t, o.Tick())
	require.Equal(t, cfg.StartPrice, o.Price(0))
}

func TestAnchorIsContrarian(t *testing.T) {
	_, o := newTestOracle(t, testConfig(), 4)

	require.InDelta(t, 100, o.anchor(100, 100), 1e-12)
	// observed above prev pushes the anchor below prev, and the other way round
	require.InDelta(t, 95, o.anchor(100, 101), 1e-12)
	require.InDelta(t, 105, o.anchor(100, 99), 1e-12)
}

func TestAnchorClampedToFloor(t *testing.T) {
	cfg := testConfig()
	cfg.Volatility = 0
	cfg.RiskFreeRate = 0
	_, o := newTestOracle(t, cfg, 5)

	// (1+5)*100 - 5*200 = -400
	next := o.nextPrice(0, 200)
	require.Equal(t, cfg.PriceFloor, next)
}

func TestBuyingOutAsksRaisesObservedAnchor(t *testing.T) {
	cfg := testConfig()
	ex, o := newTestOracle(t, cfg, 6)
	require.NoError(t, o.Tick())
	price := o.Price(0)

	// take the whole inside ask level
	best := ex.BookSide(0, core.Sell)[0]
	_, err := ex.Match(0, core.Buy, best.Remaining, 1, nil)
	require.NoError(t, err)

	vwap, ok := ex.LiveVWAP(0)
	require.True(t, ok)
	require.Less(t, vwap, price)
	require.Greater(t, o.anchor(price, vwap), price)
}

func TestSameSeedSamePath(t *testing.T) {
	_, a := newTestOracle(t, testConfig(), 42)
	_, b := newTestOracle(t, testConfig(), 42)

	for i := 0; i < 20; i++ {
		require.NoError(t, a.Tick())
		require.NoError(t, b.Tick())
		require.Equal(t, a.Price(0), b.Price(0))
	}
}

func TestAddAssetStartsPricing(t *testing.T) {
	cfg := testConfig()
	ex, o := newTestOracle(t, cfg, 7)

	id, err := o.AddAsset()
	require.NoError(t, err)
	require.Equal(t, 1, id)
	require.Equal(t, cfg.StartPrice, o.Price(1))

	// assets added straight on the exchange are picked up too
	id, err = ex.AddAsset()
	require.NoError(t, err)
	require.NoError(t, o.Tick())
	require.Len(t, o.Prices(), 3)
	require.NotEmpty(t, ex.Levels(id, core.Sell, 0))
}

func TestLadderSizes(t *testing.T) {
	sizes := LadderSizes(10, 5000, 12, rand.NewPCG(1, 2))
	require.Len(t, sizes, 10)

	var total float64
	for _, s := range sizes {
		require.GreaterOrEqual(t, s, 0.0)
		total += s
	}
	require.LessOrEqual(t, total, 5000.0)
	// Poisson(12) puts far more mass at 9 than at 0
	require.Greater(t, sizes[9], sizes[0])

	require.Equal(t, make([]float64, 4), LadderSizes(4, 0, 12, rand.NewPCG(1, 2)))
}
