package core

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/core/market"
)

// newTestExchange creates a one-asset exchange with n bounded participants,
// each holding 1000 cash and 10 units.
func newTestExchange(t *testing.T, n int) *Exchange {
	t.Helper()
	ex, err := NewExchange(params.Exchange{
		Assets:        1,
		Participants:  n,
		StartCash:     1000,
		StartHoldings: 10,
	}, market.Params{StartPrice: 100, Beta: 1, Supply: 1000})
	require.NoError(t, err)
	return ex
}

func limit(p float64) *float64 { return &p }

func participant(t *testing.T, ex *Exchange, id int) Participant {
	t.Helper()
	p, err := ex.Participant(id)
	require.NoError(t, err)
	return p
}

func TestMatchEndToEndScenario(t *testing.T) {
	ex := newTestExchange(t, 2)
	const a, b = 1, 2

	exec, err := ex.Match(0, Sell, 10, b, limit(100))
	require.NoError(t, err)
	require.NotNil(t, exec.Resting)
	require.Equal(t, 10.0, exec.Unfilled)

	bBefore := participant(t, ex, b)
	aBefore := participant(t, ex, a)

	exec, err = ex.Match(0, Buy, 15, a, nil)
	require.NoError(t, err)
	require.InDelta(t, 5, exec.Unfilled, 1e-9)
	require.InDelta(t, 100, exec.AvgPrice, 1e-9)
	require.Nil(t, exec.Resting)
	require.Len(t, exec.Trades, 1)

	aAfter := participant(t, ex, a)
	bAfter := participant(t, ex, b)
	require.InDelta(t, 1000, bAfter.Cash-bBefore.Cash, 1e-9)
	require.InDelta(t, 10, aAfter.Holdings[0]-aBefore.Holdings[0], 1e-9)
	require.InDelta(t, -1000, aAfter.Cash-aBefore.Cash, 1e-9)
	require.NoError(t, ex.ValidateLedger())
}

func TestMatchPriceTimePriority(t *testing.T) {
	ex := newTestExchange(t, 3)

	first, err := ex.Match(0, Sell, 5, 2, limit(100))
	require.NoError(t, err)
	second, err := ex.Match(0, Sell, 5, 3, limit(100))
	require.NoError(t, err)
	require.Less(t, first.Resting.ID, second.Resting.ID)

	exec, err := ex.Match(0, Buy, 3, 1, nil)
	require.NoError(t, err)
	require.Zero(t, exec.Unfilled)
	require.Equal(t, first.Resting.ID, exec.Trades[0].MakerOrderID)

	o1, _ := ex.Order(first.Resting.ID)
	o2, _ := ex.Order(second.Resting.ID)
	require.InDelta(t, 2, o1.Remaining, 1e-9)
	require.Equal(t, 5.0, o2.Remaining)
}

func TestMatchBetterPriceFirst(t *testing.T) {
	ex := newTestExchange(t, 3)

	_, err := ex.Match(0, Sell, 2, 2, limit(101))
	require.NoError(t, err)
	_, err = ex.Match(0, Sell, 2, 3, limit(99))
	require.NoError(t, err)

	exec, err := ex.Match(0, Buy, 3, 1, nil)
	require.NoError(t, err)
	require.Len(t, exec.Trades, 2)
	require.Equal(t, 99.0, exec.Trades[0].Price)
	require.Equal(t, 101.0, exec.Trades[1].Price)
	require.InDelta(t, (2*99.0+101.0)/3, exec.AvgPrice, 1e-9)
}

func TestMatchPartialFill(t *testing.T) {
	ex := newTestExchange(t, 2)

	_, err := ex.Match(0, Sell, 4, 2, limit(100))
	require.NoError(t, err)

	exec, err := ex.Match(0, Buy, 6, 1, nil)
	require.NoError(t, err)
	require.InDelta(t, 2, exec.Unfilled, 1e-9)
	require.Equal(t, 100.0, exec.AvgPrice)
	require.InDelta(t, 4, exec.Filled, 1e-9)
	require.Empty(t, ex.BookSide(0, Sell))
}

func TestMatchNothingFilled(t *testing.T) {
	ex := newTestExchange(t, 1)

	exec, err := ex.Match(0, Buy, 5, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 5.0, exec.Unfilled)
	require.Zero(t, exec.AvgPrice)
	require.Empty(t, exec.Trades)
}

func TestMatchInsufficientInventory(t *testing.T) {
	ex := newTestExchange(t, 2)
	_, err := ex.Match(0, Buy, 5, 2, limit(90))
	require.NoError(t, err)

	before := participant(t, ex, 1)
	orders := ex.OrderCount()

	_, err = ex.Match(0, Sell, 11, 1, nil)
	require.ErrorIs(t, err, ErrInsufficientInventory)
	require.Equal(t, before, participant(t, ex, 1))
	require.Equal(t, orders, ex.OrderCount())
	require.Len(t, ex.BookSide(0, Buy), 1)
}

func TestMatchRejectsBadInput(t *testing.T) {
	ex := newTestExchange(t, 1)

	tests := []struct {
		name  string
		asset int
		qty   float64
		who   int
		limit *float64
		want  error
	}{
		{name: "zero quantity", qty: 0, who: 1, want: ErrNonPositiveQuantity},
		{name: "negative quantity", qty: -1, who: 1, want: ErrNonPositiveQuantity},
		{name: "NaN quantity", qty: math.NaN(), who: 1, want: ErrNonPositiveQuantity},
		{name: "unknown asset", asset: 3, qty: 1, who: 1, want: ErrUnknownAsset},
		{name: "unknown participant", qty: 1, who: 9, want: ErrUnknownParticipant},
		{name: "zero limit", qty: 1, who: 1, limit: limit(0), want: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ex.Match(tt.asset, Buy, tt.qty, tt.who, tt.limit)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLimitBuyClippedToCash(t *testing.T) {
	ex := newTestExchange(t, 1)

	exec, err := ex.Match(0, Buy, 20, 1, limit(100))
	require.NoError(t, err)
	require.InDelta(t, 10, exec.Unfilled, 1e-9)
	require.NotNil(t, exec.Resting)
	require.InDelta(t, 10, exec.Resting.Remaining, 1e-9)

	p := participant(t, ex, 1)
	require.InDelta(t, 0, p.Cash, 1e-9)
	require.InDelta(t, 1000, p.LockedCash, 1e-9)
}

func TestLimitStopsAtNonMarketablePrice(t *testing.T) {
	ex := newTestExchange(t, 2)
	_, err := ex.Match(0, Sell, 5, 2, limit(105))
	require.NoError(t, err)

	exec, err := ex.Match(0, Buy, 5, 1, limit(100))
	require.NoError(t, err)
	require.Empty(t, exec.Trades)
	require.NotNil(t, exec.Resting)

	levels := ex.Levels(0, Buy, 0)
	require.Equal(t, []PriceLevel{{Price: 100, Qty: 5}}, levels)

	// a marketable limit at exactly the resting price trades
	exec, err = ex.Match(0, Sell, 1, 2, limit(100))
	require.NoError(t, err)
	require.Len(t, exec.Trades, 1)
}

func TestCancelIsIdempotent(t *testing.T) {
	ex := newTestExchange(t, 1)

	exec, err := ex.Match(0, Buy, 5, 1, limit(90))
	require.NoError(t, err)
	p := participant(t, ex, 1)
	require.InDelta(t, 550, p.Cash, 1e-9)
	require.InDelta(t, 450, p.LockedCash, 1e-9)

	require.NoError(t, ex.Cancel(exec.Resting.ID))
	once := participant(t, ex, 1)
	require.NoError(t, ex.Cancel(exec.Resting.ID))
	twice := participant(t, ex, 1)

	require.Equal(t, once, twice)
	require.InDelta(t, 1000, twice.Cash, 1e-9)
	require.Zero(t, twice.LockedCash)
	require.Empty(t, ex.BookSide(0, Buy))

	o, ok := ex.Order(exec.Resting.ID)
	require.True(t, ok)
	require.Zero(t, o.Remaining)
}

func TestCancelRestingSellReleasesInventory(t *testing.T) {
	ex := newTestExchange(t, 1)

	exec, err := ex.Match(0, Sell, 4, 1, limit(110))
	require.NoError(t, err)
	p := participant(t, ex, 1)
	require.InDelta(t, 6, p.Holdings[0], 1e-9)
	require.InDelta(t, 4, p.LockedHoldings[0], 1e-9)

	require.NoError(t, ex.Cancel(exec.Resting.ID))
	p = participant(t, ex, 1)
	require.InDelta(t, 10, p.Holdings[0], 1e-9)
	require.Zero(t, p.LockedHoldings[0])

	require.ErrorIs(t, ex.Cancel(999), ErrUnknownOrder)
}

func TestBookSideOrdering(t *testing.T) {
	ex := newTestExchange(t, 3)

	for _, q := range []struct {
		who   int
		side  Side
		price float64
	}{
		{1, Buy, 95}, {2, Buy, 97}, {3, Buy, 95},
		{1, Sell, 104}, {2, Sell, 102}, {3, Sell, 104},
	} {
		_, err := ex.Match(0, q.side, 1, q.who, limit(q.price))
		require.NoError(t, err)
	}

	bids := ex.BookSide(0, Buy)
	require.Len(t, bids, 3)
	require.Equal(t, 97.0, bids[0].Price)
	require.Equal(t, 95.0, bids[1].Price)
	require.Less(t, bids[1].ID, bids[2].ID)

	asks := ex.BookSide(0, Sell)
	require.Len(t, asks, 3)
	require.Equal(t, 102.0, asks[0].Price)
	require.Equal(t, 104.0, asks[1].Price)
	require.Less(t, asks[1].ID, asks[2].ID)

	require.Equal(t, []PriceLevel{{Price: 102, Qty: 1}, {Price: 104, Qty: 2}}, ex.Levels(0, Sell, 0))
	require.Equal(t, []PriceLevel{{Price: 97, Qty: 1}}, ex.Levels(0, Buy, 1))
}

func TestQuoteAndPullQuotes(t *testing.T) {
	ex := newTestExchange(t, 1)

	_, err := ex.Quote(0, Sell, 5, 100, 1)
	require.ErrorIs(t, err, ErrNotUnbounded)

	_, err = ex.Quote(0, Sell, 5, 100, OracleID)
	require.NoError(t, err)
	_, err = ex.Quote(0, Buy, 5, 99, OracleID)
	require.NoError(t, err)

	exec, err := ex.Match(0, Buy, 2, 1, nil)
	require.NoError(t, err)
	require.InDelta(t, 2, exec.Filled, 1e-9)

	oracle := participant(t, ex, OracleID)
	require.True(t, math.IsInf(oracle.Cash, 1))
	require.True(t, math.IsInf(oracle.Holdings[0], 1))

	n, err := ex.PullQuotes(OracleID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Empty(t, ex.BookSide(0, Buy))
	require.Empty(t, ex.BookSide(0, Sell))

	n, err = ex.PullQuotes(OracleID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAddAssetAndParticipant(t *testing.T) {
	ex := newTestExchange(t, 1)

	id := ex.AddParticipant()
	require.Equal(t, 2, id)

	asset, err := ex.AddAsset()
	require.NoError(t, err)
	require.Equal(t, 1, asset)
	require.Equal(t, 2, ex.Assets())

	for who := 1; who <= 2; who++ {
		p := participant(t, ex, who)
		require.Equal(t, []float64{10, 10}, p.Holdings)
	}
	oracle := participant(t, ex, OracleID)
	require.True(t, math.IsInf(oracle.Holdings[1], 1))

	sym, err := ex.Markets().Lookup("ASSET-1")
	require.NoError(t, err)
	require.Equal(t, 1, sym)
}

// TestConservationAndNonNegativity drives random orders between bounded
// participants and checks that cash and inventory only move between them.
func TestConservationAndNonNegativity(t *testing.T) {
	ex := newTestExchange(t, 4)
	rng := rand.New(rand.NewPCG(7, 11))

	totals := func() (cash, holdings float64) {
		for id := 1; id < ex.Participants(); id++ {
			p := participant(t, ex, id)
			cash += p.TotalCash()
			holdings += p.TotalHolding(0)
		}
		return
	}
	cash0, hold0 := totals()

	for i := 0; i < 500; i++ {
		who := 1 + rng.IntN(4)
		side := Side(rng.IntN(2))
		qty := 0.5 + rng.Float64()*4
		var lim *float64
		if rng.IntN(3) > 0 {
			lim = limit(95 + float64(rng.IntN(10)))
		}

		before := make([]Participant, ex.Participants())
		for id := range before {
			before[id] = participant(t, ex, id)
		}

		exec, err := ex.Match(0, side, qty, who, lim)
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientInventory)
			for id := range before {
				require.Equal(t, before[id], participant(t, ex, id))
			}
			continue
		}
		for _, tr := range exec.Trades {
			require.Greater(t, tr.Qty, 0.0)
		}
		if rng.IntN(5) == 0 && exec.Resting != nil {
			require.NoError(t, ex.Cancel(exec.Resting.ID))
		}

		require.NoError(t, ex.ValidateLedger())
		cash, hold := totals()
		require.InDelta(t, cash0, cash, 1e-6)
		require.InDelta(t, hold0, hold, 1e-6)
	}
}
