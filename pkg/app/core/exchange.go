package core

import (
	"fmt"
	"math"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/core/account"
	"github.com/uhyunpark/algosim/pkg/app/core/market"
	"github.com/uhyunpark/algosim/pkg/app/core/orderbook"
)

// Exchange is the owned exchange state: participants, assets and every order
// ever rested. Match, Cancel, Quote and PullQuotes are its only mutators and
// each is applied whole before returning.
//
// Exchange is not safe for concurrent use. Callers that share it across
// goroutines serialise access themselves (see sim.Simulator).
type Exchange struct {
	cfg      params.Exchange
	defaults market.Params
	ledger   *account.Ledger
	book     *orderbook.OrderBook
	markets  *market.MarketRegistry

	// OnTrade is called once per fill after the whole match has been applied.
	OnTrade func(Trade)
}

// NewExchange creates an exchange with the oracle as participant 0 followed by
// cfg.Assets assets and cfg.Participants bounded participants.
// defaults is the template for every asset's market params; its symbol is
// replaced by market.SymbolFor(id).
func NewExchange(cfg params.Exchange, defaults market.Params) (*Exchange, error) {
	defaults.Symbol = market.SymbolFor(0)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid asset defaults: %w", err)
	}
	if cfg.StartCash < 0 || cfg.StartHoldings < 0 {
		return nil, fmt.Errorf("starting cash and holdings cannot be negative")
	}

	ex := &Exchange{
		cfg:      cfg,
		defaults: defaults,
		ledger:   account.NewLedger(0),
		book:     orderbook.NewOrderBook(),
		markets:  market.NewMarketRegistry(),
	}
	for i := 0; i < cfg.Assets; i++ {
		if _, err := ex.AddAsset(); err != nil {
			return nil, err
		}
	}
	for i := 0; i < cfg.Participants; i++ {
		ex.AddParticipant()
	}
	return ex, nil
}

// AddAsset appends a new asset with no liquidity. Every participant gets the
// default starting holding of it. Existing ids are untouched.
func (ex *Exchange) AddAsset() (int, error) {
	id := ex.ledger.Assets()
	p := ex.defaults
	p.Symbol = market.SymbolFor(id)
	if _, err := ex.markets.Register(p); err != nil {
		return 0, err
	}
	return ex.ledger.AddAsset(ex.cfg.StartHoldings), nil
}

// AddParticipant appends a participant with the default cash and holdings.
func (ex *Exchange) AddParticipant() int {
	return ex.ledger.AddParticipant(ex.cfg.StartCash, ex.cfg.StartHoldings)
}

// Assets returns the number of assets.
func (ex *Exchange) Assets() int { return ex.ledger.Assets() }

// Participants returns the number of participants including the oracle.
func (ex *Exchange) Participants() int { return ex.ledger.Len() }

// Markets exposes the asset registry.
func (ex *Exchange) Markets() *market.MarketRegistry { return ex.markets }

// Participant returns a copy of participant id's ledger entry.
func (ex *Exchange) Participant(id int) (Participant, error) {
	p, err := ex.ledger.Snapshot(id)
	if err != nil {
		return Participant{}, fmt.Errorf("%w: %d", ErrUnknownParticipant, id)
	}
	return p, nil
}

// ValidateLedger checks that no bounded participant holds negative cash or inventory.
func (ex *Exchange) ValidateLedger() error {
	return ex.ledger.Validate()
}

func (ex *Exchange) checkAsset(asset int) error {
	if asset < 0 || asset >= ex.ledger.Assets() {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, asset)
	}
	return nil
}

func (ex *Exchange) participant(id int) (*account.Participant, error) {
	p, err := ex.ledger.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParticipant, id)
	}
	return p, nil
}

// marketable reports whether a resting order at price can trade against an
// incoming order of side with the given limit.
func marketable(side Side, price, limit float64) bool {
	if side == Buy {
		return price <= limit
	}
	return price >= limit
}

// Match executes qty of asset for participant against the opposite side,
// best price first and earliest order first within a price. limit == nil is a
// market order. A buy never spends more cash than the participant has. A limit
// order rests whatever it could not fill, clipped to what a buyer can afford,
// and escrows the cash or inventory behind it.
func (ex *Exchange) Match(asset int, side Side, qty float64, participant int, limit *float64) (Execution, error) {
	if err := ex.checkAsset(asset); err != nil {
		return Execution{}, err
	}
	if !(qty > 0) {
		return Execution{}, fmt.Errorf("%w: %v", ErrNonPositiveQuantity, qty)
	}
	if limit != nil && !(*limit > 0) {
		return Execution{}, fmt.Errorf("%w: %v", ErrInvalidPrice, *limit)
	}
	p, err := ex.participant(participant)
	if err != nil {
		return Execution{}, err
	}
	if side == Sell && p.Holding(asset) < qty {
		return Execution{}, fmt.Errorf("%w: participant %d holds %v of asset %d, sell %v",
			ErrInsufficientInventory, participant, p.Holding(asset), asset, qty)
	}

	var (
		notional float64
		filled   float64
		trades   []Trade
	)
	opposite := side.Opposite()

	for qty > orderbook.Dust {
		if side == Buy && p.Cash <= account.Epsilon {
			break
		}
		o := ex.book.Best(asset, opposite)
		if o == nil {
			break
		}
		if limit != nil && !marketable(side, o.Price, *limit) {
			break
		}

		size := math.Min(o.Remaining, qty)
		if side == Buy && !p.Unbounded {
			size = math.Min(size, p.Cash/o.Price)
		}
		if size <= 0 {
			break
		}

		maker, err := ex.participant(o.Owner)
		if err != nil {
			return Execution{}, err
		}
		if side == Buy {
			ex.ledger.Transfer(p, maker, asset, size, o.Price, false, true)
		} else {
			ex.ledger.Transfer(maker, p, asset, size, o.Price, true, false)
		}

		trades = append(trades, Trade{
			Asset:        asset,
			TakerSide:    side,
			Taker:        participant,
			Maker:        o.Owner,
			MakerOrderID: o.ID,
			Price:        o.Price,
			Qty:          size,
		})
		ex.book.Fill(o, size)
		qty -= size
		notional += size * o.Price
		filled += size
	}
	if qty <= orderbook.Dust {
		qty = 0
	}

	exec := Execution{Filled: filled, Trades: trades}
	if filled > 0 {
		exec.AvgPrice = notional / filled
	}

	if qty > 0 && limit != nil {
		price := *limit
		if side == Buy && !p.Unbounded {
			qty = math.Min(qty, p.Cash/price)
		}
		if qty > orderbook.Dust {
			o := ex.book.Add(asset, side, qty, price, participant)
			if side == Buy {
				ex.ledger.LockCash(p, qty*price)
			} else {
				ex.ledger.LockHoldings(p, asset, qty)
			}
			rest := *o
			exec.Resting = &rest
		} else {
			qty = 0
		}
	}
	exec.Unfilled = qty

	if ex.OnTrade != nil {
		for _, t := range trades {
			ex.OnTrade(t)
		}
	}
	return exec, nil
}

// Cancel zeroes a resting order and returns its escrow to the owner: cash for
// a buy, inventory for a sell. Cancelling a dead order is a no-op.
func (ex *Exchange) Cancel(orderID int64) error {
	o, ok := ex.book.Get(orderID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOrder, orderID)
	}
	if !o.Live() {
		return nil
	}
	p, err := ex.participant(o.Owner)
	if err != nil {
		return err
	}
	if o.Side == Buy {
		ex.ledger.ReleaseCash(p, o.Remaining*o.Price)
	} else {
		ex.ledger.ReleaseHoldings(p, o.Asset, o.Remaining)
	}
	ex.book.Zero(orderID)
	return nil
}

// Quote rests a limit order without matching it and without escrow.
// Only unbounded participants may quote; everyone else goes through Match.
func (ex *Exchange) Quote(asset int, side Side, qty, price float64, participant int) (Order, error) {
	if err := ex.checkAsset(asset); err != nil {
		return Order{}, err
	}
	if !(qty > 0) {
		return Order{}, fmt.Errorf("%w: %v", ErrNonPositiveQuantity, qty)
	}
	if !(price > 0) {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	p, err := ex.participant(participant)
	if err != nil {
		return Order{}, err
	}
	if !p.Unbounded {
		return Order{}, fmt.Errorf("%w: %d", ErrNotUnbounded, participant)
	}
	return *ex.book.Add(asset, side, qty, price, participant), nil
}

// PullQuotes zeroes every live order of participant and returns how many.
// Unbounded participants hold no escrow, so nothing is refunded; bounded
// participants are cancelled normally.
func (ex *Exchange) PullQuotes(participant int) (int, error) {
	p, err := ex.participant(participant)
	if err != nil {
		return 0, err
	}
	orders := ex.book.ByOwner(participant)
	for _, o := range orders {
		if p.Unbounded {
			ex.book.Zero(o.ID)
			continue
		}
		if err := ex.Cancel(o.ID); err != nil {
			return 0, err
		}
	}
	return len(orders), nil
}

// BookSide returns copies of the live orders of (asset, side), best price
// first and earliest id first within a price.
func (ex *Exchange) BookSide(asset int, side Side) []Order {
	if ex.checkAsset(asset) != nil {
		return nil
	}
	live := ex.book.Side(asset, side)
	out := make([]Order, len(live))
	for i, o := range live {
		out[i] = *o
	}
	return out
}

// Levels aggregates (asset, side) by exact price, best-first, for display.
func (ex *Exchange) Levels(asset int, side Side, depth int) []PriceLevel {
	if ex.checkAsset(asset) != nil {
		return nil
	}
	return ex.book.Levels(asset, side, depth)
}

// LiveVWAP is the remaining-quantity-weighted price of everything resting for asset.
func (ex *Exchange) LiveVWAP(asset int) (float64, bool) {
	if ex.checkAsset(asset) != nil {
		return 0, false
	}
	return ex.book.LiveVWAP(asset)
}

// Order returns a copy of order id, live or zeroed.
func (ex *Exchange) Order(id int64) (Order, bool) {
	o, ok := ex.book.Get(id)
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OpenOrders returns copies of participant's live orders in id order.
func (ex *Exchange) OpenOrders(participant int) []Order {
	live := ex.book.ByOwner(participant)
	out := make([]Order, len(live))
	for i, o := range live {
		out[i] = *o
	}
	return out
}

// OrderCount returns the number of orders ever created.
func (ex *Exchange) OrderCount() int { return ex.book.Len() }
