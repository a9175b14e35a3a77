package orderbook

import (
	"sort"

	"github.com/google/btree"
)

// Dust is the remaining quantity below which an order counts as filled.
const Dust = 1e-9

const treeDegree = 32

// level is the FIFO of order ids resting at one exact price.
type level struct {
	price float64
	ids   []int64
}

func levelLess(a, b *level) bool { return a.price < b.price }

// OrderBook is the append-only arena of every order ever rested plus a
// per-(asset, side) price index. The arena is the source of truth; the index
// only makes best-price lookups cheap and keeps price-time order:
// levels ordered by price in a btree, ids inside a level in submission order.
type OrderBook struct {
	orders []*Order
	index  [][2]*btree.BTreeG[*level] // asset -> side -> levels
	live   map[int64]struct{}
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		live: make(map[int64]struct{}),
	}
}

func (ob *OrderBook) tree(asset int, side Side) *btree.BTreeG[*level] {
	for len(ob.index) <= asset {
		ob.index = append(ob.index, [2]*btree.BTreeG[*level]{
			btree.NewG[*level](treeDegree, levelLess),
			btree.NewG[*level](treeDegree, levelLess),
		})
	}
	return ob.index[asset][side]
}

// Len returns the number of orders ever created, live or not.
func (ob *OrderBook) Len() int { return len(ob.orders) }

// LiveCount returns the number of orders with remaining quantity.
func (ob *OrderBook) LiveCount() int { return len(ob.live) }

// Add appends a resting order and returns it. The caller has validated inputs.
func (ob *OrderBook) Add(asset int, side Side, qty, price float64, owner int) *Order {
	o := &Order{
		ID:        int64(len(ob.orders)),
		Asset:     asset,
		Side:      side,
		Remaining: qty,
		Price:     price,
		Owner:     owner,
	}
	ob.orders = append(ob.orders, o)
	if qty <= Dust {
		o.Remaining = 0
		return o
	}

	t := ob.tree(asset, side)
	lvl, ok := t.Get(&level{price: price})
	if !ok {
		lvl = &level{price: price}
		t.ReplaceOrInsert(lvl)
	}
	lvl.ids = append(lvl.ids, o.ID)
	ob.live[o.ID] = struct{}{}
	return o
}

// Get returns the order with id, live or zeroed.
func (ob *OrderBook) Get(id int64) (*Order, bool) {
	if id < 0 || id >= int64(len(ob.orders)) {
		return nil, false
	}
	return ob.orders[id], true
}

// Fill takes qty off a resting order and retires it once it is dust.
func (ob *OrderBook) Fill(o *Order, qty float64) {
	o.Remaining -= qty
	if o.Remaining <= Dust {
		ob.Zero(o.ID)
	}
}

// Zero tombstones an order: remaining goes to 0 and it leaves the index.
// Zeroing a dead order is a no-op.
func (ob *OrderBook) Zero(id int64) {
	o, ok := ob.Get(id)
	if !ok {
		return
	}
	o.Remaining = 0
	if _, live := ob.live[id]; !live {
		return
	}
	delete(ob.live, id)

	t := ob.tree(o.Asset, o.Side)
	lvl, ok := t.Get(&level{price: o.Price})
	if !ok {
		return
	}
	for i, lid := range lvl.ids {
		if lid == id {
			lvl.ids = append(lvl.ids[:i], lvl.ids[i+1:]...)
			break
		}
	}
	if len(lvl.ids) == 0 {
		t.Delete(lvl)
	}
}

// walk visits levels of (asset, side) best-first: lowest ask, highest bid.
func (ob *OrderBook) walk(asset int, side Side, fn func(*level) bool) {
	// read paths never grow the index
	if asset < 0 || asset >= len(ob.index) {
		return
	}
	t := ob.index[asset][side]
	if side == Sell {
		t.Ascend(fn)
	} else {
		t.Descend(fn)
	}
}

// Side returns the live orders of (asset, side) best-first, ties by submission order.
func (ob *OrderBook) Side(asset int, side Side) []*Order {
	var out []*Order
	ob.walk(asset, side, func(l *level) bool {
		for _, id := range l.ids {
			if o := ob.orders[id]; o.Live() {
				out = append(out, o)
			}
		}
		return true
	})
	return out
}

// Best returns the order at the head of (asset, side), or nil for an empty side.
func (ob *OrderBook) Best(asset int, side Side) *Order {
	var best *Order
	ob.walk(asset, side, func(l *level) bool {
		for _, id := range l.ids {
			if o := ob.orders[id]; o.Live() {
				best = o
				return false
			}
		}
		return true
	})
	return best
}

// Levels aggregates (asset, side) by exact price, best-first.
// depth <= 0 returns every level.
func (ob *OrderBook) Levels(asset int, side Side, depth int) []PriceLevel {
	var levels []PriceLevel
	ob.walk(asset, side, func(l *level) bool {
		var qty float64
		for _, id := range l.ids {
			qty += ob.orders[id].Remaining
		}
		if qty > 0 {
			levels = append(levels, PriceLevel{Price: l.price, Qty: qty})
		}
		return depth <= 0 || len(levels) < depth
	})
	return levels
}

// LiveVWAP returns the remaining-quantity-weighted average price over both
// sides of asset. ok is false when no liquidity rests for the asset.
func (ob *OrderBook) LiveVWAP(asset int) (vwap float64, ok bool) {
	var notional, qty float64
	for _, side := range []Side{Buy, Sell} {
		ob.walk(asset, side, func(l *level) bool {
			for _, id := range l.ids {
				o := ob.orders[id]
				notional += o.Remaining * o.Price
				qty += o.Remaining
			}
			return true
		})
	}
	if qty <= 0 {
		return 0, false
	}
	return notional / qty, true
}

// ByOwner returns the live orders of owner in id order.
func (ob *OrderBook) ByOwner(owner int) []*Order {
	var out []*Order
	for id := range ob.live {
		if o := ob.orders[id]; o.Owner == owner {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
