// Package core is the matching engine of the simulator. It owns the ledger and
// the order book and is the only place either is mutated.
package core

import (
	"github.com/uhyunpark/algosim/pkg/app/core/account"
	"github.com/uhyunpark/algosim/pkg/app/core/market"
	"github.com/uhyunpark/algosim/pkg/app/core/orderbook"
)

// Re-export types from subpackages so callers can stay on one import.

// From orderbook package
type (
	Side       = orderbook.Side
	Order      = orderbook.Order
	PriceLevel = orderbook.PriceLevel
)

const (
	Buy  = orderbook.Buy
	Sell = orderbook.Sell
)

// ParseSide accepts "buy"/"sell".
func ParseSide(s string) (Side, error) {
	return orderbook.ParseSide(s)
}

// From account package
type Participant = account.Participant

// OracleID is the participant id reserved for the liquidity oracle.
const OracleID = 0

// From market package
type MarketParams = market.Params

// Trade is one fill between an incoming order and a resting one.
type Trade struct {
	Asset        int     `json:"asset"`
	TakerSide    Side    `json:"takerSide"`
	Taker        int     `json:"taker"`
	Maker        int     `json:"maker"`
	MakerOrderID int64   `json:"makerOrderId"`
	Price        float64 `json:"price"`
	Qty          float64 `json:"qty"`
}

// Buyer returns the participant that received inventory.
func (t Trade) Buyer() int {
	if t.TakerSide == Buy {
		return t.Taker
	}
	return t.Maker
}

// Seller returns the participant that delivered inventory.
func (t Trade) Seller() int {
	if t.TakerSide == Sell {
		return t.Taker
	}
	return t.Maker
}

// Execution is the successful outcome of Match.
type Execution struct {
	// Unfilled is the quantity not traded. For a limit order it is the
	// quantity left resting after affordability clipping.
	Unfilled float64
	// AvgPrice is the volume-weighted fill price, 0 when nothing traded.
	AvgPrice float64
	Filled   float64
	// Resting is the order created for a limit remainder, nil otherwise.
	Resting *Order
	Trades  []Trade
}
