package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AssetInfo is an asset's static parameters and current reference price.
type AssetInfo struct {
	ID         int     `json:"id"`
	Symbol     string  `json:"symbol"` // e.g. "ASSET-0"
	StartPrice float64 `json:"startPrice"`
	Beta       float64 `json:"beta"`   // volatility multiplier
	Supply     float64 `json:"supply"` // fully diluted supply
	Price      float64 `json:"price"`
}

// OrderbookSnapshot is the aggregated book of one asset.
type OrderbookSnapshot struct {
	Asset  int          `json:"asset"`
	Symbol string       `json:"symbol"`
	Bids   []PriceLevel `json:"bids"` // Sorted high to low
	Asks   []PriceLevel `json:"asks"` // Sorted low to high
	Tick   int          `json:"tick"`
}

// PriceLevel is the resting size at one exact price.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type PriceInfo struct {
	Asset  int     `json:"asset"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Tick   int     `json:"tick"`
}

// ParticipantInfo is a ledger entry. The oracle is unbounded and reports no balances.
type ParticipantInfo struct {
	ID             int       `json:"id"`
	Unbounded      bool      `json:"unbounded"`
	Cash           float64   `json:"cash"`
	LockedCash     float64   `json:"lockedCash"`
	Holdings       []float64 `json:"holdings"`
	LockedHoldings []float64 `json:"lockedHoldings"`
}

type OrderInfo struct {
	ID        int64   `json:"id"`
	Asset     int     `json:"asset"`
	Side      string  `json:"side"` // "buy" or "sell"
	Price     float64 `json:"price"`
	Remaining float64 `json:"remaining"`
}

type HealthStatus struct {
	Status  string `json:"status"`
	Ticks   int    `json:"ticks"`
	Running string `json:"running,omitempty"` // id of the run in progress
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest subscribes to channels:
// "book:<asset>", "trades:<asset>", "ticks".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

type BookUpdate struct {
	Type string `json:"type"` // "book"
	OrderbookSnapshot
}

type TradeUpdate struct {
	Type   string  `json:"type"` // "trade"
	Run    string  `json:"run,omitempty"`
	Seq    int64   `json:"seq"`
	Asset  int     `json:"asset"`
	Side   string  `json:"side"` // taker side
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	Buyer  int     `json:"buyer"`
	Seller int     `json:"seller"`
}

type TickUpdate struct {
	Type   string    `json:"type"` // "tick"
	Run    string    `json:"run,omitempty"`
	Tick   int       `json:"tick"`
	Prices []float64 `json:"prices"`
}
