package orderbook

import "fmt"

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side an order of side s trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "BUY", "Buy", "b":
		return Buy, nil
	case "sell", "SELL", "Sell", "s":
		return Sell, nil
	}
	return Buy, fmt.Errorf("unknown side %q", s)
}

// Order is a resting limit order. Everything but Remaining is fixed at
// creation; Remaining only ever decreases. A zeroed order stays in the arena
// so its ID keeps indexing it.
type Order struct {
	ID        int64   `json:"id"` // arena index, assigned in submission order
	Asset     int     `json:"asset"`
	Side      Side    `json:"side"`
	Remaining float64 `json:"remaining"`
	Price     float64 `json:"price"`
	Owner     int     `json:"owner"`
}

// Live reports whether the order still rests in the book.
func (o *Order) Live() bool { return o.Remaining > 0 }

// PriceLevel is the aggregated resting quantity at one exact price.
type PriceLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}
