package market

import (
	"fmt"
	"sync"
)

// Params are the oracle-side properties of one simulated asset.
type Params struct {
	Symbol     string  // "ASSET-0"
	StartPrice float64 // reference price before the first tick
	Beta       float64 // multiplier on market volatility
	Supply     float64 // fully diluted supply; depth * Supply rests in the book
}

// DefaultParams returns the parameters every new asset starts with.
func DefaultParams(symbol string, startPrice, beta, supply float64) Params {
	return Params{Symbol: symbol, StartPrice: startPrice, Beta: beta, Supply: supply}
}

// Validate checks parameter sanity
func (p Params) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if p.StartPrice <= 0 {
		return fmt.Errorf("start price must be positive")
	}
	if p.Beta < 0 {
		return fmt.Errorf("beta cannot be negative")
	}
	if p.Supply < 0 {
		return fmt.Errorf("supply cannot be negative")
	}
	return nil
}

// SymbolFor is the default symbol of asset id.
func SymbolFor(asset int) string {
	return fmt.Sprintf("ASSET-%d", asset)
}

// MarketRegistry maps symbols to asset ids in a thread-safe manner.
// Assets are append-only, so an id never changes symbol.
type MarketRegistry struct {
	mu      sync.RWMutex
	byID    []Params
	symbols map[string]int // symbol -> asset id
}

// NewMarketRegistry creates an empty market registry
func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		symbols: make(map[string]int),
	}
}

// Register appends an asset and returns its id.
// Returns error if an asset with the same symbol already exists.
func (mr *MarketRegistry) Register(p Params) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("invalid market params: %w", err)
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	if _, exists := mr.symbols[p.Symbol]; exists {
		return 0, fmt.Errorf("market %s already registered", p.Symbol)
	}
	id := len(mr.byID)
	mr.byID = append(mr.byID, p)
	mr.symbols[p.Symbol] = id
	return id, nil
}

// Lookup resolves a symbol to its asset id.
func (mr *MarketRegistry) Lookup(symbol string) (int, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	id, ok := mr.symbols[symbol]
	if !ok {
		return 0, fmt.Errorf("market %s not found", symbol)
	}
	return id, nil
}

// Get returns the params of asset id.
func (mr *MarketRegistry) Get(id int) (Params, error) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	if id < 0 || id >= len(mr.byID) {
		return Params{}, fmt.Errorf("asset %d not found", id)
	}
	return mr.byID[id], nil
}

// List returns every registered asset in id order.
func (mr *MarketRegistry) List() []Params {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	return append([]Params(nil), mr.byID...)
}

// Len returns the number of registered assets.
func (mr *MarketRegistry) Len() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return len(mr.byID)
}
