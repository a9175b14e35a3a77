package account

import (
	"fmt"
	"math"
)

// Epsilon is the smallest cash or quantity the ledger treats as non-zero.
// Float settlement leaves residues around 1e-13 that must not count as funds.
const Epsilon = 1e-9

// Participant is one trading account on the exchange.
// Cash and Holdings are spendable; the Locked fields are escrowed behind
// resting orders and come back on cancel or leave on fill.
type Participant struct {
	ID       int
	Cash     float64
	Holdings []float64 // indexed by asset id

	LockedCash     float64
	LockedHoldings []float64

	// Unbounded participants (the oracle) have infinite cash and inventory.
	// Settlement against them is a no-op on their side.
	Unbounded bool
}

func newParticipant(id int, cash, holding float64, assets int, unbounded bool) *Participant {
	p := &Participant{
		ID:             id,
		Cash:           cash,
		Holdings:       make([]float64, assets),
		LockedHoldings: make([]float64, assets),
		Unbounded:      unbounded,
	}
	for i := range p.Holdings {
		p.Holdings[i] = holding
	}
	return p
}

// Holding returns spendable inventory of asset, 0 for unknown assets.
func (p *Participant) Holding(asset int) float64 {
	if asset < 0 || asset >= len(p.Holdings) {
		return 0
	}
	return p.Holdings[asset]
}

// TotalCash is spendable plus escrowed cash.
func (p *Participant) TotalCash() float64 {
	return p.Cash + p.LockedCash
}

// TotalHolding is spendable plus escrowed inventory of asset.
func (p *Participant) TotalHolding(asset int) float64 {
	if asset < 0 || asset >= len(p.Holdings) {
		return 0
	}
	return p.Holdings[asset] + p.LockedHoldings[asset]
}

// Clone returns a deep copy safe to hand to readers outside the engine.
func (p *Participant) Clone() Participant {
	c := *p
	c.Holdings = append([]float64(nil), p.Holdings...)
	c.LockedHoldings = append([]float64(nil), p.LockedHoldings...)
	return c
}

// Validate checks the non-negativity invariant for bounded participants.
func (p *Participant) Validate() error {
	if p.Unbounded {
		return nil
	}
	if p.Cash < 0 || math.IsNaN(p.Cash) {
		return fmt.Errorf("participant %d: negative cash: %v", p.ID, p.Cash)
	}
	if p.LockedCash < 0 {
		return fmt.Errorf("participant %d: negative locked cash: %v", p.ID, p.LockedCash)
	}
	for asset, h := range p.Holdings {
		if h < 0 || math.IsNaN(h) {
			return fmt.Errorf("participant %d: negative holding of asset %d: %v", p.ID, asset, h)
		}
		if p.LockedHoldings[asset] < 0 {
			return fmt.Errorf("participant %d: negative locked holding of asset %d: %v", p.ID, asset, p.LockedHoldings[asset])
		}
	}
	return nil
}

// clamp snaps float residues below Epsilon in magnitude to zero.
func clamp(v float64) float64 {
	if math.Abs(v) < Epsilon {
		return 0
	}
	return v
}
