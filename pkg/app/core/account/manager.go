package account

import (
	"fmt"
	"math"
)

// Ledger holds every participant's cash and per-asset holdings.
// Index 0 is reserved for the oracle. Ids are append-only and never renumbered.
//
// The ledger is not safe for concurrent use; the matching engine that owns it
// is the only writer and callers serialise access around it.
type Ledger struct {
	participants []*Participant
	assets       int
}

// NewLedger creates a ledger with the oracle installed as participant 0.
func NewLedger(assets int) *Ledger {
	l := &Ledger{assets: assets}
	l.participants = append(l.participants, newParticipant(0, math.Inf(1), math.Inf(1), assets, true))
	return l
}

// Len returns the number of participants including the oracle.
func (l *Ledger) Len() int { return len(l.participants) }

// Assets returns the number of asset slots every participant carries.
func (l *Ledger) Assets() int { return l.assets }

// AddParticipant appends a bounded participant and returns its id.
func (l *Ledger) AddParticipant(cash, holding float64) int {
	id := len(l.participants)
	l.participants = append(l.participants, newParticipant(id, cash, holding, l.assets, false))
	return id
}

// AddAsset extends every participant with one more holding slot.
// Bounded participants receive defaultHolding, unbounded ones +Inf.
func (l *Ledger) AddAsset(defaultHolding float64) int {
	for _, p := range l.participants {
		h := defaultHolding
		if p.Unbounded {
			h = math.Inf(1)
		}
		p.Holdings = append(p.Holdings, h)
		p.LockedHoldings = append(p.LockedHoldings, 0)
	}
	l.assets++
	return l.assets - 1
}

// Get returns the live participant record. Only the engine mutates it.
func (l *Ledger) Get(id int) (*Participant, error) {
	if id < 0 || id >= len(l.participants) {
		return nil, fmt.Errorf("participant %d not found", id)
	}
	return l.participants[id], nil
}

// Snapshot returns a copy of participant id.
func (l *Ledger) Snapshot(id int) (Participant, error) {
	p, err := l.Get(id)
	if err != nil {
		return Participant{}, err
	}
	return p.Clone(), nil
}

// Validate checks the non-negativity invariant for every participant.
func (l *Ledger) Validate() error {
	for _, p := range l.participants {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Settlement primitives (called by the matching engine only)
// ============================================================================

// Transfer settles qty of asset at price from seller to buyer.
// sellerEscrowed / buyerEscrowed say whether that side's leg comes out of
// an escrow placed when its order rested.
func (l *Ledger) Transfer(buyer, seller *Participant, asset int, qty, price float64, buyerEscrowed, sellerEscrowed bool) {
	notional := qty * price

	if !buyer.Unbounded {
		if buyerEscrowed {
			buyer.LockedCash = clamp(buyer.LockedCash - notional)
		} else {
			buyer.Cash = clamp(buyer.Cash - notional)
		}
		buyer.Holdings[asset] += qty
	}

	if !seller.Unbounded {
		if sellerEscrowed {
			seller.LockedHoldings[asset] = clamp(seller.LockedHoldings[asset] - qty)
		} else {
			seller.Holdings[asset] = clamp(seller.Holdings[asset] - qty)
		}
		seller.Cash += notional
	}
}

// LockCash moves amount from spendable to escrowed cash.
func (l *Ledger) LockCash(p *Participant, amount float64) {
	if p.Unbounded || amount <= 0 {
		return
	}
	p.Cash = clamp(p.Cash - amount)
	p.LockedCash += amount
}

// ReleaseCash moves amount from escrowed back to spendable cash.
func (l *Ledger) ReleaseCash(p *Participant, amount float64) {
	if p.Unbounded || amount <= 0 {
		return
	}
	if amount > p.LockedCash {
		amount = p.LockedCash
	}
	p.LockedCash = clamp(p.LockedCash - amount)
	p.Cash += amount
}

// LockHoldings moves qty of asset from spendable to escrowed inventory.
func (l *Ledger) LockHoldings(p *Participant, asset int, qty float64) {
	if p.Unbounded || qty <= 0 {
		return
	}
	p.Holdings[asset] = clamp(p.Holdings[asset] - qty)
	p.LockedHoldings[asset] += qty
}

// ReleaseHoldings moves qty of asset from escrowed back to spendable inventory.
func (l *Ledger) ReleaseHoldings(p *Participant, asset int, qty float64) {
	if p.Unbounded || qty <= 0 {
		return
	}
	if qty > p.LockedHoldings[asset] {
		qty = p.LockedHoldings[asset]
	}
	p.LockedHoldings[asset] = clamp(p.LockedHoldings[asset] - qty)
	p.Holdings[asset] += qty
}
