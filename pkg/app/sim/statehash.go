package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/uhyunpark/algosim/pkg/app/core"
)

// StateHash computes a deterministic hash of the whole session. Two sessions
// built from the same config and driven by the same plans hash equal.
//
// State components hashed (in order):
//  1. Oracle tick count
//  2. Per asset: reference price, then bid levels (best first), then ask levels
//  3. Per participant: cash, locked cash, then holdings and locked holdings per asset
//
// The oracle's infinite balances hash as +Inf bit patterns, which are stable.
func (s *Simulator) StateHash() [32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := sha256.New()
	var buf [8]byte
	putU := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putF := func(v float64) { putU(math.Float64bits(v)) }

	putU(uint64(s.oracle.Ticks()))

	for a := 0; a < s.ex.Assets(); a++ {
		putF(s.oracle.Price(a))
		for _, side := range []core.Side{core.Buy, core.Sell} {
			levels := s.ex.Levels(a, side, 0)
			putU(uint64(len(levels)))
			for _, l := range levels {
				putF(l.Price)
				putF(l.Qty)
			}
		}
	}

	for id := 0; id < s.ex.Participants(); id++ {
		p, err := s.ex.Participant(id)
		if err != nil {
			continue
		}
		putF(p.Cash)
		putF(p.LockedCash)
		for a := range p.Holdings {
			putF(p.Holdings[a])
			putF(p.LockedHoldings[a])
		}
	}

	return sha256.Sum256(h.Sum(nil))
}
