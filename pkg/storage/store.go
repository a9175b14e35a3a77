// Package storage is the run tape: every finished execution, the fills it
// caused and the reference prices it saw. Nothing is ever read back into a
// running simulation.
package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/algo"
	"github.com/uhyunpark/algosim/pkg/app/core"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one execution plan carried out by the simulator.
type Run struct {
	ID         string      `json:"id"`
	Plan       params.Plan `json:"plan"`
	Seed       uint64      `json:"seed"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Report     algo.Report `json:"report"`
	// StateHash fingerprints the exchange after the run; equal seeds and
	// plans give equal hashes.
	StateHash string `json:"stateHash"`
}

// TradeRecord is a fill that happened while a run was active.
type TradeRecord struct {
	Run string `json:"run"`
	Seq int64  `json:"seq"`
	core.Trade
}

// TickRecord is the reference prices after one oracle tick of a run.
type TickRecord struct {
	Run    string    `json:"run"`
	Tick   int       `json:"tick"`
	Prices []float64 `json:"prices"`
}

// Store persists the tape. Implementations are safe for concurrent use.
type Store interface {
	SaveRun(r Run) error
	Run(id string) (Run, error)
	// Runs returns every run, oldest first.
	Runs() ([]Run, error)

	SaveTrade(t TradeRecord) error
	// Trades returns the last limit trades of a run in fill order;
	// limit <= 0 returns all of them.
	Trades(runID string, limit int) ([]TradeRecord, error)

	SaveTick(t TickRecord) error
	Ticks(runID string) ([]TickRecord, error)

	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }
