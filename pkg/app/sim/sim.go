// Package sim is one simulation session: an exchange, the oracle that prices
// it and the execution runner, behind a single lock so market-data readers
// always see whole ticks and whole matches.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/algosim/params"
	"github.com/uhyunpark/algosim/pkg/app/algo"
	"github.com/uhyunpark/algosim/pkg/app/core"
	"github.com/uhyunpark/algosim/pkg/app/core/market"
	"github.com/uhyunpark/algosim/pkg/app/oracle"
	"github.com/uhyunpark/algosim/pkg/storage"
	"github.com/uhyunpark/algosim/pkg/util"
)

// TickEvent is published after every oracle tick.
type TickEvent struct {
	Run    string    `json:"run,omitempty"`
	Tick   int       `json:"tick"`
	Prices []float64 `json:"prices"`
}

// TradeEvent is published for every fill.
type TradeEvent struct {
	Run string `json:"run,omitempty"`
	Seq int64  `json:"seq"`
	core.Trade
}

type Simulator struct {
	mu     sync.RWMutex
	cfg    params.Config
	ex     *core.Exchange
	oracle *oracle.Oracle
	tape   storage.Store
	clock  util.Clock
	log    *zap.SugaredLogger

	// set while a plan runs, guarded by mu
	runID   string
	seq     int64
	pending []core.Trade

	// OnTick and OnTrade are called outside the lock and may read the simulator.
	OnTick  func(TickEvent)
	OnTrade func(TradeEvent)
}

// New builds the exchange and oracle described by cfg. tape may be nil, in
// which case runs are kept in memory. logger may be nil.
func New(cfg params.Config, tape storage.Store, logger *zap.SugaredLogger) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if tape == nil {
		tape = storage.NewInMemoryStore()
	}

	ex, err := core.NewExchange(cfg.Exchange, market.Params{
		StartPrice: cfg.Oracle.StartPrice,
		Beta:       cfg.Oracle.Beta,
		Supply:     cfg.Oracle.Supply,
	})
	if err != nil {
		return nil, err
	}
	seed := cfg.Oracle.Seed
	or, err := oracle.New(ex, cfg.Oracle, rand.NewPCG(seed, seed+1), logger.Named("oracle"))
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:    cfg,
		ex:     ex,
		oracle: or,
		tape:   tape,
		clock:  util.RealClock{},
		log:    logger,
	}
	ex.OnTrade = func(t core.Trade) { s.pending = append(s.pending, t) }
	return s, nil
}

// SetClock replaces the clock used to pace ticks.
func (s *Simulator) SetClock(c util.Clock) { s.clock = c }

func (s *Simulator) Config() params.Config { return s.cfg }

// Tape returns the store runs are recorded to.
func (s *Simulator) Tape() storage.Store { return s.tape }

// Warmup runs n oracle ticks so the book has a history before trading.
func (s *Simulator) Warmup(ctx context.Context, n int) error {
	m := &session{s: s, ctx: ctx}
	for i := 0; i < n; i++ {
		if err := m.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Run carries out plan and records it on the tape. Only one plan runs at a
// time; market-data readers are served between steps.
func (s *Simulator) Run(ctx context.Context, plan params.Plan) (storage.Run, error) {
	if plan.Algorithm != algo.TWAP && plan.Algorithm != algo.VWAP {
		return storage.Run{}, fmt.Errorf("unknown algorithm %q", plan.Algorithm)
	}
	side, err := core.ParseSide(plan.Side)
	if err != nil {
		return storage.Run{}, err
	}
	order := algo.Order{
		Asset:       plan.Asset,
		Side:        side,
		Quantity:    plan.Quantity,
		Participant: plan.Participant,
		Ticks:       plan.Ticks,
		Randomize:   plan.Randomize,
		Lag:         plan.Lag,
	}

	s.mu.Lock()
	if s.runID != "" {
		s.mu.Unlock()
		return storage.Run{}, fmt.Errorf("run %s already in progress", s.runID)
	}
	run := storage.Run{
		ID:        storage.NewRunID(),
		Plan:      plan,
		Seed:      s.cfg.Oracle.Seed,
		StartedAt: s.clock.Now().UTC(),
	}
	s.runID, s.seq = run.ID, 0
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.runID = ""
		s.mu.Unlock()
	}()

	s.log.Infow("run_start",
		"run", run.ID,
		"algo", plan.Algorithm,
		"asset", plan.Asset,
		"side", side.String(),
		"qty", plan.Quantity,
		"ticks", plan.Ticks)

	seed := s.cfg.Oracle.Seed
	runner := algo.NewRunner(&session{s: s, ctx: ctx}, rand.NewPCG(seed^0x5851f42d4c957f2d, seed), s.log.Named("algo"))
	if plan.Algorithm == algo.VWAP {
		run.Report = runner.VWAP(ctx, algo.VWAPOrder{
			Order:       order,
			StartIndex:  plan.StartIndex,
			Profile:     s.cfg.Oracle.VolumeProfile,
			TicksPerDay: s.cfg.Oracle.TicksPerDay,
		})
	} else {
		run.Report = runner.TWAP(ctx, order)
	}

	run.FinishedAt = s.clock.Now().UTC()
	run.StateHash = fmt.Sprintf("0x%x", s.StateHash())
	if err := s.tape.SaveRun(run); err != nil {
		return run, fmt.Errorf("record run: %w", err)
	}

	rep := run.Report
	s.log.Infow("run_complete",
		"run", run.ID,
		"algo", rep.Algorithm,
		"filled", rep.Filled,
		"slippage_pct", rep.SlippagePct,
		"market_impact_pct", rep.MarketImpactPct,
		"completion_pct", rep.CompletionPct,
		"aborted", rep.Aborted,
		"state_hash", run.StateHash)
	return run, nil
}

// flush records and publishes the fills of the last match. Called without the lock.
func (s *Simulator) flush(trades []core.Trade, runID string, seq int64) {
	for i, t := range trades {
		ev := TradeEvent{Run: runID, Seq: seq + int64(i), Trade: t}
		if runID != "" {
			if err := s.tape.SaveTrade(storage.TradeRecord{Run: runID, Seq: ev.Seq, Trade: t}); err != nil {
				s.log.Warnw("tape_write_failed", "run", runID, "err", err)
			}
		}
		if s.OnTrade != nil {
			s.OnTrade(ev)
		}
	}
}

// session is the algo.Market a run trades on: every call takes the
// simulator lock and ticks are paced by the node's tick interval.
type session struct {
	s   *Simulator
	ctx context.Context
}

func (m *session) Match(asset int, side core.Side, qty float64, participant int, limit *float64) (core.Execution, error) {
	s := m.s
	s.mu.Lock()
	exec, err := s.ex.Match(asset, side, qty, participant, limit)
	trades, runID, seq := s.pending, s.runID, s.seq
	s.pending = nil
	s.seq += int64(len(trades))
	s.mu.Unlock()

	s.flush(trades, runID, seq)
	return exec, err
}

func (m *session) Tick() error {
	s := m.s
	if err := util.Wait(m.ctx, s.clock, s.cfg.Node.TickInterval); err != nil {
		return err
	}

	s.mu.Lock()
	if err := s.oracle.Tick(); err != nil {
		s.mu.Unlock()
		return err
	}
	ev := TickEvent{Run: s.runID, Tick: s.oracle.Ticks(), Prices: s.oracle.Prices()}
	s.mu.Unlock()

	if ev.Run != "" {
		if err := s.tape.SaveTick(storage.TickRecord{Run: ev.Run, Tick: ev.Tick, Prices: ev.Prices}); err != nil {
			s.log.Warnw("tape_write_failed", "run", ev.Run, "err", err)
		}
	}
	if s.OnTick != nil {
		s.OnTick(ev)
	}
	return nil
}

func (m *session) Price(asset int) float64 {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return m.s.oracle.Price(asset)
}

// Match submits an order outside any plan, e.g. from a test or a manual trader.
func (s *Simulator) Match(asset int, side core.Side, qty float64, participant int, limit *float64) (core.Execution, error) {
	return (&session{s: s, ctx: context.Background()}).Match(asset, side, qty, participant, limit)
}

func (s *Simulator) Cancel(orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ex.Cancel(orderID)
}

func (s *Simulator) AddAsset() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracle.AddAsset()
}

func (s *Simulator) AddParticipant() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ex.AddParticipant()
}

func (s *Simulator) Assets() []market.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ex.Markets().List()
}

func (s *Simulator) Levels(asset int, side core.Side, depth int) []core.PriceLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ex.Levels(asset, side, depth)
}

func (s *Simulator) Price(asset int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if asset < 0 || asset >= s.ex.Assets() {
		return 0, fmt.Errorf("%w: %d", core.ErrUnknownAsset, asset)
	}
	return s.oracle.Price(asset), nil
}

func (s *Simulator) Participant(id int) (core.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ex.Participant(id)
}

func (s *Simulator) OpenOrders(participant int) []core.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ex.OpenOrders(participant)
}

// Ticks returns the number of oracle ticks so far.
func (s *Simulator) Ticks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.oracle.Ticks()
}

// Running returns the id of the run in progress, "" when idle.
func (s *Simulator) Running() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// Now returns the time on the simulator clock.
func (s *Simulator) Now() time.Time { return s.clock.Now() }
