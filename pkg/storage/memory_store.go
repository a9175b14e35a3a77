package storage

import (
	"fmt"
	"sync"
)

// InMemoryStore keeps the tape for the life of the process.
type InMemoryStore struct {
	mu     sync.Mutex
	runs   map[string]Run
	trades map[string][]TradeRecord
	ticks  map[string][]TickRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:   make(map[string]Run),
		trades: make(map[string][]TradeRecord),
		ticks:  make(map[string][]TickRecord),
	}
}

func (s *InMemoryStore) SaveRun(r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

func (s *InMemoryStore) Run(id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, nil
}

func (s *InMemoryStore) Runs() ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sortRuns(out)
	return out, nil
}

func (s *InMemoryStore) SaveTrade(t TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[t.Run] = append(s.trades[t.Run], t)
	return nil
}

func (s *InMemoryStore) Trades(runID string, limit int) ([]TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.trades[runID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]TradeRecord(nil), all...), nil
}

func (s *InMemoryStore) SaveTick(t TickRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Prices = append([]float64(nil), t.Prices...)
	s.ticks[t.Run] = append(s.ticks[t.Run], t)
	return nil
}

func (s *InMemoryStore) Ticks(runID string) ([]TickRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TickRecord(nil), s.ticks[runID]...), nil
}

func (s *InMemoryStore) Close() error { return nil }

var _ Store = (*InMemoryStore)(nil)
