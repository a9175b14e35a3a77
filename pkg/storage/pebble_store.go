package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens the tape at path. The tape is append-mostly and small,
// so it runs with a modest cache and memtable.
func NewPebbleStore(path string) (*PebbleStore, error) {
	cache := pebble.NewCache(32 << 20)
	defer cache.Unref()
	return OpenPebbleStore(path, &pebble.Options{
		Cache:                    cache,
		MemTableSize:             16 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             256,
		BytesPerSync:             512 << 10,
	})
}

// OpenPebbleStore opens the tape with explicit options, e.g. an in-memory vfs.
func OpenPebbleStore(path string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open tape %q: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) SaveRun(r Run) error {
	data, err := encode(sanitizeRun(r))
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := s.db.Set(runKey(r.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *PebbleStore) Run(id string) (Run, error) {
	data, closer, err := s.db.Get(runKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	defer closer.Close()

	var r Run
	if err := decode(data, &r); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return r, nil
}

func (s *PebbleStore) Runs() ([]Run, error) {
	var runs []Run
	err := s.scan(runPrefix(), func(v []byte) error {
		var r Run
		if err := decode(v, &r); err != nil {
			return fmt.Errorf("failed to unmarshal run: %w", err)
		}
		runs = append(runs, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

// SaveTrade does not sync; the run record written at the end of a run does.
func (s *PebbleStore) SaveTrade(t TradeRecord) error {
	data, err := encode(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Run, t.Seq), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

func (s *PebbleStore) Trades(runID string, limit int) ([]TradeRecord, error) {
	prefix := tradePrefix(runID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	// walk back from the newest, then restore fill order
	var trades []TradeRecord
	for iter.Last(); iter.Valid() && (limit <= 0 || len(trades) < limit); iter.Prev() {
		var t TradeRecord
		if err := decode(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		trades = append(trades, t)
	}
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, iter.Error()
}

func (s *PebbleStore) SaveTick(t TickRecord) error {
	prices := make([]float64, len(t.Prices))
	for i, v := range t.Prices {
		prices[i] = finite(v)
	}
	t.Prices = prices
	data, err := encode(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tick: %w", err)
	}
	if err := s.db.Set(tickKey(t.Run, t.Tick), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save tick: %w", err)
	}
	return nil
}

func (s *PebbleStore) Ticks(runID string) ([]TickRecord, error) {
	var ticks []TickRecord
	err := s.scan(tickPrefix(runID), func(v []byte) error {
		var t TickRecord
		if err := decode(v, &t); err != nil {
			return fmt.Errorf("failed to unmarshal tick: %w", err)
		}
		ticks = append(ticks, t)
		return nil
	})
	return ticks, err
}

func (s *PebbleStore) scan(prefix []byte, fn func(v []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

var _ Store = (*PebbleStore)(nil)
