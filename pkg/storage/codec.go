package storage

import (
	"encoding/json"
	"math"
	"sort"
)

// finite maps values JSON cannot encode onto ones it can.
func finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	case math.IsNaN(v):
		return 0
	}
	return v
}

func sanitizeRun(r Run) Run {
	rep := &r.Report
	rep.StartPrice = finite(rep.StartPrice)
	rep.EndPrice = finite(rep.EndPrice)
	rep.SlippagePct = finite(rep.SlippagePct)
	rep.MarketImpactPct = finite(rep.MarketImpactPct)
	rep.CompletionPct = finite(rep.CompletionPct)
	return r
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decode(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

func sortRuns(runs []Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
}
