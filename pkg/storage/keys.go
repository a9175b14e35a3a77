package storage

import "fmt"

// Key schema:
//
//	run:<runID>              → Run
//	trade:<runID>:<seq>      → TradeRecord
//	tick:<runID>:<tick>      → TickRecord
//
// seq and tick are zero-padded (20 digits) so a prefix scan returns them in order.
const (
	prefixRun   = "run:"
	prefixTrade = "trade:"
	prefixTick  = "tick:"
)

func runKey(id string) []byte {
	return []byte(prefixRun + id)
}

func runPrefix() []byte {
	return []byte(prefixRun)
}

func tradeKey(runID string, seq int64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTrade, runID, seq))
}

func tradePrefix(runID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, runID))
}

func tickKey(runID string, tick int) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTick, runID, tick))
}

func tickPrefix(runID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTick, runID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
