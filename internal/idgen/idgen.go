// Package idgen implements IdGenerator: a monotonic order-id allocator
// recovered on startup from the persisted trade log (spec.md §4.8).
package idgen

import "sync/atomic"

// SafeStartValue is used when the trade log scan itself fails: a high
// value chosen to make an accidental collision with a partially-recovered
// log implausible, while still surfacing the scan error to the caller.
const SafeStartValue = 10000

// Generator is an atomic fetch-and-add counter.
type Generator struct {
	counter uint64
}

// New creates a Generator that will hand out `start` on the first call to
// Next.
func New(start uint64) *Generator {
	g := &Generator{}
	atomic.StoreUint64(&g.counter, start-1)
	return g
}

// Recover scans maxOrderID (the highest orderId seen in the persisted
// trade log, or 0 if the log is absent) and returns a Generator seeded at
// maxOrderID+1, per spec.md §4.8. If scanFailed is true the generator is
// seeded at SafeStartValue instead and the caller is expected to have
// already surfaced scanErr to its own caller.
func Recover(maxOrderID uint64, scanFailed bool) *Generator {
	if scanFailed {
		return New(SafeStartValue)
	}
	if maxOrderID == 0 {
		return New(1)
	}
	return New(maxOrderID + 1)
}

// Next returns the next unique, strictly increasing order id (P4).
func (g *Generator) Next() uint64 {
	return atomic.AddUint64(&g.counter, 1)
}
