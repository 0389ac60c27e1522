// Package market implements MarketState: the process-wide last-traded
// price and the threshold-alert registry (spec.md §3, §4.5 step 3). The
// price itself is a single atomic word — reads outside the matching lock
// are allowed and merely advisory (spec.md §5); the threshold map uses its
// own mutex since it is mutated from registerPriceAlert (facade, no lock
// held) as well as from onTrade (under matchingLock).
package market

import (
	"sync"
	"sync/atomic"
)

// DefaultPrice is the initial last-traded price before any trade occurs
// (spec.md §3: "initial default 58 000 000").
const DefaultPrice int64 = 58_000_000

// Threshold is a one-shot, user-registered price alert (spec.md §3).
type Threshold struct {
	User      string
	Price     int64
}

// State holds the last-traded price and the set of armed thresholds.
type State struct {
	price int64 // atomic

	mu         sync.Mutex
	thresholds map[string]map[int64]struct{} // user -> set of threshold prices
}

// New creates a State at DefaultPrice with no armed thresholds.
func New() *State {
	s := &State{thresholds: make(map[string]map[int64]struct{})}
	atomic.StoreInt64(&s.price, DefaultPrice)
	return s
}

// Price returns the last-traded price. Safe to call without holding the
// matching lock; may be stale by at most one trade (spec.md §5).
func (s *State) Price() int64 {
	return atomic.LoadInt64(&s.price)
}

// SetPrice atomically updates the last-traded price (spec.md I6: "After a
// trade at price P, MarketPrice = P"). Must be called while holding the
// matching lock, as part of the onTrade callback.
func (s *State) SetPrice(p int64) {
	atomic.StoreInt64(&s.price, p)
}

// RegisterThreshold arms a one-shot alert for user at price. Returns false
// if price is not strictly above the current market price (spec.md §4.4:
// "validates threshold > currentMarketPrice").
func (s *State) RegisterThreshold(user string, price int64) bool {
	if price <= s.Price() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.thresholds[user]
	if !ok {
		set = make(map[int64]struct{})
		s.thresholds[user] = set
	}
	set[price] = struct{}{}
	return true
}

// FireReached removes and returns every (user, threshold) pair with
// threshold <= executionPrice — one-shot semantics (spec.md P5): a
// threshold fires exactly once, on the first qualifying trade.
func (s *State) FireReached(executionPrice int64) []Threshold {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []Threshold
	for user, set := range s.thresholds {
		for price := range set {
			if price <= executionPrice {
				fired = append(fired, Threshold{User: user, Price: price})
				delete(set, price)
			}
		}
		if len(set) == 0 {
			delete(s.thresholds, user)
		}
	}
	return fired
}

// ClearUser removes every armed threshold for user (spec.md §3: "removed
// ... on user logout").
func (s *State) ClearUser(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.thresholds, user)
}
