// Package matching implements MatchingEngine: the only mutator of
// PriceBook, draining crossing liquidity for both limit insertions and
// market orders, and emitting trade events (spec.md §4.2). A single
// matchingLock (spec.md §5) serializes every engine operation; callers
// (internal/orderservice) are expected to hold Engine's lock for the
// entire triggering + callback sequence so one external trade event is
// fully applied before the next request is processed.
package matching

import (
	"sync"
	"time"

	"github.com/crossx-exchange/crossx/internal/book"
	"github.com/crossx-exchange/crossx/internal/domain"
)

// OnTrade is the callback invoked once per execution, receiving the full
// pair of half-records plus counterparty identity in a single
// domain.Execution value. It must be synchronous: the whole point of
// running it under matchingLock is that one trade's effects (price
// update, stop re-activation, log append, notification enqueue) are
// atomic (spec.md §4.5, §9 "Callback interface between engine and
// facade").
type OnTrade func(domain.Execution)

// Engine owns a single instrument's PriceBook and serializes all access
// to it (and to anything else a caller chooses to mutate inside OnTrade,
// such as StopOrderStore) behind one mutex.
type Engine struct {
	mu   sync.Mutex
	book *book.PriceBook
}

// New creates an Engine over the given PriceBook.
func New(b *book.PriceBook) *Engine {
	return &Engine{book: b}
}

// Lock acquires the matching lock. Callers that need to perform several
// engine operations (and StopOrderStore activation) as a single atomic
// "matching session" (spec.md §5) should Lock/defer Unlock once and then
// call the unlocked *Locked variants below; MatchLimits/ExecuteMarket take
// the lock themselves for single-operation callers.
func (e *Engine) Lock()   { e.mu.Lock() }
func (e *Engine) Unlock() { e.mu.Unlock() }

// MatchLimits acquires the lock and runs matchLimitsLocked.
func (e *Engine) MatchLimits(onTrade OnTrade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matchLimitsLocked(onTrade)
}

// MatchLimitsLocked runs matchLimitsLocked without acquiring the lock, for
// callers (internal/orderservice) that already hold the lock for an entire
// insert-then-match session (spec.md §5).
func (e *Engine) MatchLimitsLocked(onTrade OnTrade) {
	e.matchLimitsLocked(onTrade)
}

// Book exposes the underlying PriceBook for callers that hold the lock and
// need to insert a resting order before matching (internal/orderservice).
func (e *Engine) Book() *book.PriceBook { return e.book }

// matchLimitsLocked is invoked after every limit insertion (spec.md §4.2).
// While bestBid >= bestAsk and both levels are non-empty, it takes the
// head of each FIFO, trades min(remainingBid, remainingAsk) at
// executionPrice = bestAsk (the resting-ask-price convention; see
// spec.md §4.2 and §9's open question — preserved exactly as specified),
// and pops any order whose remaining size reached zero.
func (e *Engine) matchLimitsLocked(onTrade OnTrade) {
	for {
		bestBid, bidOK := e.book.BestBid()
		bestAsk, askOK := e.book.BestAsk()
		if !bidOK || !askOK || bestBid < bestAsk {
			return
		}

		bidOrder := e.book.HeadBid()
		askOrder := e.book.HeadAsk()
		if bidOrder == nil || askOrder == nil {
			return
		}

		tradeSize := min64(bidOrder.RemainingSize(), askOrder.RemainingSize())
		executionPrice := bestAsk

		bidOrder.Order.RemainingSize -= tradeSize
		askOrder.Order.RemainingSize -= tradeSize

		if onTrade != nil {
			ts := time.Now().UTC()
			onTrade(domain.Execution{
				BidHalf:       domain.Trade{OrderID: bidOrder.OrderID(), Owner: bidOrder.Owner(), Side: domain.Bid, Kind: bidOrder.Order.Kind, Size: tradeSize, Price: executionPrice, Timestamp: ts},
				AskHalf:       domain.Trade{OrderID: askOrder.OrderID(), Owner: askOrder.Owner(), Side: domain.Ask, Kind: askOrder.Order.Kind, Size: tradeSize, Price: executionPrice, Timestamp: ts},
				BidOwner:      bidOrder.Owner(),
				AskOwner:      askOrder.Owner(),
				ExecutionTime: ts,
			})
		}

		if bidOrder.RemainingSize() == 0 {
			e.book.PopFilled(true)
		}
		if askOrder.RemainingSize() == 0 {
			e.book.PopFilled(false)
		}
	}
}

// ExecuteMarket acquires the lock and runs executeMarketLocked.
func (e *Engine) ExecuteMarket(order *domain.Order, onTrade OnTrade) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executeMarketLocked(order, onTrade)
}

// ExecuteMarketLocked runs executeMarketLocked without acquiring the
// lock, for callers (StopOrderStore.ActivateAgainst) that are invoked
// from inside onTrade while the lock is already held by this Engine.
func (e *Engine) ExecuteMarketLocked(order *domain.Order, onTrade OnTrade) bool {
	return e.executeMarketLocked(order, onTrade)
}

// executeMarketLocked sweeps the contra book in optimal price order,
// walking each level's FIFO head-to-tail, until the market order's
// remaining size reaches zero or the contra book is exhausted (spec.md
// §4.2). The market order is never inserted into the book; a partial
// unfilled remainder is simply left on the order (spec.md §9 open
// question, preserved as observed). MatchLimits is NOT re-run afterward
// since the market order never rests.
func (e *Engine) executeMarketLocked(order *domain.Order, onTrade OnTrade) bool {
	isBuy := order.Side == domain.Bid

	sweep := func(lvl *book.Level) bool {
		for len(lvl.Orders) > 0 && order.RemainingSize > 0 {
			resting := lvl.Orders[0]
			tradeSize := min64(order.RemainingSize, resting.RemainingSize())

			order.RemainingSize -= tradeSize
			resting.Order.RemainingSize -= tradeSize

			var bidOrderID, askOrderID uint64
			var bidOwner, askOwner string
			var bidKind, askKind domain.Kind
			if isBuy {
				bidOrderID, bidOwner, bidKind = order.OrderID, order.Owner, order.Kind
				askOrderID, askOwner, askKind = resting.OrderID(), resting.Owner(), resting.Order.Kind
			} else {
				bidOrderID, bidOwner, bidKind = resting.OrderID(), resting.Owner(), resting.Order.Kind
				askOrderID, askOwner, askKind = order.OrderID, order.Owner, order.Kind
			}

			if onTrade != nil {
				ts := time.Now().UTC()
				onTrade(domain.Execution{
					BidHalf:       domain.Trade{OrderID: bidOrderID, Owner: bidOwner, Side: domain.Bid, Kind: bidKind, Size: tradeSize, Price: resting.LimitPrice(), Timestamp: ts},
					AskHalf:       domain.Trade{OrderID: askOrderID, Owner: askOwner, Side: domain.Ask, Kind: askKind, Size: tradeSize, Price: resting.LimitPrice(), Timestamp: ts},
					BidOwner:      bidOwner,
					AskOwner:      askOwner,
					ExecutionTime: ts,
				})
			}

			if resting.RemainingSize() == 0 {
				e.book.ForgetOrder(resting.OrderID())
				lvl.Orders = lvl.Orders[1:]
			}
		}
		// bidSide argument only matters for picking the right tree; the
		// sweep direction (isBuy) tells us which side we are consuming.
		e.book.DeleteLevelIfEmpty(!isBuy, lvl)
		return order.RemainingSize > 0
	}

	if isBuy {
		e.book.WalkAsksAscending(sweep)
	} else {
		e.book.WalkBidsDescending(sweep)
	}

	return order.RemainingSize == 0
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
