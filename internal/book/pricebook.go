// Package book implements PriceBook: two ordered maps (bid and ask) from
// price level to a FIFO queue of resting limit orders, per spec.md §4.1.
// Price levels are kept in a btree.BTreeG (as in the fenrir-style exchange
// examples in the retrieval pack) rather than a heap, so the engine can
// walk the contra side in price order for market-order sweeps without
// repeated pop/reinsert churn, and best-price lookups are O(log n).
//
// All mutation is expected to happen under the caller's matchingLock
// (internal/matching); PriceBook itself does no locking of its own.
package book

import (
	"github.com/tidwall/btree"

	"github.com/crossx-exchange/crossx/internal/domain"
)

// LevelOrder is the FIFO entry stored at a price level: a pointer to the
// shared domain.Order, so time priority is simply slice order (I4:
// earlier-inserted orders are at the head) and RemainingSize has exactly
// one owner — the same *domain.Order held by OrderRegistry — rather than
// a second copy the engine and the registry could disagree on.
type LevelOrder struct {
	Order *domain.Order
}

func (lo *LevelOrder) OrderID() uint64       { return lo.Order.OrderID }
func (lo *LevelOrder) Owner() string         { return lo.Order.Owner }
func (lo *LevelOrder) LimitPrice() int64     { return lo.Order.LimitPrice }
func (lo *LevelOrder) RemainingSize() int64  { return lo.Order.RemainingSize }

// Level is one price level: a price and the FIFO of orders resting there.
type Level struct {
	Price  int64
	Orders []*LevelOrder
}

// PriceBook holds the bid and ask sides of a single instrument's book.
type PriceBook struct {
	bids *btree.BTreeG[*Level]
	asks *btree.BTreeG[*Level]

	// byOrder maps each resting order's id to its entry; add, PopFilled,
	// Remove and ForgetOrder keep it in step with the levels. Remove itself
	// finds an order by scanning its price level's FIFO.
	byOrder map[uint64]*LevelOrder
}

// New creates an empty PriceBook.
func New() *PriceBook {
	return &PriceBook{
		// Bids sorted highest-price-first so Min() is the best bid.
		bids: btree.NewBTreeG(func(a, b *Level) bool { return a.Price > b.Price }),
		// Asks sorted lowest-price-first so Min() is the best ask.
		asks: btree.NewBTreeG(func(a, b *Level) bool { return a.Price < b.Price }),
		byOrder: make(map[uint64]*LevelOrder),
	}
}

func (pb *PriceBook) sideTree(side int) *btree.BTreeG[*Level] {
	if side == 0 {
		return pb.bids
	}
	return pb.asks
}

const (
	sideBid = 0
	sideAsk = 1
)

func sideIndex(bid bool) int {
	if bid {
		return sideBid
	}
	return sideAsk
}

// AddBid appends a resting bid order to its price level, creating the
// level if it does not exist yet.
func (pb *PriceBook) AddBid(o *domain.Order) { pb.add(sideBid, o) }

// AddAsk appends a resting ask order to its price level, creating the
// level if it does not exist yet.
func (pb *PriceBook) AddAsk(o *domain.Order) { pb.add(sideAsk, o) }

func (pb *PriceBook) add(side int, o *domain.Order) {
	tree := pb.sideTree(side)
	lo := &LevelOrder{Order: o}
	key := &Level{Price: o.LimitPrice}
	if lvl, ok := tree.Get(key); ok {
		lvl.Orders = append(lvl.Orders, lo)
	} else {
		tree.Set(&Level{Price: o.LimitPrice, Orders: []*LevelOrder{lo}})
	}
	pb.byOrder[o.OrderID] = lo
}

// BestBid returns the highest resting bid price and true, or (0, false)
// if the bid side is empty.
func (pb *PriceBook) BestBid() (int64, bool) {
	lvl, ok := pb.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest resting ask price and true, or (0, false)
// if the ask side is empty.
func (pb *PriceBook) BestAsk() (int64, bool) {
	lvl, ok := pb.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.Price, true
}

// HeadBid returns the oldest resting order at the best bid price, or nil.
func (pb *PriceBook) HeadBid() *LevelOrder { return pb.head(sideBid) }

// HeadAsk returns the oldest resting order at the best ask price, or nil.
func (pb *PriceBook) HeadAsk() *LevelOrder { return pb.head(sideAsk) }

func (pb *PriceBook) head(side int) *LevelOrder {
	lvl, ok := pb.sideTree(side).Min()
	if !ok || len(lvl.Orders) == 0 {
		return nil
	}
	return lvl.Orders[0]
}

// PopFilled removes the head order of the given side's best level when it
// has been fully filled (RemainingSize == 0), dropping the level if it
// becomes empty. It is the engine's responsibility to decide when an
// order is filled; PriceBook just performs the structural removal.
func (pb *PriceBook) PopFilled(bidSide bool) {
	side := sideIndex(bidSide)
	tree := pb.sideTree(side)
	lvl, ok := tree.Min()
	if !ok || len(lvl.Orders) == 0 {
		return
	}
	head := lvl.Orders[0]
	delete(pb.byOrder, head.OrderID())
	lvl.Orders = lvl.Orders[1:]
	if len(lvl.Orders) == 0 {
		tree.Delete(lvl)
	}
}

// OrdersAt returns the FIFO slice resting at a given side/price, or nil.
func (pb *PriceBook) OrdersAt(bidSide bool, price int64) []*LevelOrder {
	tree := pb.sideTree(sideIndex(bidSide))
	if lvl, ok := tree.Get(&Level{Price: price}); ok {
		return lvl.Orders
	}
	return nil
}

// Remove deletes an order by identity, locating it by side and price. It
// returns true if the order was found and removed.
func (pb *PriceBook) Remove(bidSide bool, price int64, orderID uint64) bool {
	side := sideIndex(bidSide)
	tree := pb.sideTree(side)
	lvl, ok := tree.Get(&Level{Price: price})
	if !ok {
		return false
	}
	for i, o := range lvl.Orders {
		if o.OrderID() == orderID {
			lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
			delete(pb.byOrder, orderID)
			if len(lvl.Orders) == 0 {
				tree.Delete(lvl)
			}
			return true
		}
	}
	return false
}

// TotalLiquidity sums RemainingSize across every resting order on one side.
func (pb *PriceBook) TotalLiquidity(bidSide bool) int64 {
	var total int64
	pb.sideTree(sideIndex(bidSide)).Scan(func(lvl *Level) bool {
		for _, o := range lvl.Orders {
			total += o.RemainingSize()
		}
		return true
	})
	return total
}

// WalkAsksAscending visits every ask level from lowest to highest price,
// stopping early if fn returns false. Used by the engine's market-order
// sweep against the ask side.
func (pb *PriceBook) WalkAsksAscending(fn func(*Level) bool) {
	walkLevels(pb.asks, fn)
}

// WalkBidsDescending visits every bid level from highest to lowest price,
// stopping early if fn returns false. Used by the engine's market-order
// sweep against the bid side.
func (pb *PriceBook) WalkBidsDescending(fn func(*Level) bool) {
	walkLevels(pb.bids, fn)
}

// walkLevels collects the tree's levels first and calls fn only after the
// scan has returned, so fn may delete levels (DeleteLevelIfEmpty) or start
// a nested walk without mutating the tree inside its own Scan.
func walkLevels(tree *btree.BTreeG[*Level], fn func(*Level) bool) {
	var levels []*Level
	tree.Scan(func(lvl *Level) bool {
		levels = append(levels, lvl)
		return true
	})
	for _, lvl := range levels {
		if !fn(lvl) {
			return
		}
	}
}

// DeleteLevelIfEmpty removes a bid or ask level once its FIFO is drained,
// used by callers that mutate Level.Orders directly during a sweep.
func (pb *PriceBook) DeleteLevelIfEmpty(bidSide bool, lvl *Level) {
	if len(lvl.Orders) == 0 {
		pb.sideTree(sideIndex(bidSide)).Delete(lvl)
	}
}

// ForgetOrder removes bookkeeping for an order identity without touching
// the level slice (used after a sweep has already sliced the order out).
func (pb *PriceBook) ForgetOrder(orderID uint64) {
	delete(pb.byOrder, orderID)
}
