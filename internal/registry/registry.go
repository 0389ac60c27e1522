// Package registry implements OrderRegistry: the global identity map from
// orderId to live order record, authoritative for "does this order still
// exist and who owns it" (spec.md §4.3 / component list §2). It is a
// concurrent map safe for unsynchronized reads (spec.md §5), backed by a
// sync.RWMutex rather than sync.Map since writes (register/remove) and
// reads (lookup) are both common and the value is a pointer, matching the
// teacher's general map+RWMutex convention (e.g. internal/core/matching's
// OrderBook.orders).
package registry

import (
	"sync"

	"github.com/crossx-exchange/crossx/internal/domain"
)

// Registry is the process-wide order identity map.
type Registry struct {
	mu     sync.RWMutex
	orders map[uint64]*domain.Order
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{orders: make(map[uint64]*domain.Order)}
}

// Put registers a newly created order.
func (r *Registry) Put(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.OrderID] = o
}

// Get returns the order for orderID, or nil if it does not exist.
func (r *Registry) Get(orderID uint64) *domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orders[orderID]
}

// Remove deletes an order from the registry (I7: a cancelled or
// fully-executed order is never re-matched, so once it leaves both the
// registry and its holder — PriceBook or StopOrderStore — it is gone).
func (r *Registry) Remove(orderID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
}

// Len returns the number of live orders, mostly for diagnostics/metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
