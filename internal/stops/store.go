// Package stops implements StopOrderStore: the set of armed stop orders,
// consulted after every price change to activate stops as marketable
// orders (spec.md §4.3). It holds two disjoint sets (bid-stops, ask-stops)
// keyed by orderId. Activation runs inside the caller's matchingLock
// acquisition, iterating until no further stops trigger, rather than
// re-entering the lock (spec.md §9: "preferred; avoids re-entrant locks
// entirely").
package stops

import (
	"github.com/crossx-exchange/crossx/internal/apperrors"
	"github.com/crossx-exchange/crossx/internal/domain"
	"github.com/crossx-exchange/crossx/internal/market"
	"github.com/crossx-exchange/crossx/internal/matching"
)

// armed is one stop order waiting to trigger.
type armed struct {
	order     *domain.Order
	stopPrice int64
}

// Store holds armed bid-stops and ask-stops. Not safe for concurrent use
// on its own; callers must hold the matching engine's lock.
type Store struct {
	bidStops map[uint64]*armed
	askStops map[uint64]*armed
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		bidStops: make(map[uint64]*armed),
		askStops: make(map[uint64]*armed),
	}
}

// IsValidStopPrice reports whether stopPrice is on the correct side of
// currentPrice for the given order side (spec.md §4.3): a bid-stop
// requires stopPrice > currentPrice; an ask-stop requires
// stopPrice < currentPrice.
func IsValidStopPrice(side domain.Side, stopPrice, currentPrice int64) bool {
	if side == domain.Bid {
		return stopPrice > currentPrice
	}
	return stopPrice < currentPrice
}

// Add arms a stop order. Returns an error if the stop price is on the
// wrong side of the current market price.
func (s *Store) Add(order *domain.Order, currentPrice int64) error {
	if !IsValidStopPrice(order.Side, order.StopPrice, currentPrice) {
		return apperrors.New(apperrors.ErrInvalidStopPrice, "stop price is on the wrong side of the current market price")
	}
	a := &armed{order: order, stopPrice: order.StopPrice}
	if order.Side == domain.Bid {
		s.bidStops[order.OrderID] = a
	} else {
		s.askStops[order.OrderID] = a
	}
	return nil
}

// Remove disarms a stop order by id, used by cancel. Returns true if it
// was found and removed.
func (s *Store) Remove(orderID uint64) bool {
	if _, ok := s.bidStops[orderID]; ok {
		delete(s.bidStops, orderID)
		return true
	}
	if _, ok := s.askStops[orderID]; ok {
		delete(s.askStops, orderID)
		return true
	}
	return false
}

// ActivateAgainst selects every bid-stop with stopPrice <= the current
// market price and every ask-stop with stopPrice >= it, removes them from
// the store, and converts each to a market order via
// engine.ExecuteMarketLocked. Because activation itself can produce
// trades that move the price (via onTrade) and arm further activations,
// this loops — re-reading state.Price() each pass — until a full pass
// finds nothing left to trigger, all within the caller's single lock
// acquisition (spec.md §4.3 "Recursion safety"). A stop that is activated
// but not fully filled does not re-arm.
func (s *Store) ActivateAgainst(state *market.State, engine *matching.Engine, onTrade matching.OnTrade) {
	for {
		newPrice := state.Price()
		var triggered []*armed

		for id, a := range s.bidStops {
			if a.stopPrice <= newPrice {
				triggered = append(triggered, a)
				delete(s.bidStops, id)
			}
		}
		for id, a := range s.askStops {
			if a.stopPrice >= newPrice {
				triggered = append(triggered, a)
				delete(s.askStops, id)
			}
		}

		if len(triggered) == 0 {
			return
		}

		for _, a := range triggered {
			engine.ExecuteMarketLocked(a.order, onTrade)
		}

		// Loop again in case this pass's trades moved the price enough to
		// arm additional stops.
	}
}

// Len reports the number of armed bid-stops and ask-stops, for metrics.
func (s *Store) Len() (bidStops, askStops int) {
	return len(s.bidStops), len(s.askStops)
}
