// Package orderservice implements OrderService: the facade spec.md §4.4
// names as the single entry point for every order operation. It wires
// together PriceBook, MatchingEngine, StopOrderStore, OrderRegistry,
// IdGenerator, MarketState, TradeLog and the notification fanout, and is
// the only place that acquires the engine's matchingLock for an entire
// insert-then-match (or cancel) session (spec.md §5).
package orderservice

import (
	"time"

	"go.uber.org/zap"

	"github.com/crossx-exchange/crossx/internal/analytics"
	"github.com/crossx-exchange/crossx/internal/book"
	"github.com/crossx-exchange/crossx/internal/domain"
	"github.com/crossx-exchange/crossx/internal/idgen"
	"github.com/crossx-exchange/crossx/internal/market"
	"github.com/crossx-exchange/crossx/internal/matching"
	"github.com/crossx-exchange/crossx/internal/metrics"
	"github.com/crossx-exchange/crossx/internal/notify"
	"github.com/crossx-exchange/crossx/internal/registry"
	"github.com/crossx-exchange/crossx/internal/stops"
	"github.com/crossx-exchange/crossx/internal/tradelog"
)

// Response codes, stable across operations (spec.md §6/§7).
const (
	CodeOK                  = 100
	CodeNotAuthorizedOrFail = 101
	CodeDuplicateOrNotFound = 102
	CodeMalformed           = 103
	CodeAlreadyLoggedIn     = 104
	CodeOther               = 105
)

// InvalidOrderID is returned by every insert* operation on validation or
// business-rule failure (spec.md §4.4: "orderId or -1").
const InvalidOrderID int64 = -1

// Service is the OrderService facade.
type Service struct {
	book      *book.PriceBook
	engine    *matching.Engine
	stopStore *stops.Store
	registry  *registry.Registry
	ids       *idgen.Generator
	market    *market.State
	log       *tradelog.Log
	fanout    *notify.Fanout
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New assembles a Service from its already-constructed components. Engine
// must have been created over the same book passed here. m may be nil
// (tests, or a deployment that skips the admin/ops HTTP surface).
func New(b *book.PriceBook, engine *matching.Engine, stopStore *stops.Store, reg *registry.Registry, ids *idgen.Generator, mkt *market.State, log *tradelog.Log, fanout *notify.Fanout, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		book: b, engine: engine, stopStore: stopStore, registry: reg,
		ids: ids, market: mkt, log: log, fanout: fanout, metrics: m, logger: logger,
	}
}

func (s *Service) observeBookDepth() {
	if s.metrics == nil {
		return
	}
	s.metrics.BidDepth.Set(float64(s.book.TotalLiquidity(true)))
	s.metrics.AskDepth.Set(float64(s.book.TotalLiquidity(false)))
}

// onTrade builds the single closure consumed by both engine entry points
// (spec.md §4.5), closing over `s` so every call sees a consistent view of
// MarketState/StopOrderStore/TradeLog/fanout. Must only be invoked while
// s.engine's lock is held by the caller. The engine hands it a complete
// domain.Execution, so this method no longer needs to re-derive order
// kind from the registry the way a bare orderId/owner callback would.
func (s *Service) onTrade(ex domain.Execution) {
	executionPrice := ex.BidHalf.Price
	oldPrice := s.market.Price()
	s.market.SetPrice(executionPrice)

	bidOrder := s.registry.Get(ex.BidHalf.OrderID)
	askOrder := s.registry.Get(ex.AskHalf.OrderID)

	s.fanout.NotifyFill(ex.BidHalf.OrderID, ex.AskHalf.OrderID, ex.BidOwner, ex.AskOwner, ex.BidHalf.Kind, ex.AskHalf.Kind, ex.BidHalf.Size, executionPrice, ex.ExecutionTime)
	if s.metrics != nil {
		s.metrics.TradesTotal.Inc()
	}

	if oldPrice != executionPrice {
		fired := s.market.FireReached(executionPrice)
		if len(fired) > 0 {
			alerts := make([]notify.ThresholdFire, len(fired))
			for i, t := range fired {
				alerts[i] = notify.ThresholdFire{User: t.User, ThresholdPrice: t.Price, CurrentPrice: executionPrice}
			}
			s.fanout.NotifyThresholds(alerts)
		}
	}

	s.stopStore.ActivateAgainst(s.market, s.engine, s.onTrade)

	s.log.Append(ex.BidHalf, ex.AskHalf)

	s.forgetIfDone(bidOrder)
	s.forgetIfDone(askOrder)
}

// forgetIfDone drops a fully-executed order from OrderRegistry (I7): once
// RemainingSize reaches zero it can never be matched or cancelled again.
func (s *Service) forgetIfDone(o *domain.Order) {
	if o != nil && !o.IsLive() {
		s.registry.Remove(o.OrderID)
	}
}

// InsertLimit validates and inserts a resting limit order, then runs the
// matching loop, all under one matchingLock acquisition (spec.md §4.4).
func (s *Service) InsertLimit(user string, side domain.Side, size, price int64) int64 {
	if !validSide(side) || size <= 0 || price <= 0 {
		return InvalidOrderID
	}

	order := &domain.Order{
		OrderID: s.ids.Next(), Owner: user, Side: side, Kind: domain.Limit,
		Size: size, RemainingSize: size, LimitPrice: price, CreatedAt: time.Now().UTC(),
	}
	s.registry.Put(order)

	s.engine.Lock()
	defer s.engine.Unlock()

	if side == domain.Bid {
		s.book.AddBid(order)
	} else {
		s.book.AddAsk(order)
	}
	s.engine.MatchLimitsLocked(s.onTrade)
	s.observeBookDepth()

	return int64(order.OrderID)
}

// InsertMarket validates and immediately sweeps the contra book (spec.md
// §4.4). The order id is returned regardless of fill level, including a
// fully-unfilled remainder (spec.md §9 open question, preserved).
func (s *Service) InsertMarket(user string, side domain.Side, size int64) int64 {
	if !validSide(side) || size <= 0 {
		return InvalidOrderID
	}

	order := &domain.Order{
		OrderID: s.ids.Next(), Owner: user, Side: side, Kind: domain.Market,
		Size: size, RemainingSize: size, CreatedAt: time.Now().UTC(),
	}
	s.registry.Put(order)

	s.engine.Lock()
	defer s.engine.Unlock()

	s.engine.ExecuteMarketLocked(order, s.onTrade)
	s.observeBookDepth()

	if !order.IsLive() {
		s.registry.Remove(order.OrderID)
	}
	return int64(order.OrderID)
}

// InsertStop validates (including the stop-price rule) and arms a stop
// order (spec.md §4.4).
func (s *Service) InsertStop(user string, side domain.Side, size, stopPrice int64) int64 {
	if !validSide(side) || size <= 0 || stopPrice <= 0 {
		return InvalidOrderID
	}

	order := &domain.Order{
		OrderID: s.ids.Next(), Owner: user, Side: side, Kind: domain.Stop,
		Size: size, RemainingSize: size, StopPrice: stopPrice, CreatedAt: time.Now().UTC(),
	}

	s.engine.Lock()
	defer s.engine.Unlock()

	if err := s.stopStore.Add(order, s.market.Price()); err != nil {
		return InvalidOrderID
	}
	s.registry.Put(order)
	return int64(order.OrderID)
}

// Cancel removes a resting limit or armed stop order (spec.md §4.4).
// Market orders are never cancellable: once submitted they have either
// fully executed or left an uncancellable remainder (spec.md §9 open
// question, preserved as observed).
func (s *Service) Cancel(user string, orderID uint64) int {
	s.engine.Lock()
	defer s.engine.Unlock()

	order := s.registry.Get(orderID)
	if order == nil || order.Owner != user || !order.IsLive() {
		return CodeNotAuthorizedOrFail
	}

	switch order.Kind {
	case domain.Limit:
		if !s.book.Remove(order.Side == domain.Bid, order.LimitPrice, orderID) {
			return CodeNotAuthorizedOrFail
		}
	case domain.Stop:
		if !s.stopStore.Remove(orderID) {
			return CodeNotAuthorizedOrFail
		}
	default:
		return CodeNotAuthorizedOrFail
	}

	s.registry.Remove(orderID)
	return CodeOK
}

// GetPriceHistory aggregates the persisted trade log (spec.md §4.7).
func (s *Service) GetPriceHistory(mmYYYY string) (*analytics.History, error) {
	records := s.log.LoadAll()
	return analytics.Aggregate(mmYYYY, records)
}

// RegisterPriceAlert arms a one-shot threshold alert (spec.md §4.4).
func (s *Service) RegisterPriceAlert(user string, threshold int64) bool {
	return s.market.RegisterThreshold(user, threshold)
}

func validSide(side domain.Side) bool {
	return side == domain.Bid || side == domain.Ask
}
