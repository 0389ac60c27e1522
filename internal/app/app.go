// Package app wires every component into a single go.uber.org/fx
// application, following the teacher's cmd/marketdata assembly style
// (fx.Supply/fx.Provide/fx.Invoke, an fx.Lifecycle hook per long-running
// component) rather than the teacher's alternative hand-rolled
// ServiceRegistry pattern (cmd/server), since fx is the idiom the rest of
// the corpus (cmd/gateway, cmd/marketdata) actually uses.
package app

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/crossx-exchange/crossx/internal/account"
	"github.com/crossx-exchange/crossx/internal/adminhttp"
	"github.com/crossx-exchange/crossx/internal/book"
	"github.com/crossx-exchange/crossx/internal/config"
	"github.com/crossx-exchange/crossx/internal/idgen"
	"github.com/crossx-exchange/crossx/internal/logging"
	"github.com/crossx-exchange/crossx/internal/market"
	"github.com/crossx-exchange/crossx/internal/matching"
	"github.com/crossx-exchange/crossx/internal/metrics"
	"github.com/crossx-exchange/crossx/internal/notify"
	"github.com/crossx-exchange/crossx/internal/orderservice"
	"github.com/crossx-exchange/crossx/internal/ratelimit"
	"github.com/crossx-exchange/crossx/internal/registry"
	"github.com/crossx-exchange/crossx/internal/server"
	"github.com/crossx-exchange/crossx/internal/stops"
	"github.com/crossx-exchange/crossx/internal/tradelog"
)

// Module assembles every crossx component for fx.New.
var Module = fx.Options(
	fx.Provide(
		newLogger,
		newBook,
		newEngine,
		newRegistry,
		newStopStore,
		newMarketState,
		newTradeLog,
		newCompactor,
		newIDGenerator,
		newUnicastHub,
		newBroadcastPublisher,
		newFanout,
		newPrometheusRegistry,
		newMetrics,
		newRateLimiter,
		newGormDB,
		newAccountService,
		newOrderService,
		newServer,
		newAdminServer,
	),
	fx.Invoke(
		registerCompactorHooks,
		registerTCPServerHooks,
		registerAdminServerHooks,
	),
)

// New builds the fx.App for cfg. Suppling cfg via fx.Supply keeps every
// provider function a plain, independently testable constructor.
func New(cfg *config.Config) *fx.App {
	return fx.New(fx.Supply(cfg), Module)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

func newBook() *book.PriceBook { return book.New() }

func newEngine(b *book.PriceBook) *matching.Engine { return matching.New(b) }

func newRegistry() *registry.Registry { return registry.New() }

func newStopStore() *stops.Store { return stops.New() }

func newMarketState() *market.State { return market.New() }

func newTradeLog(cfg *config.Config, logger *zap.Logger) (*tradelog.Log, error) {
	return tradelog.Open(cfg.TradeLog.Path, cfg.TradeLog.BreakerMaxFails, logger)
}

func newCompactor(cfg *config.Config, log *tradelog.Log, logger *zap.Logger) *tradelog.Compactor {
	return tradelog.NewCompactor(log, cfg.TradeLog.Path+".archive", cfg.TradeLog.CompactAfter, logger)
}

func newIDGenerator(log *tradelog.Log) *idgen.Generator {
	return idgen.Recover(log.MaxOrderID(), false)
}

func newUnicastHub(logger *zap.Logger) *notify.UnicastHub { return notify.NewUnicastHub(logger) }

func newBroadcastPublisher(cfg *config.Config, logger *zap.Logger) (*notify.BroadcastPublisher, error) {
	return notify.NewBroadcastPublisher(cfg.Notify.NATSUrl, cfg.Notify.GroupSubject, logger)
}

func newFanout(unicast *notify.UnicastHub, broadcast *notify.BroadcastPublisher, logger *zap.Logger) *notify.Fanout {
	return notify.New(unicast, broadcast, logger)
}

// newPrometheusRegistry returns the default registry, the one
// promhttp.Handler serves on internal/adminhttp's /metrics route.
func newPrometheusRegistry() *prometheus.Registry {
	return prometheus.DefaultRegisterer.(*prometheus.Registry)
}

func newMetrics(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) }

func newRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(int64(cfg.RateLimit.OrdersPerMinute), cfg.RateLimit.LoginPerMinute, 15*time.Minute)
}

func newGormDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
}

func newAccountService(db *gorm.DB, logger *zap.Logger) (*account.Service, error) {
	return account.New(db, logger)
}

func newOrderService(
	b *book.PriceBook, engine *matching.Engine, stopStore *stops.Store, reg *registry.Registry,
	ids *idgen.Generator, mkt *market.State, log *tradelog.Log, fanout *notify.Fanout,
	m *metrics.Metrics, logger *zap.Logger,
) *orderservice.Service {
	log.OnFlushFailure(func() { m.TradeLogFailures.Inc() })
	return orderservice.New(b, engine, stopStore, reg, ids, mkt, log, fanout, m, logger)
}

func newServer(cfg *config.Config, svc *orderservice.Service, acct *account.Service, limiter *ratelimit.Limiter, unicast *notify.UnicastHub, logger *zap.Logger) (*server.Server, error) {
	addr := ":" + strconv.Itoa(cfg.TCP.Port)
	return server.New(addr, cfg.TCP.WorkerPoolSize, cfg.TCP.SocketTimeout, svc, acct, limiter, unicast, cfg.Admin.JWTSecret, logger)
}

func newAdminServer(cfg *config.Config, svc *orderservice.Service, b *book.PriceBook, unicast *notify.UnicastHub, logger *zap.Logger) *adminhttp.Server {
	addr := ":" + strconv.Itoa(cfg.Admin.Port)
	return adminhttp.New(addr, cfg.Admin.JWTSecret, svc, b, unicast, cfg.Notify.UnicastPath, logger)
}

func registerCompactorHooks(lc fx.Lifecycle, c *tradelog.Compactor, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go c.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			return nil
		},
	})
}

func registerTCPServerHooks(lc fx.Lifecycle, s *server.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := s.Serve(); err != nil {
					logger.Info("tcp server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})
}

func registerAdminServerHooks(lc fx.Lifecycle, s *adminhttp.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Shutdown(5 * time.Second)
		},
	})
}

