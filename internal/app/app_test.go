package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossx-exchange/crossx/internal/config"
)

// The provider functions in app.go are plain, dependency-free constructors
// by design (see New's doc comment); these tests exercise them directly
// rather than booting the full fx graph, which would require a live
// Postgres and NATS instance.

func TestNewBookIsEmpty(t *testing.T) {
	b := newBook()
	_, ok := b.BestBid()
	assert.False(t, ok)
}

func TestNewEngineWrapsGivenBook(t *testing.T) {
	b := newBook()
	e := newEngine(b)
	require.NotNil(t, e)
}

func TestNewRegistryIsEmpty(t *testing.T) {
	r := newRegistry()
	require.NotNil(t, r)
	assert.Nil(t, r.Get(1))
}

func TestNewStopStoreIsEmpty(t *testing.T) {
	s := newStopStore()
	bidStops, askStops := s.Len()
	assert.Equal(t, 0, bidStops)
	assert.Equal(t, 0, askStops)
}

func TestNewMarketStateStartsAtDefaultPrice(t *testing.T) {
	m := newMarketState()
	assert.Equal(t, int64(58_000_000), m.Price())
}

func TestNewRateLimiterUsesConfiguredRates(t *testing.T) {
	cfg := &config.Config{}
	cfg.RateLimit.OrdersPerMinute = 5
	cfg.RateLimit.LoginPerMinute = 3

	l := newRateLimiter(cfg)
	require.NotNil(t, l)
	assert.False(t, l.IsLockedOut("alice"))
}

func TestNewPrometheusRegistryAndMetrics(t *testing.T) {
	reg := newPrometheusRegistry()
	m := newMetrics(reg)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewLoggerRespectsFormat(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Format = "console"
	cfg.Log.Level = "debug"

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
}
