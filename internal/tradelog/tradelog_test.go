package tradelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crossx-exchange/crossx/internal/domain"
)

func trade(orderID uint64, side domain.Side, kind domain.Kind, size, price int64, ts time.Time) domain.Trade {
	return domain.Trade{OrderID: orderID, Side: side, Kind: kind, Size: size, Price: price, Timestamp: ts}
}

func TestOpenCreatesEmptyLogWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "trades.json"), 5, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, l.LoadAll())
	assert.Equal(t, uint64(0), l.MaxOrderID())
}

func TestAppendPersistsBothHalvesAndReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.json")

	l, err := Open(path, 5, zap.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	l.Append(
		trade(1, domain.Bid, domain.Limit, 10, 100, now),
		trade(2, domain.Ask, domain.Limit, 10, 100, now),
	)

	records := l.LoadAll()
	assert.Len(t, records, 2)
	assert.Equal(t, "bid", records[0].Type)
	assert.Equal(t, "ask", records[1].Type)

	reopened, err := Open(path, 5, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, reopened.LoadAll(), 2)
}

func TestMaxOrderIDTracksHighestSeen(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "trades.json"), 5, zap.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	l.Append(trade(3, domain.Bid, domain.Limit, 1, 1, now), trade(7, domain.Ask, domain.Limit, 1, 1, now))
	l.Append(trade(2, domain.Bid, domain.Limit, 1, 1, now), trade(5, domain.Ask, domain.Limit, 1, 1, now))

	assert.Equal(t, uint64(7), l.MaxOrderID())
}

func TestOnFlushFailureCallbackFiresOnBadPath(t *testing.T) {
	// A path under a file (not a directory) makes the rename/write fail,
	// exercising the flush-failure callback without mocking the filesystem.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	badPath := filepath.Join(blocker, "trades.json")

	l := &Log{path: badPath, logger: zap.NewNop()}
	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"})

	called := false
	l.OnFlushFailure(func() { called = true })

	now := time.Now().UTC()
	l.Append(trade(1, domain.Bid, domain.Limit, 1, 1, now), trade(2, domain.Ask, domain.Limit, 1, 1, now))

	assert.True(t, called)
}
