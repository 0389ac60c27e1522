package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load is a process-wide singleton (once.Do), so only the first call in
// this test binary actually runs; every test here shares that one result.
func TestLoadAppliesDefaultsWhenNoConfigFilePresent(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.TCP.Port)
	assert.Equal(t, 64, cfg.TCP.WorkerPoolSize)
	assert.Equal(t, 8080, cfg.Admin.Port)
	assert.Equal(t, "/ws/fills", cfg.Notify.UnicastPath)
	assert.Equal(t, "crossx.price-threshold", cfg.Notify.GroupSubject)
	assert.Equal(t, 10, cfg.RateLimit.LoginPerMinute)
	assert.Equal(t, 120, cfg.RateLimit.OrdersPerMinute)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadIsIdempotentAcrossCalls(t *testing.T) {
	first, err := Load(t.TempDir())
	require.NoError(t, err)
	second, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Same(t, first, second, "the singleton must return the same instance regardless of arguments")
}
