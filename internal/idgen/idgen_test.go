package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsStrictlyIncreasing(t *testing.T) {
	g := New(1)
	var prev uint64
	for i := 0; i < 100; i++ {
		id := g.Next()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestNextIsUniqueUnderConcurrency(t *testing.T) {
	g := New(1)
	const n = 1000
	ids := make(chan uint64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestRecoverFromEmptyLog(t *testing.T) {
	g := Recover(0, false)
	assert.Equal(t, uint64(1), g.Next())
}

func TestRecoverFromExistingLog(t *testing.T) {
	g := Recover(41, false)
	assert.Equal(t, uint64(42), g.Next())
}

func TestRecoverFromFailedScanUsesSafeStart(t *testing.T) {
	g := Recover(0, true)
	assert.Equal(t, uint64(SafeStartValue), g.Next())
}
