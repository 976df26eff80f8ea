package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/undodb/internal/history"
)

var _ history.ActionIDGenerator = (*SequentialIDs)(nil)

func TestSequentialIDs_Sequence(t *testing.T) {
	ids := NewSequentialIDs("undo")
	assert.Equal(t, int64(0), ids.Issued())

	assert.Equal(t, "undo-1", ids.Generate())
	assert.Equal(t, "undo-2", ids.Generate())
	assert.Equal(t, "undo-3", ids.Generate())
	assert.Equal(t, int64(3), ids.Issued())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "action-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_Reset(t *testing.T) {
	ids := NewSequentialIDs("a")
	ids.Generate()
	ids.Generate()

	ids.Reset()
	assert.Equal(t, int64(0), ids.Issued())
	assert.Equal(t, "a-1", ids.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	ids := NewSequentialIDs("c")
	const goroutines = 50
	const perGoroutine = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool, goroutines*perGoroutine)
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := ids.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perGoroutine, "every ID must be unique")
	assert.Equal(t, int64(goroutines*perGoroutine), ids.Issued())
}
