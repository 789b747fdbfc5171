package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDAllocatorStartsAtZero(t *testing.T) {
	a := NewIDAllocator()
	assert.Equal(t, uint64(0), a.Next())
	assert.Equal(t, uint64(1), a.Next())
	assert.Equal(t, uint64(2), a.Next())
}

func TestIDAllocatorNeverReusesUnderConcurrency(t *testing.T) {
	a := NewIDAllocator()
	const n = 1000

	var wg sync.WaitGroup
	out := make(chan uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- a.Next()
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[uint64]struct{}, n)
	for id := range out {
		_, dup := seen[id]
		assert.False(t, dup, "id %d allocated more than once", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
}
