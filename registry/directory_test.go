package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDirectoryAttachUniqueness verifies spec §8 Property 1: for all
// sequences of connect(id) messages, exactly the first succeeds for a
// given id until a matching close(id) has been accepted.
func TestDirectoryAttachUniqueness(t *testing.T) {
	d := NewDirectory()

	assert.True(t, d.Attach("com.example.a"))
	assert.False(t, d.Attach("com.example.a"), "a second attach for the same id must fail")

	assert.True(t, d.Detach("com.example.a"))
	assert.True(t, d.Attach("com.example.a"), "attach succeeds again after a matching detach")
}

func TestDirectoryContains(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.Contains("com.example.a"))
	d.Attach("com.example.a")
	assert.True(t, d.Contains("com.example.a"))
	d.Detach("com.example.a")
	assert.False(t, d.Contains("com.example.a"))
}

func TestDirectoryDetachAbsentReportsFalse(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.Detach("com.example.missing"))
}

func TestDirectoryConcurrentAttachExactlyOneWins(t *testing.T) {
	d := NewDirectory()
	const attempts = 50

	var wg sync.WaitGroup
	results := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Attach("com.example.contended")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent attach for the same id may succeed")
}
