package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyBarrierWaitBlocksUntilOpen(t *testing.T) {
	b := NewReadyBarrier()
	assert.False(t, b.IsReady())

	done := make(chan struct{})
	go func() {
		require.NoError(t, b.Wait(context.Background()))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Open was called")
	case <-time.After(50 * time.Millisecond):
	}

	b.Open()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Open")
	}
	assert.True(t, b.IsReady())
}

func TestReadyBarrierOpenIsIdempotent(t *testing.T) {
	b := NewReadyBarrier()
	assert.NotPanics(t, func() {
		b.Open()
		b.Open()
	})
	assert.True(t, b.IsReady())
}

func TestReadyBarrierWaitRespectsContextCancellation(t *testing.T) {
	b := NewReadyBarrier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadyBarrierPollUntilReady(t *testing.T) {
	b := NewReadyBarrier()
	go func() {
		time.Sleep(25 * time.Millisecond)
		b.Open()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.PollUntilReady(ctx))
	assert.True(t, b.IsReady())
}
