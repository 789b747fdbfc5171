package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ReadyBarrier ensures the outbound pusher (component E) does not issue any
// request before the inbound CoAP server (component D) has finished
// binding its socket (spec §4.E/§5, component G). It is closed exactly
// once, by the server, after a successful bind.
type ReadyBarrier struct {
	once    sync.Once
	ready   chan struct{}
	limiter *rate.Limiter
}

// NewReadyBarrier returns a barrier that is not yet open.
func NewReadyBarrier() *ReadyBarrier {
	return &ReadyBarrier{
		ready: make(chan struct{}),
		// Paces PollUntilReady for callers that cannot simply block on
		// the channel (e.g. a periodic health check); this is readiness
		// pacing, not message-traffic flow control, which is an explicit
		// Non-goal (spec §1).
		limiter: rate.NewLimiter(rate.Every(20*time.Millisecond), 1),
	}
}

// PollUntilReady blocks, re-checking IsReady at the limiter's pace, until
// the barrier opens or ctx is done. Equivalent to Wait but avoids parking
// a goroutine directly on the ready channel, for callers that prefer a
// poll loop (e.g. to also check other exit conditions each tick).
func (b *ReadyBarrier) PollUntilReady(ctx context.Context) error {
	for {
		if b.IsReady() {
			return nil
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}
}

// Open marks the barrier ready. Safe to call more than once; only the
// first call has any effect.
func (b *ReadyBarrier) Open() {
	b.once.Do(func() { close(b.ready) })
}

// Wait blocks until Open has been called or ctx is done.
func (b *ReadyBarrier) Wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsReady reports whether the barrier has been opened, without blocking.
func (b *ReadyBarrier) IsReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}
