package registry

import "sync"

// PendingTable is a keyed single-shot channel map, RequestId -> chan T
// (spec §4.B, component B). Two independent instances exist: one for
// can-you-answer confidence replies (T = float32) and one for activation
// replies (T = ActivationReply). Each entry also records the id of the
// skill the probe/activation was sent to, so that DetachSkill can sweep
// orphaned entries on skill close (spec §9's recommended orphan policy,
// adopted — see DESIGN.md).
//
// insert is idempotent-by-absence: inserting a duplicate id is a
// programmer error, prevented upstream by the id allocator never reusing
// values. take atomically removes and returns the entry's channel. The
// critical section covers only the map operation, never a channel send or
// receive.
type PendingTable[T any] struct {
	mu      sync.Mutex
	entries map[uint64]pendingEntry[T]
}

type pendingEntry[T any] struct {
	skillID string
	ch      chan T
}

// NewPendingTable returns an empty pending table.
func NewPendingTable[T any]() *PendingTable[T] {
	return &PendingTable[T]{entries: make(map[uint64]pendingEntry[T])}
}

// Insert records a fresh single-shot channel for id, owned by skillID, and
// returns it so the caller can await a single value on it. Panics if id is
// already present — callers must only ever pass ids freshly produced by
// IDAllocator.Next.
func (t *PendingTable[T]) Insert(id uint64, skillID string) <-chan T {
	ch := make(chan T, 1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[id]; exists {
		panic("registry: duplicate pending id inserted")
	}
	t.entries[id] = pendingEntry[T]{skillID: skillID, ch: ch}
	return ch
}

// Take atomically removes and returns the channel registered for id. The
// second return value is false if id is absent (spec §7's
// UnknownRequestId / §8 Property 6).
func (t *PendingTable[T]) Take(id uint64) (chan T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	return e.ch, true
}

// DetachSkill sweeps every entry owned by skillID, closing its channel so
// any awaiting receiver unblocks with the zero value, and returns the ids
// removed. This implements the RECOMMENDED orphan-sweep policy from spec
// §9 rather than leaving those entries to dangle until process exit.
func (t *PendingTable[T]) DetachSkill(skillID string) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var swept []uint64
	for id, e := range t.entries {
		if e.skillID == skillID {
			close(e.ch)
			delete(t.entries, id)
			swept = append(swept, id)
		}
	}
	return swept
}

// Len reports the number of outstanding entries. Intended for tests and
// diagnostics.
func (t *PendingTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
