package registry

import "sync/atomic"

// IDAllocator hands out RequestIds as a monotonically increasing 64-bit
// counter starting at 0 (spec §3/§4.H). Values are never reclaimed and
// every outbound activation or can-you-answer probe consumes a fresh one.
type IDAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator returns an allocator whose first Next() call returns 0.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next unused RequestId.
func (a *IDAllocator) Next() uint64 {
	return a.next.Add(1) - 1
}
