package admission

import (
	"fmt"
	"sync/atomic"
)

// Gate is a non-blocking counting limiter. It bounds how many uploads may be
// outstanding at once; callers that cannot acquire a slot are turned away
// immediately rather than queued.
type Gate struct {
	capacity    int64
	outstanding atomic.Int64
}

// NewGate creates a gate admitting at most capacity concurrent holders.
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		panic(fmt.Sprintf("admission: capacity must be positive, got %d", capacity))
	}

	return &Gate{capacity: int64(capacity)}
}

// TryAcquire takes a slot if one is free. It never blocks and has no side
// effect when it returns false.
func (g *Gate) TryAcquire() bool {
	for {
		cur := g.outstanding.Load()
		if cur >= g.capacity {
			return false
		}

		if g.outstanding.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns a slot. Releasing a slot that was never acquired panics.
func (g *Gate) Release() {
	for {
		cur := g.outstanding.Load()
		if cur <= 0 {
			panic("admission: release without matching acquire")
		}

		if g.outstanding.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Outstanding returns the number of slots currently held.
func (g *Gate) Outstanding() int {
	return int(g.outstanding.Load())
}

// Capacity returns the maximum number of slots.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}
