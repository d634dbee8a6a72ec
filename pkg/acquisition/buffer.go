package acquisition

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrCapacity is returned for a buffer that cannot be split into two halves.
var ErrCapacity = errors.New("buffer capacity must be even and at least 2")

// DoubleBuffer is a circular buffer of sample pairs filled by a single
// producer and drained half at a time by a single consumer. It mirrors
// circular DMA: Push never blocks and never checks whether the consumer has
// drained the half it is about to overwrite.
type DoubleBuffer struct {
	pairs []RawSamplePair
	half  int
	pos   int // producer only

	filled [2]atomic.Bool
	lapped atomic.Uint64
	pushed atomic.Uint64
}

// NewDoubleBuffer allocates a buffer holding capacity pairs.
func NewDoubleBuffer(capacity int) (*DoubleBuffer, error) {
	if capacity < 2 || capacity%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	return &DoubleBuffer{
		pairs: make([]RawSamplePair, capacity),
		half:  capacity / 2,
	}, nil
}

// Cap returns the capacity in pairs.
func (b *DoubleBuffer) Cap() int {
	return len(b.pairs)
}

// HalfLen returns the number of pairs in one half.
func (b *DoubleBuffer) HalfLen() int {
	return b.half
}

// Push stores one pair and raises the half signal when a half completes.
func (b *DoubleBuffer) Push(p RawSamplePair) {
	b.pairs[b.pos] = p
	b.pos++
	b.pushed.Add(1)

	switch b.pos {
	case b.half:
		b.signal(First)
	case len(b.pairs):
		b.pos = 0
		b.signal(Second)
	}
}

// PushAll pushes pairs in order.
func (b *DoubleBuffer) PushAll(pairs []RawSamplePair) {
	for _, p := range pairs {
		b.Push(p)
	}
}

func (b *DoubleBuffer) signal(h Half) {
	// A signal still raised means the consumer never cleared the previous fill.
	if b.filled[h].Swap(true) {
		b.lapped.Add(1)
	}
}

// Filled reports whether half h has been completed and not yet cleared.
func (b *DoubleBuffer) Filled(h Half) bool {
	return b.filled[h].Load()
}

// Clear lowers the signal of half h.
func (b *DoubleBuffer) Clear(h Half) {
	b.filled[h].Store(false)
}

// Samples returns a view of half h. The view aliases the buffer.
func (b *DoubleBuffer) Samples(h Half) []RawSamplePair {
	start := int(h) * b.half
	return b.pairs[start : start+b.half]
}

// Lapped returns how many times a half was completed while its previous
// fill was still unclaimed.
func (b *DoubleBuffer) Lapped() uint64 {
	return b.lapped.Load()
}

// Pushed returns the total number of pairs produced.
func (b *DoubleBuffer) Pushed() uint64 {
	return b.pushed.Load()
}
