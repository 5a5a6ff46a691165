// Package mempool implements the kernel's bounded scratch allocator. A
// Pool hands out regions from a fixed arena, from either end, and never
// takes them back; the two ends converge until they meet.
package mempool

// A Pool carves allocations from the arena [base, base+capacity).
//
// AllocLow advances the low cursor upward, AllocHigh moves the high
// cursor downward. The cursors never cross: a request that would make
// them cross fails and leaves the pool untouched.
type Pool struct {
	lowInitial  uint64
	lowCurrent  uint64
	highCurrent uint64
	highInitial uint64
}

// New creates a Pool over the arena starting at base with the given
// capacity in bytes.
func New(base, capacity uint64) *Pool {
	return &Pool{
		lowInitial:  base,
		lowCurrent:  base,
		highCurrent: base + capacity,
		highInitial: base + capacity,
	}
}

// Capacity returns the arena size in bytes.
func (p *Pool) Capacity() uint64 {
	return p.highInitial - p.lowInitial
}

// Available returns the bytes not yet handed out.
func (p *Pool) Available() uint64 {
	return p.highCurrent - p.lowCurrent
}

// Base returns the arena's starting address.
func (p *Pool) Base() uint64 {
	return p.lowInitial
}

// Limit returns the address one past the arena's end.
func (p *Pool) Limit() uint64 {
	return p.highInitial
}

// LowCursor returns the next address AllocLow would return.
func (p *Pool) LowCursor() uint64 {
	return p.lowCurrent
}

// HighCursor returns the address one past the next AllocHigh region.
func (p *Pool) HighCursor() uint64 {
	return p.highCurrent
}

// AllocLow takes size bytes from the bottom of the arena. On success it
// returns the region's starting address and size; on exhaustion it
// returns got == 0 and the pool is unchanged.
func (p *Pool) AllocLow(size uint64) (addr uint64, got uint64) {
	if size > p.Available() {
		return 0, 0
	}

	addr = p.lowCurrent
	p.lowCurrent += size

	return addr, size
}

// AllocHigh takes size bytes from the top of the arena. On success it
// returns the region's starting address and size; on exhaustion it
// returns got == 0 and the pool is unchanged.
func (p *Pool) AllocHigh(size uint64) (addr uint64, got uint64) {
	if size > p.Available() {
		return 0, 0
	}

	p.highCurrent -= size

	return p.highCurrent, size
}
