package lpg

import (
	"context"
	"fmt"
	"sync"

	"github.com/micro-nova/lpg-go/internal/hardware"
)

// LUT is the shared brightness lookup table and its allocation bitmap.
// Each allocation is a contiguous run of entries; a bit is set iff its
// entry belongs to a live run.
type LUT struct {
	mu     sync.Mutex
	bus    hardware.Bus
	base   hardware.Addr
	size   int
	bitmap []uint64
}

// NewLUT creates an empty table of size entries at base.
func NewLUT(bus hardware.Bus, base hardware.Addr, size int) *LUT {
	return &LUT{
		bus:    bus,
		base:   base,
		size:   size,
		bitmap: make([]uint64, (size+63)/64),
	}
}

// Size returns the number of entries in the table.
func (l *LUT) Size() int { return l.size }

// Used returns the number of allocated entries.
func (l *LUT) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for i := 0; i < l.size; i++ {
		if l.test(i) {
			n++
		}
	}
	return n
}

// InUse reports whether entry idx is allocated.
func (l *LUT) InUse(idx int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return idx >= 0 && idx < l.size && l.test(idx)
}

// Allocate stores values in the first free run of len(values) entries and
// returns its inclusive index range. The run is only marked used after
// every entry has been written.
func (l *LUT) Allocate(ctx context.Context, values []uint16) (lo, hi int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocateLocked(ctx, values)
}

// Replace allocates values in place of [oldLo, oldHi]. A run outside the
// old range is preferred so the old entries stay intact until the new ones
// are written; the old range is only reused when nothing else fits. If no
// run fits, the old range stays allocated. A write failure in a reused
// range leaves the overwritten old entries lost.
func (l *LUT) Replace(ctx context.Context, oldLo, oldHi int, values []uint16) (lo, hi int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(values) > 1 && l.findZeroRun(len(values)) >= 0 {
		lo, hi, err = l.allocateLocked(ctx, values)
		if err == nil {
			l.freeLocked(oldLo, oldHi)
		}
		return lo, hi, err
	}
	l.freeLocked(oldLo, oldHi)
	lo, hi, err = l.allocateLocked(ctx, values)
	if err != nil && oldLo != oldHi {
		l.mark(oldLo, oldHi-oldLo+1, true)
	}
	return lo, hi, err
}

// Free releases [lo, hi]. lo == hi is the "no pattern" sentinel and is a
// no-op.
func (l *LUT) Free(lo, hi int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.freeLocked(lo, hi)
}

func (l *LUT) allocateLocked(ctx context.Context, values []uint16) (int, int, error) {
	n := len(values)
	// The ramp generator misbehaves when LO_IDX == HI_IDX.
	if n == 1 {
		return 0, 0, newError("lut allocate", KindInvalidArgument, ErrLength)
	}
	if n == 0 {
		return 0, 0, invalidf("lut allocate", "empty pattern")
	}
	idx := l.findZeroRun(n)
	if idx < 0 {
		return 0, 0, newError("lut allocate", KindResourceExhausted,
			fmt.Errorf("%w: need %d of %d entries", ErrOutOfSpace, n, l.size))
	}
	for i, v := range values {
		addr := hardware.RegLUTEntry(idx + i).At(l.base)
		if err := l.bus.WriteBulk(ctx, addr, hardware.PutLE16(v)); err != nil {
			return 0, 0, ioError("lut store", err)
		}
	}
	l.mark(idx, n, true)
	return idx, idx + n - 1, nil
}

func (l *LUT) freeLocked(lo, hi int) {
	if lo == hi || lo < 0 || hi >= l.size || lo > hi {
		return
	}
	l.mark(lo, hi-lo+1, false)
}

// findZeroRun returns the first index of n consecutive clear bits, or -1.
func (l *LUT) findZeroRun(n int) int {
	run := 0
	for i := 0; i < l.size; i++ {
		if l.test(i) {
			run = 0
			continue
		}
		run++
		if run == n {
			return i - n + 1
		}
	}
	return -1
}

func (l *LUT) test(i int) bool {
	return l.bitmap[i/64]&(1<<(uint(i)%64)) != 0
}

func (l *LUT) mark(start, n int, used bool) {
	for i := start; i < start+n; i++ {
		if used {
			l.bitmap[i/64] |= 1 << (uint(i) % 64)
		} else {
			l.bitmap[i/64] &^= 1 << (uint(i) % 64)
		}
	}
}
