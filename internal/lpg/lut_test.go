package lpg_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/micro-nova/lpg-go/internal/hardware"
	"github.com/micro-nova/lpg-go/internal/lpg"
)

const lutBase hardware.Addr = 0xb000

func values(n int) []uint16 {
	v := make([]uint16, n)
	for i := range v {
		v[i] = uint16(i * 11)
	}
	return v
}

func TestLUTAllocateWritesEntries(t *testing.T) {
	mock := hardware.NewMock()
	lut := lpg.NewLUT(mock, lutBase, 24)

	lo, hi, err := lut.Allocate(context.Background(), []uint16{0x0102, 0x01ff, 0})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if lo != 0 || hi != 2 {
		t.Fatalf("range = [%d,%d], want [0,2]", lo, hi)
	}
	if got := hardware.LE16([]byte{mock.GetReg(0xb042), mock.GetReg(0xb043)}); got != 0x01ff {
		t.Errorf("entry 1 = 0x%04x, want 0x01ff", got)
	}
	if mock.GetReg(0xb040) != 0x02 || mock.GetReg(0xb041) != 0x01 {
		t.Errorf("entry 0 bytes = %02x %02x", mock.GetReg(0xb040), mock.GetReg(0xb041))
	}
	if lut.Used() != 3 {
		t.Errorf("Used = %d, want 3", lut.Used())
	}

	lo, hi, err = lut.Allocate(context.Background(), values(2))
	if err != nil || lo != 3 || hi != 4 {
		t.Errorf("second Allocate = [%d,%d] %v, want [3,4]", lo, hi, err)
	}
}

func TestLUTRejectsSingleEntry(t *testing.T) {
	mock := hardware.NewMock()
	lut := lpg.NewLUT(mock, lutBase, 24)

	_, _, err := lut.Allocate(context.Background(), values(1))
	if !errors.Is(err, lpg.ErrLength) || !errors.Is(err, lpg.ErrInvalidArgument) {
		t.Fatalf("err = %v, want length / invalid argument", err)
	}
	if len(mock.Ops()) != 0 || lut.Used() != 0 {
		t.Error("rejected allocation must not touch the table")
	}
}

func TestLUTOutOfSpace(t *testing.T) {
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, 24)
	ctx := context.Background()

	if _, _, err := lut.Allocate(ctx, values(20)); err != nil {
		t.Fatal(err)
	}
	_, _, err := lut.Allocate(ctx, values(5))
	if !errors.Is(err, lpg.ErrOutOfSpace) || lpg.KindOf(err) != lpg.KindResourceExhausted {
		t.Fatalf("err = %v, want out of space", err)
	}
	if lut.Used() != 20 {
		t.Errorf("Used = %d after failed allocation", lut.Used())
	}
}

func TestLUTFirstFitReusesHoles(t *testing.T) {
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, 24)
	ctx := context.Background()

	aLo, aHi, _ := lut.Allocate(ctx, values(4))
	_, _, _ = lut.Allocate(ctx, values(4))
	lut.Free(aLo, aHi)

	lo, hi, err := lut.Allocate(ctx, values(3))
	if err != nil || lo != 0 || hi != 2 {
		t.Fatalf("Allocate into hole = [%d,%d] %v, want [0,2]", lo, hi, err)
	}
	lo, _, _ = lut.Allocate(ctx, values(2))
	if lo != 8 {
		t.Errorf("run that does not fit the hole went to %d, want 8", lo)
	}
}

func TestLUTFreeSentinelIsNoop(t *testing.T) {
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, 24)
	if _, _, err := lut.Allocate(context.Background(), values(2)); err != nil {
		t.Fatal(err)
	}
	lut.Free(0, 0)
	lut.Free(1, 1)
	if lut.Used() != 2 {
		t.Errorf("Used = %d, sentinel free must not clear bits", lut.Used())
	}
}

func TestLUTWriteFailureLeavesBitsClear(t *testing.T) {
	mock := hardware.NewMock()
	lut := lpg.NewLUT(mock, lutBase, 24)
	mock.FailAfter(2)

	_, _, err := lut.Allocate(context.Background(), values(4))
	if lpg.KindOf(err) != lpg.KindIO {
		t.Fatalf("err = %v, want i/o failure", err)
	}
	var busErr *hardware.BusError
	if !errors.As(err, &busErr) {
		t.Errorf("bus error not reachable from %v", err)
	}
	if lut.Used() != 0 {
		t.Errorf("Used = %d after failed store", lut.Used())
	}
}

func TestLUTReplace(t *testing.T) {
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, 24)
	ctx := context.Background()

	lo, hi, _ := lut.Allocate(ctx, values(3))
	lo, hi, err := lut.Replace(ctx, lo, hi, values(5))
	if err != nil || lo != 3 || hi != 7 {
		t.Fatalf("Replace = [%d,%d] %v, want [3,7]", lo, hi, err)
	}
	if lut.Used() != 5 || lut.InUse(0) {
		t.Errorf("Used = %d, entry 0 in use %v; want 5 and old run freed", lut.Used(), lut.InUse(0))
	}

	// Fill the rest, then a replacement that cannot fit keeps the old run.
	if _, _, err := lut.Allocate(ctx, values(3)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := lut.Allocate(ctx, values(16)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := lut.Replace(ctx, lo, hi, values(6)); !errors.Is(err, lpg.ErrOutOfSpace) {
		t.Fatalf("Replace err = %v, want out of space", err)
	}
	for i := lo; i <= hi; i++ {
		if !lut.InUse(i) {
			t.Errorf("entry %d released by failed Replace", i)
		}
	}
}

func TestLUTRandomSequenceInvariants(t *testing.T) {
	const size = 49
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, size)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	type run struct{ lo, hi int }
	var live []run
	for step := 0; step < 2000; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			lut.Free(live[i].lo, live[i].hi)
			live = append(live[:i], live[i+1:]...)
		} else {
			n := 2 + rng.Intn(8)
			lo, hi, err := lut.Allocate(ctx, values(n))
			switch {
			case err == nil:
				if hi-lo+1 != n {
					t.Fatalf("step %d: got run of %d, want %d", step, hi-lo+1, n)
				}
				live = append(live, run{lo, hi})
			case !errors.Is(err, lpg.ErrOutOfSpace):
				t.Fatalf("step %d: %v", step, err)
			}
		}

		var owned [size]bool
		used := 0
		for _, r := range live {
			for i := r.lo; i <= r.hi; i++ {
				if owned[i] {
					t.Fatalf("step %d: entry %d owned twice", step, i)
				}
				owned[i] = true
				used++
			}
		}
		for i := 0; i < size; i++ {
			if lut.InUse(i) != owned[i] {
				t.Fatalf("step %d: bitmap bit %d = %v, want %v", step, i, lut.InUse(i), owned[i])
			}
		}
		if lut.Used() != used {
			t.Fatalf("step %d: Used = %d, want %d", step, lut.Used(), used)
		}
	}
}

func TestLUTConcurrentAllocationsNeverOverlap(t *testing.T) {
	const size = 64
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, size)

	type run struct{ lo, hi int }
	var (
		mu   sync.Mutex
		runs []run
		wg   sync.WaitGroup
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lo, hi, err := lut.Allocate(context.Background(), values(4))
			if err != nil {
				t.Errorf("Allocate: %v", err)
				return
			}
			mu.Lock()
			runs = append(runs, run{lo, hi})
			mu.Unlock()
		}()
	}
	wg.Wait()

	var owned [size]bool
	for _, r := range runs {
		for i := r.lo; i <= r.hi; i++ {
			if owned[i] {
				t.Fatalf("entry %d allocated twice", i)
			}
			owned[i] = true
		}
	}
	if lut.Used() != size {
		t.Errorf("Used = %d, want %d", lut.Used(), size)
	}
}

func TestLUTReplaceReusesOldRangeWhenNeeded(t *testing.T) {
	lut := lpg.NewLUT(hardware.NewMock(), lutBase, 24)
	ctx := context.Background()

	lo, hi, _ := lut.Allocate(ctx, values(10))
	lo, hi, err := lut.Replace(ctx, lo, hi, values(16))
	if err != nil || lo != 0 || hi != 15 {
		t.Fatalf("Replace = [%d,%d] %v, want [0,15]", lo, hi, err)
	}
	if lut.Used() != 16 {
		t.Errorf("Used = %d, want 16", lut.Used())
	}
}

func TestLUTReplaceWriteFailureKeepsOldEntries(t *testing.T) {
	mock := hardware.NewMock()
	lut := lpg.NewLUT(mock, lutBase, 24)
	ctx := context.Background()

	old := []uint16{0x101, 0x102, 0x103}
	lo, hi, err := lut.Allocate(ctx, old)
	if err != nil {
		t.Fatal(err)
	}

	mock.FailAfter(1)
	if _, _, err := lut.Replace(ctx, lo, hi, values(3)); !errors.Is(err, lpg.ErrIO) {
		t.Fatalf("Replace err = %v, want i/o failure", err)
	}
	mock.FailAfter(-1)

	for i, v := range old {
		addr := hardware.RegLUTEntry(lo + i).At(lutBase)
		if got := hardware.LE16([]byte{mock.GetReg(addr), mock.GetReg(addr + 1)}); got != v {
			t.Errorf("entry %d = %#x, want %#x", lo+i, got, v)
		}
		if !lut.InUse(lo + i) {
			t.Errorf("entry %d released by failed Replace", lo+i)
		}
	}
	if lut.Used() != len(old) {
		t.Errorf("Used = %d, want %d", lut.Used(), len(old))
	}
}
