package lpg

import (
	"log/slog"
	"math"
)

// Point is one pattern step: a brightness held for DeltaMS before moving to
// the next step.
type Point struct {
	Brightness uint16
	DeltaMS    uint32
}

// Repeat is the pattern repeat count. The ramp generator has no finite
// repeat-N mode, so only RepeatOnce and RepeatForever are accepted.
type Repeat int

const (
	RepeatForever Repeat = -1
	RepeatOnce    Repeat = 1
)

// CompiledPattern is a pattern translated to ramp generator parameters.
// LoIdx/HiIdx are filled once Stored has been placed in the LUT.
type CompiledPattern struct {
	Stored         []uint16
	LoIdx, HiIdx   int
	PingPong       bool
	Oneshot        bool
	LoPauseMS      uint32
	HiPauseMS      uint32
	RampDurationMS uint32
}

// CompilePattern derives the ramp parameters for pattern.
//
// The generator plays entries at a fixed pace set by the first delta_t. A
// "lo pause" may precede the pattern and a "hi pause" follow it. Palindromes
// are played ping-pong: only the first half is stored, the generator plays
// it forward, applies the hi pause, plays it backward, then applies the lo
// pause. Then the last delta_t is the lo pause and, for an even length, the
// middle delta_t is the hi pause; odd lengths get no hi pause. Otherwise the
// last delta_t is the hi pause and there is no lo pause.
func CompilePattern(pattern []Point, repeat Repeat) (CompiledPattern, error) {
	if repeat != RepeatOnce && repeat != RepeatForever {
		return CompiledPattern{}, newError("compile pattern", KindInvalidArgument, ErrUnsupportedRepeat)
	}
	n := len(pattern)
	if n < 2 {
		return CompiledPattern{}, newError("compile pattern", KindInvalidArgument, ErrLength)
	}

	pingPong := true
	for i := 0; i < n/2; i++ {
		if pattern[i].Brightness != pattern[n-1-i].Brightness {
			pingPong = false
			break
		}
	}

	cp := CompiledPattern{PingPong: pingPong, Oneshot: repeat != RepeatForever}
	stored := n
	if pingPong {
		if n%2 == 0 {
			cp.HiPauseMS = pattern[n/2].DeltaMS
		}
		cp.LoPauseMS = pattern[n-1].DeltaMS
		stored = (n + 1) / 2
	} else {
		cp.HiPauseMS = pattern[n-1].DeltaMS
	}

	cp.Stored = make([]uint16, stored)
	for i := range cp.Stored {
		cp.Stored[i] = pattern[i].Brightness
	}
	cp.RampDurationMS = saturate32(uint64(pattern[0].DeltaMS) * uint64(stored))

	if ignored := ignoredTimings(pattern, pingPong); ignored > 0 {
		slog.Warn("lpg: pattern timing ignored", "entries", ignored, "pace_ms", pattern[0].DeltaMS)
	}
	return cp, nil
}

// ignoredTimings counts entries whose delta_t differs from the pace and is
// not a pause slot.
func ignoredTimings(pattern []Point, pingPong bool) int {
	n := len(pattern)
	count := 0
	for i := 1; i < n-1; i++ {
		if pingPong && n%2 == 0 && i == n/2 {
			continue
		}
		if pattern[i].DeltaMS != pattern[0].DeltaMS {
			count++
		}
	}
	return count
}

func saturate32(v uint64) uint32 {
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
