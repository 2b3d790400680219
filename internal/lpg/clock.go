package lpg

import "math"

// Clock sources, in register order. The size/clk register encodes them
// off by one (0 = no clock).
const (
	Clock1kHz = iota
	Clock32kHz
	Clock19M2Hz
	numClocks
)

// Base clock periods in ns, truncated like the hardware tables.
var clockPeriodNS = [numClocks]uint64{
	1_000_000_000 / 1024,
	1_000_000_000 / 32768,
	1_000_000_000 / 19_200_000,
}

var preDividers = [...]uint64{1, 3, 5, 6}

const (
	// MaxExponent is the largest 2^m divider exponent.
	MaxExponent = 7

	Resolution6Bit = 6
	Resolution9Bit = 9

	nsPerUS = 1000
)

// PeriodParams is one representable (clock, pre-divider, exponent,
// resolution) setting.
type PeriodParams struct {
	Clock      uint8 // index into the clock sources
	PreDiv     uint8 // index into {1, 3, 5, 6}
	Exponent   uint8 // 0..MaxExponent
	Resolution uint8 // 6 or 9 bits
}

// PeriodNS reconstructs the PWM period this setting produces.
func (p PeriodParams) PeriodNS() uint64 {
	return clockPeriodNS[p.Clock] * preDividers[p.PreDiv] << (p.Exponent + p.Resolution)
}

// FindPeriod searches all clock/pre-divider/exponent triples for the one
// closest to periodUS.
//
// PWM Period = Clock Period * Pre-divide * 2^m * 2^N, N = 6 or 9, so the
// search compares (Period / 2^N) against (Pre-divide * Clock Period) * 2^m.
// For a fixed base the error is unimodal in m, so the m walk stops as soon
// as the error grows. Ties keep the first triple found.
func FindPeriod(periodUS uint32) PeriodParams {
	res := uint8(Resolution6Bit)
	if periodUS >= math.MaxUint32/nsPerUS {
		res = Resolution9Bit
	}
	target := uint64(periodUS) * nsPerUS >> res

	minErr := uint64(math.MaxUint64)
	var best PeriodParams
	for clk := 0; clk < numClocks; clk++ {
		for div := range preDividers {
			p := preDividers[div] * clockPeriodNS[clk]
			var lastErr uint64
			for m := 0; m <= MaxExponent; m++ {
				cur := absDiff(target, p)
				if cur < minErr {
					minErr = cur
					best = PeriodParams{Clock: uint8(clk), PreDiv: uint8(div), Exponent: uint8(m)}
				}
				if m > 0 && cur > lastErr {
					break
				}
				lastErr = cur
				p <<= 1
			}
		}
	}

	// 2^3 moved from the exponent into the resolution keeps the period and
	// gains duty precision.
	if best.Exponent >= 3 && res == Resolution6Bit {
		res = Resolution9Bit
		best.Exponent -= 3
	}
	best.Resolution = res
	return best
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
