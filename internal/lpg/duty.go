package lpg

// QuantizeDuty converts a duty time into a duty code of the given
// resolution: floor(duty << res / period), clamped to 2^res - 1.
// The same conversion maps a brightness level over MaxBrightness.
func QuantizeDuty(duty, period uint64, res uint8) uint16 {
	max := uint64(1)<<res - 1
	if period == 0 {
		return 0
	}
	v := duty << res / period
	if v > max {
		v = max
	}
	return uint16(v)
}
