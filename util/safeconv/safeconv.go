package safeconv

import "math"

// U32ToInt converts uint32 to int with clamping to MaxInt on 32-bit platforms.
func U32ToInt(v uint32) int {
	if uint64(v) > uint64(math.MaxInt) {
		return math.MaxInt
	}
	return int(v)
}

// IntToU64 converts int to uint64 with clamping of negative values to 0.
func IntToU64(v int) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v) // #nosec G115 negatives are handled above
}

// IntToU32 converts int to uint32 with clamping into [0, MaxUint32].
func IntToU32(v int) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
