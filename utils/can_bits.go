package utils

// unsignedToRawInt64 sign-extends a bitLen-wide field when signed.
func unsignedToRawInt64(u uint64, bitLen int, signed bool) int64 {
	if !signed || bitLen >= 64 {
		return int64(u)
	}
	shift := 64 - bitLen
	return int64(u<<shift) >> shift
}

// rawToUnsigned truncates a two's complement value to bitLen bits.
func rawToUnsigned(raw int64, bitLen int) uint64 {
	return uint64(raw) & widthMask(bitLen)
}

func widthMask(bitLen int) uint64 {
	if bitLen >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitLen) - 1
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// rawRange is the representable raw range of a field.
func rawRange(bitLen int, signed bool) (lo, hi int64) {
	if signed {
		return -int64(1) << (bitLen - 1), int64(1)<<(bitLen-1) - 1
	}
	return 0, int64(1)<<bitLen - 1
}

// clampRaw saturates raw to the field width. Fields of 64 bits are left
// alone.
func clampRaw(raw int64, bitLen int, signed bool) int64 {
	if bitLen <= 0 || bitLen > 63 {
		return raw
	}
	lo, hi := rawRange(bitLen, signed)
	return min(max(raw, lo), hi)
}
