package tensor

import "math"

// IEEE 754 binary16 and bfloat16 codecs.
//
// float16 has a 5-bit exponent and 10-bit mantissa; bfloat16 keeps float32's
// 8-bit exponent and truncates the mantissa to 7 bits. Conversions to float32
// are exact; conversions from float32 round to nearest-even.

// Float16ToFloat32 converts an IEEE 754 half-precision value to float32.
func Float16ToFloat32(h uint16) float32 {
	sign := (h >> 15) & 0x1
	exp := (h >> 10) & 0x1F
	mant := h & 0x3FF

	var result uint32

	switch exp {
	case 0:
		if mant == 0 {
			// Zero.
			result = uint32(sign) << 31
		} else {
			// Subnormal number - normalize it.
			exp = 1
			for (mant & 0x400) == 0 {
				mant <<= 1
				exp--
			}
			mant &= 0x3FF
			result = (uint32(sign) << 31) | (uint32(exp+127-15) << 23) | (uint32(mant) << 13)
		}
	case 0x1F:
		// Inf or NaN.
		result = (uint32(sign) << 31) | 0x7F800000 | (uint32(mant) << 13)
	default:
		// Normal number.
		result = (uint32(sign) << 31) | (uint32(exp+127-15) << 23) | (uint32(mant) << 13)
	}

	return math.Float32frombits(result)
}

// Float32ToFloat16 converts a float32 value to IEEE 754 half precision,
// rounding to nearest-even. Overflow saturates to infinity.
func Float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	switch {
	case exp >= 0x1F:
		if (bits>>23)&0xFF == 0xFF {
			if mant != 0 {
				// NaN: keep a non-zero mantissa.
				return sign | 0x7C00 | uint16(mant>>13) | 1
			}
			return sign | 0x7C00 // Inf
		}
		// Overflow saturates to Inf.
		return sign | 0x7C00
	case exp <= 0:
		if exp < -10 {
			// Underflows to signed zero.
			return sign
		}
		// Subnormal: shift in the implicit leading bit, then round.
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint32(1) << (shift - 1)
		rem := mant & ((uint32(1) << shift) - 1)
		v := mant >> shift
		if rem > half || (rem == half && v&1 != 0) {
			v++
		}
		return sign | uint16(v)
	default:
		// Normal: round mantissa from 23 to 10 bits, nearest-even.
		v := uint32(exp)<<10 | mant>>13
		rem := mant & 0x1FFF
		if rem > 0x1000 || (rem == 0x1000 && v&1 != 0) {
			v++ // Carry may overflow into the exponent, which is correct.
		}
		return sign | uint16(v)
	}
}

// BFloat16ToFloat32 converts a bfloat16 value to float32. Exact.
func BFloat16ToFloat32(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// Float32ToBFloat16 converts a float32 value to bfloat16, rounding to
// nearest-even. NaN payloads are forced non-zero so they stay NaN.
func Float32ToBFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	if bits&0x7F800000 == 0x7F800000 && bits&0x7FFFFF != 0 {
		return uint16(bits>>16) | 0x0040 // quiet NaN
	}
	round := uint32(0x7FFF + ((bits >> 16) & 1))
	return uint16((bits + round) >> 16)
}
