package math

import "math/bits"

type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type Integer interface {
	Signed | Unsigned
}

func Min[T Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T Integer](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func DivRoundUp[T Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// Align4 rounds up to 4-byte alignment.
func Align4[T Integer](x T) T {
	return (x + 3) &^ 3
}

// PopCount counts the set bits across a byte slice.
func PopCount(bytes []byte) int {
	var total int
	for _, b := range bytes {
		total += bits.OnesCount8(b)
	}
	return total
}
