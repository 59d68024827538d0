// Package alloc tracks free blocks and free inodes through the
// per-group bitmaps and answers allocation requests: single blocks,
// contiguous runs with a placement hint, and inode numbers.
package alloc

import (
	"github.com/multios/mfs/pkg/math"
)

const bitsPerByte = 8

// Bitmap is a fixed-size bit vector where bit k set means "unit k is
// used". Bit k lives at byte k/8, most significant bit first, matching
// the on-disk bitmap blocks byte for byte.
type Bitmap struct {
	bytes []byte
	bits  uint64
}

func New(bits uint64) Bitmap {
	return Bitmap{
		bytes: make([]byte, math.DivRoundUp(bits, bitsPerByte)),
		bits:  bits,
	}
}

// FromBytes adopts an on-disk bitmap image.
func FromBytes(bytes []byte, bits uint64) Bitmap {
	return Bitmap{bytes: bytes, bits: bits}
}

func (bm Bitmap) Bytes() []byte { return bm.bytes }
func (bm Bitmap) Bits() uint64  { return bm.bits }

func (bm Bitmap) Test(k uint64) bool {
	return !byteIsZero(bm.bytes[k/bitsPerByte], uint8(k%bitsPerByte))
}

func (bm Bitmap) Reserve(k uint64) {
	b := &bm.bytes[k/bitsPerByte]
	*b = byteSetHigh(*b, uint8(k%bitsPerByte))
}

func (bm Bitmap) Free(k uint64) {
	b := &bm.bytes[k/bitsPerByte]
	*b = byteSetLow(*b, uint8(k%bitsPerByte))
}

// FirstFree finds the lowest clear bit at or after `from`.
func (bm Bitmap) FirstFree(from uint64) (uint64, bool) {
	for k := from; k < bm.bits; k++ {
		if !bm.Test(k) {
			return k, true
		}
	}
	return 0, false
}

// RunLength counts consecutive clear bits starting at `from`, up to
// `max`.
func (bm Bitmap) RunLength(from, max uint64) uint64 {
	var n uint64
	for from+n < bm.bits && n < max && !bm.Test(from+n) {
		n++
	}
	return n
}

// FindRun finds the lowest run of `count` consecutive clear bits.
func (bm Bitmap) FindRun(count uint64) (uint64, bool) {
	k := uint64(0)
	for {
		start, ok := bm.FirstFree(k)
		if !ok {
			return 0, false
		}
		if n := bm.RunLength(start, count); n >= count {
			return start, true
		} else {
			k = start + n + 1
		}
	}
}

// CountFree is the number of clear bits.
func (bm Bitmap) CountFree() uint64 {
	return bm.bits - uint64(math.PopCount(bm.bytes))
}

func byteIsZero(byt byte, bit uint8) bool {
	return byt&(0b1000_0000>>bit) == 0
}

func byteSetHigh(byt byte, bit uint8) byte {
	return byt | (0b1000_0000 >> bit)
}

func byteSetLow(byt byte, bit uint8) byte {
	return byt & ^(0b1000_0000 >> bit)
}
