package encode

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

const (
	xattrMagicStart Byte = 0
	xattrCountStart Byte = 4
	xattrPairsStart Byte = 8
)

// EncodeXattrBlock packs length-prefixed (name, value) pairs. The whole
// set must fit in one block.
func EncodeXattrBlock(attrs []Xattr, b []byte) error {
	for i := range b {
		b[i] = 0
	}
	putU32(b, xattrMagicStart, XattrBlockMagic)
	putU32(b, xattrCountStart, uint32(len(attrs)))
	offset := xattrPairsStart
	for i := range attrs {
		need := 4 + Byte(len(attrs[i].Name)) + Byte(len(attrs[i].Value))
		if offset+need > BlockSize {
			return fmt.Errorf(
				"encoding xattrs: `%d` pairs overflow the attribute "+
					"block: %w",
				len(attrs),
				InvalidArgumentErr,
			)
		}
		putU16(b, offset, uint16(len(attrs[i].Name)))
		putU16(b, offset+2, uint16(len(attrs[i].Value)))
		copy(b[offset+4:], attrs[i].Name)
		copy(b[offset+4+Byte(len(attrs[i].Name)):], attrs[i].Value)
		offset += need
	}
	return nil
}

func DecodeXattrBlock(b []byte) ([]Xattr, error) {
	if magic := getU32(b, xattrMagicStart); magic != XattrBlockMagic {
		return nil, fmt.Errorf(
			"xattr block magic: wanted `%#08x`; found `%#08x`: %w",
			XattrBlockMagic,
			magic,
			CorruptionDetectedErr,
		)
	}
	count := int(getU32(b, xattrCountStart))
	attrs := make([]Xattr, 0, count)
	offset := xattrPairsStart
	for i := 0; i < count; i++ {
		if offset+4 > BlockSize {
			return nil, fmt.Errorf(
				"xattr block truncated at pair `%d`: %w",
				i,
				CorruptionDetectedErr,
			)
		}
		nameLen := Byte(getU16(b, offset))
		valueLen := Byte(getU16(b, offset+2))
		if offset+4+nameLen+valueLen > BlockSize {
			return nil, fmt.Errorf(
				"xattr block truncated at pair `%d`: %w",
				i,
				CorruptionDetectedErr,
			)
		}
		name := string(b[offset+4 : offset+4+nameLen])
		value := make([]byte, valueLen)
		copy(value, b[offset+4+nameLen:offset+4+nameLen+valueLen])
		attrs = append(attrs, Xattr{Name: name, Value: value})
		offset += 4 + nameLen + valueLen
	}
	return attrs, nil
}
