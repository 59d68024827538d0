package encode

import (
	"encoding/binary"

	. "github.com/multios/mfs/pkg/types"
)

// EncodeBlockPointer writes a 32-bit little-endian block pointer.
func EncodeBlockPointer(b Block, p []byte) {
	binary.LittleEndian.PutUint32(p[:BlockPointerSize], uint32(b))
}

func DecodeBlockPointer(p []byte) Block {
	return Block(binary.LittleEndian.Uint32(p[:BlockPointerSize]))
}
