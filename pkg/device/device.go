// Package device is the byte store underneath the file system: a
// fixed-size array of 4,096-byte blocks with an explicit durability
// barrier. Every higher layer reaches the medium through this interface
// only, so tests run against the memory backend and tools against the
// file backend.
package device

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

type Device interface {
	// ReadBlock fills buf (which must be BlockSize bytes) with block n.
	ReadBlock(n Block, buf []byte) error

	// WriteBlock stores buf (which must be BlockSize bytes) as block n.
	// The write may be buffered until Flush.
	WriteBlock(n Block, buf []byte) error

	// Flush is the durability barrier: it returns only once every prior
	// successful write is stable.
	Flush() error

	// BlockCount reports the device capacity in blocks.
	BlockCount() Block
}

func checkRange(op string, n, count Block, buf []byte) error {
	if n >= count {
		return fmt.Errorf(
			"%s block `%d`: device has `%d` blocks: %w",
			op,
			n,
			count,
			InvalidArgumentErr,
		)
	}
	if Byte(len(buf)) != BlockSize {
		return fmt.Errorf(
			"%s block `%d`: buffer is `%d` bytes; wanted `%d`: %w",
			op,
			n,
			len(buf),
			BlockSize,
			InvalidArgumentErr,
		)
	}
	return nil
}
