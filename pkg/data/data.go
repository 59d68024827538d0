// Package data is the byte-level file I/O engine. It chunks reads and
// writes along block boundaries, resolving each chunk's physical block
// through the block map. Reads through holes yield zeros; writes fill
// holes, allocating data and indirect blocks as needed.
package data

import (
	"fmt"
	"time"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/inode/blockmap"
	"github.com/multios/mfs/pkg/math"
	. "github.com/multios/mfs/pkg/types"
)

type IO struct {
	dev    device.Device
	blocks blockmap.Map
	inodes InodeStore
}

func New(dev device.Device, blocks blockmap.Map, inodes InodeStore) IO {
	return IO{dev: dev, blocks: blocks, inodes: inodes}
}

// Read copies up to len(b) bytes starting at offset into b, stopping at
// the end of the file. Holes read as zeros.
func (io *IO) Read(inode *Inode, offset Byte, b []byte) (Byte, error) {
	if offset >= inode.Size {
		return 0, nil
	}
	maxLength := math.Min(Byte(len(b)), inode.Size-offset)
	var chunkBegin Byte

	for chunkBegin < maxLength {
		chunkBlock := Block((offset + chunkBegin) / BlockSize)
		chunkOffset := (offset + chunkBegin) % BlockSize
		chunkLength := math.Min(maxLength-chunkBegin, BlockSize-chunkOffset)
		chunk := b[chunkBegin : chunkBegin+chunkLength]

		physical, err := io.blocks.Lookup(inode, chunkBlock)
		if err != nil {
			return chunkBegin, fmt.Errorf(
				"reading up to `%d` bytes from inode `%d` at offset `%d`: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		if physical == BlockNil {
			for i := range chunk {
				chunk[i] = 0
			}
		} else {
			buf := make([]byte, BlockSize)
			if err := io.dev.ReadBlock(physical, buf); err != nil {
				return chunkBegin, fmt.Errorf(
					"reading up to `%d` bytes from inode `%d` at offset "+
						"`%d`: %w",
					len(b),
					inode.Ino,
					offset,
					err,
				)
			}
			copy(chunk, buf[chunkOffset:chunkOffset+chunkLength])
		}

		chunkBegin += chunkLength
	}

	return chunkBegin, nil
}

// Write copies b into the file starting at offset, allocating blocks
// for holes and growing the file if the write extends past the end.
// Writing past the end of the file leaves a hole; the gap reads as
// zeros without consuming blocks.
func (io *IO) Write(inode *Inode, offset Byte, b []byte) (Byte, error) {
	var chunkBegin Byte
	hint := BlockNil

	for chunkBegin < Byte(len(b)) {
		chunkBlock := Block((offset + chunkBegin) / BlockSize)
		chunkOffset := (offset + chunkBegin) % BlockSize
		chunkLength := math.Min(
			Byte(len(b))-chunkBegin,
			BlockSize-chunkOffset,
		)
		chunk := b[chunkBegin : chunkBegin+chunkLength]

		physical, err := io.blocks.Ensure(inode, chunkBlock, hint)
		if err != nil {
			return chunkBegin, fmt.Errorf(
				"writing up to `%d` bytes to inode `%d` at offset `%d`: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		if err := io.writeChunk(physical, chunkOffset, chunk); err != nil {
			return chunkBegin, fmt.Errorf(
				"writing up to `%d` bytes to inode `%d` at offset `%d`: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		// seed the next allocation adjacent to this block
		hint = physical + 1

		chunkBegin += chunkLength
	}

	inode.ModifyTime = uint64(time.Now().Unix())
	if inode.Size < offset+chunkBegin {
		inode.Size = offset + chunkBegin
	}
	if err := io.inodes.Put(inode); err != nil {
		return chunkBegin, fmt.Errorf(
			"writing up to `%d` bytes to inode `%d` at offset `%d`: "+
				"updating inode: %w",
			len(b),
			inode.Ino,
			offset,
			err,
		)
	}

	return chunkBegin, nil
}

// writeChunk read-modify-writes one block. Whole-block chunks skip the
// read.
func (io *IO) writeChunk(physical Block, offset Byte, chunk []byte) error {
	buf := make([]byte, BlockSize)
	if offset != 0 || Byte(len(chunk)) != BlockSize {
		if err := io.dev.ReadBlock(physical, buf); err != nil {
			return fmt.Errorf("patching block `%d`: %w", physical, err)
		}
	}
	copy(buf[offset:], chunk)
	if err := io.dev.WriteBlock(physical, buf); err != nil {
		return fmt.Errorf("patching block `%d`: %w", physical, err)
	}
	return nil
}

// Truncate sets the file's size, releasing every whole block past the
// new end and zeroing the tail of the final kept block so stale bytes
// never reappear if the file regrows.
func (io *IO) Truncate(inode *Inode, size Byte) error {
	if size > inode.Size {
		// growing: the gap is a hole
		inode.Size = size
		inode.ModifyTime = uint64(time.Now().Unix())
		if err := io.inodes.Put(inode); err != nil {
			return fmt.Errorf(
				"truncating inode `%d` to `%d` bytes: %w",
				inode.Ino,
				size,
				err,
			)
		}
		return nil
	}

	keep := Block(math.DivRoundUp(size, BlockSize))
	if _, err := io.blocks.Truncate(inode, keep); err != nil {
		return fmt.Errorf(
			"truncating inode `%d` to `%d` bytes: %w",
			inode.Ino,
			size,
			err,
		)
	}

	if tail := size % BlockSize; tail != 0 {
		physical, err := io.blocks.Lookup(inode, keep-1)
		if err != nil {
			return fmt.Errorf(
				"truncating inode `%d` to `%d` bytes: %w",
				inode.Ino,
				size,
				err,
			)
		}
		if physical != BlockNil {
			buf := make([]byte, BlockSize)
			if err := io.dev.ReadBlock(physical, buf); err != nil {
				return fmt.Errorf(
					"truncating inode `%d` to `%d` bytes: %w",
					inode.Ino,
					size,
					err,
				)
			}
			for i := tail; i < BlockSize; i++ {
				buf[i] = 0
			}
			if err := io.dev.WriteBlock(physical, buf); err != nil {
				return fmt.Errorf(
					"truncating inode `%d` to `%d` bytes: %w",
					inode.Ino,
					size,
					err,
				)
			}
		}
	}

	inode.Size = size
	inode.ModifyTime = uint64(time.Now().Unix())
	if err := io.inodes.Put(inode); err != nil {
		return fmt.Errorf(
			"truncating inode `%d` to `%d` bytes: %w",
			inode.Ino,
			size,
			err,
		)
	}
	return nil
}
