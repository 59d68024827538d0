package blockmap

import (
	"fmt"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// BlockSource is the slice of the allocator the block map needs.
type BlockSource interface {
	AllocBlock(hint Block) (Block, error)
	FreeBlock(b Block)
}

// Map walks and mutates an inode's block map. All device access goes
// through the handle's current device, so map mutations made inside an
// operation are captured by the open transaction.
type Map struct {
	dev    device.Device
	alloc  BlockSource
	inodes InodeStore
}

func New(dev device.Device, alloc BlockSource, inodes InodeStore) Map {
	return Map{dev: dev, alloc: alloc, inodes: inodes}
}

// Lookup resolves a logical block to its physical block, returning
// BlockNil for holes at any level.
func (m *Map) Lookup(inode *Inode, logical Block) (Block, error) {
	var ind indirection
	if err := ind.fromLogical(inode, logical); err != nil {
		return BlockNil, fmt.Errorf(
			"resolving block `%d` of inode `%d`: %w",
			logical,
			inode.Ino,
			err,
		)
	}
	b := *ind.ptr
	path := ind.path()
	for i := len(path) - 1; i >= 0; i-- {
		if b == BlockNil {
			return BlockNil, nil
		}
		if err := m.checkPtr(inode, logical, b); err != nil {
			return BlockNil, err
		}
		next, err := m.readPtr(b, path[i])
		if err != nil {
			return BlockNil, fmt.Errorf(
				"resolving block `%d` of inode `%d`: traversing %s block: %w",
				logical,
				inode.Ino,
				ind.level,
				err,
			)
		}
		b = next
	}
	// the loop vets the parents; direct pointers and the resolved leaf
	// land here
	if b != BlockNil {
		if err := m.checkPtr(inode, logical, b); err != nil {
			return BlockNil, err
		}
	}
	return b, nil
}

func (m *Map) checkPtr(inode *Inode, logical, b Block) error {
	if b >= m.dev.BlockCount() {
		return fmt.Errorf(
			"resolving block `%d` of inode `%d`: pointer `%d` exceeds "+
				"volume size: %w",
			logical,
			inode.Ino,
			b,
			InvalidPointerErr,
		)
	}
	return nil
}

// Ensure resolves a logical block, allocating the physical block and any
// missing indirect levels. New indirect blocks are zero-initialized and
// linked parent-first so an allocation failure never leaks a block. The
// hint seeds placement for contiguity with the caller's previous block.
func (m *Map) Ensure(inode *Inode, logical, hint Block) (Block, error) {
	var ind indirection
	if err := ind.fromLogical(inode, logical); err != nil {
		return BlockNil, fmt.Errorf(
			"mapping block `%d` of inode `%d`: %w",
			logical,
			inode.Ino,
			err,
		)
	}

	if *ind.ptr == BlockNil {
		b, err := m.allocZeroed(inode, hint)
		if err != nil {
			return BlockNil, fmt.Errorf(
				"mapping block `%d` of inode `%d`: allocating %s block: %w",
				logical,
				inode.Ino,
				ind.level,
				err,
			)
		}
		*ind.ptr = b
		if err := m.inodes.Put(inode); err != nil {
			m.alloc.FreeBlock(b)
			*ind.ptr = BlockNil
			inode.BlockCount--
			return BlockNil, fmt.Errorf(
				"mapping block `%d` of inode `%d`: storing updated inode: %w",
				logical,
				inode.Ino,
				err,
			)
		}
	}

	b := *ind.ptr
	path := ind.path()
	for i := len(path) - 1; i >= 0; i-- {
		next, err := m.readPtr(b, path[i])
		if err != nil {
			return BlockNil, fmt.Errorf(
				"mapping block `%d` of inode `%d`: traversing %s block: %w",
				logical,
				inode.Ino,
				ind.level,
				err,
			)
		}
		if next == BlockNil {
			next, err = m.allocZeroed(inode, hint)
			if err != nil {
				return BlockNil, fmt.Errorf(
					"mapping block `%d` of inode `%d`: filling hole: %w",
					logical,
					inode.Ino,
					err,
				)
			}
			if err := m.writePtr(b, path[i], next); err != nil {
				m.alloc.FreeBlock(next)
				inode.BlockCount--
				return BlockNil, fmt.Errorf(
					"mapping block `%d` of inode `%d`: linking new block "+
						"`%d` into parent `%d`: %w",
					logical,
					inode.Ino,
					next,
					b,
					err,
				)
			}
			if err := m.inodes.Put(inode); err != nil {
				return BlockNil, fmt.Errorf(
					"mapping block `%d` of inode `%d`: storing updated "+
						"inode: %w",
					logical,
					inode.Ino,
					err,
				)
			}
		}
		b = next
	}
	return b, nil
}

// allocZeroed allocates one block and, for indirect blocks, zeroes it so
// stale images never read as pointers. Data blocks are zeroed too: a
// partial write must leave the rest of the block as hole zeros.
func (m *Map) allocZeroed(inode *Inode, hint Block) (Block, error) {
	b, err := m.alloc.AllocBlock(hint)
	if err != nil {
		return BlockNil, err
	}
	zero := make([]byte, BlockSize)
	if err := m.dev.WriteBlock(b, zero); err != nil {
		m.alloc.FreeBlock(b)
		return BlockNil, fmt.Errorf("zeroing fresh block `%d`: %w", b, err)
	}
	inode.BlockCount++
	return b, nil
}

// Truncate releases every block with logical index >= keep, collapsing
// indirect blocks that become empty, and reports how many blocks
// (data + indirect) were freed. The caller updates inode.Size and
// persists the inode.
func (m *Map) Truncate(inode *Inode, keep Block) (int, error) {
	freed := 0

	for i := Block(0); i < Block(DirectBlocksCount); i++ {
		if i >= keep && inode.Direct[i] != BlockNil {
			m.alloc.FreeBlock(inode.Direct[i])
			inode.Direct[i] = BlockNil
			freed++
		}
	}

	roots := []struct {
		ptr  *Block
		base Block
		span Block
		lvl  int
	}{
		{&inode.SinglyIndirect, directMax + 1, singlyCount, 1},
		{&inode.DoublyIndirect, singlyMax + 1, doublyCount, 2},
		{&inode.TriplyIndirect, doublyMax + 1, triplyCount, 3},
	}
	for _, root := range roots {
		if *root.ptr == BlockNil {
			continue
		}
		if keep <= root.base {
			// the whole subtree goes
			n, err := m.freeTree(*root.ptr, root.lvl)
			if err != nil {
				return freed, fmt.Errorf(
					"truncating inode `%d`: %w",
					inode.Ino,
					err,
				)
			}
			freed += n
			*root.ptr = BlockNil
			continue
		}
		if keep >= root.base+root.span {
			continue
		}
		empty, n, err := m.prune(*root.ptr, root.lvl, root.base, keep)
		if err != nil {
			return freed, fmt.Errorf(
				"truncating inode `%d`: %w",
				inode.Ino,
				err,
			)
		}
		freed += n
		if empty {
			m.alloc.FreeBlock(*root.ptr)
			*root.ptr = BlockNil
			freed++
		}
	}

	if uint32(freed) > inode.BlockCount {
		inode.BlockCount = 0
	} else {
		inode.BlockCount -= uint32(freed)
	}
	return freed, nil
}

// freeTree releases an entire indirect subtree including the root.
func (m *Map) freeTree(root Block, lvl int) (int, error) {
	freed := 0
	if lvl > 0 {
		buf := make([]byte, BlockSize)
		if err := m.dev.ReadBlock(root, buf); err != nil {
			return freed, fmt.Errorf("freeing indirect block `%d`: %w", root, err)
		}
		for i := Block(0); i < PointersPerBlock; i++ {
			child := decodePtr(buf, i)
			if child == BlockNil {
				continue
			}
			n, err := m.freeTree(child, lvl-1)
			if err != nil {
				return freed, err
			}
			freed += n
		}
	}
	m.alloc.FreeBlock(root)
	return freed + 1, nil
}

// prune removes the tail of a partially retained subtree. `base` is the
// logical index of the subtree's first data block; children covering
// logical blocks >= keep are released. Reports whether the subtree is
// now empty.
func (m *Map) prune(root Block, lvl int, base, keep Block) (bool, int, error) {
	childSpan := Block(1)
	for i := 1; i < lvl; i++ {
		childSpan *= PointersPerBlock
	}

	buf := make([]byte, BlockSize)
	if err := m.dev.ReadBlock(root, buf); err != nil {
		return false, 0, fmt.Errorf("pruning indirect block `%d`: %w", root, err)
	}

	freed := 0
	dirty := false
	empty := true
	for i := Block(0); i < PointersPerBlock; i++ {
		child := decodePtr(buf, i)
		if child == BlockNil {
			continue
		}
		childBase := base + i*childSpan
		if childBase >= keep {
			var n int
			var err error
			if lvl > 1 {
				n, err = m.freeTree(child, lvl-1)
			} else {
				m.alloc.FreeBlock(child)
				n = 1
			}
			if err != nil {
				return false, freed, err
			}
			freed += n
			encodePtr(buf, i, BlockNil)
			dirty = true
			continue
		}
		if lvl > 1 && childBase+childSpan > keep {
			childEmpty, n, err := m.prune(child, lvl-1, childBase, keep)
			if err != nil {
				return false, freed, err
			}
			freed += n
			if childEmpty {
				m.alloc.FreeBlock(child)
				freed++
				encodePtr(buf, i, BlockNil)
				dirty = true
				continue
			}
		}
		empty = false
	}
	if dirty && !empty {
		if err := m.dev.WriteBlock(root, buf); err != nil {
			return false, freed, fmt.Errorf(
				"pruning indirect block `%d`: %w",
				root,
				err,
			)
		}
	}
	return empty, freed, nil
}

func (m *Map) readPtr(b, index Block) (Block, error) {
	buf := make([]byte, BlockSize)
	if err := m.dev.ReadBlock(b, buf); err != nil {
		return BlockNil, fmt.Errorf(
			"reading pointer `%d` of block `%d`: %w",
			index,
			b,
			err,
		)
	}
	return decodePtr(buf, index), nil
}

func (m *Map) writePtr(b, index, value Block) error {
	buf := make([]byte, BlockSize)
	if err := m.dev.ReadBlock(b, buf); err != nil {
		return fmt.Errorf(
			"writing pointer `%d` of block `%d`: %w",
			index,
			b,
			err,
		)
	}
	encodePtr(buf, index, value)
	if err := m.dev.WriteBlock(b, buf); err != nil {
		return fmt.Errorf(
			"writing pointer `%d` of block `%d`: %w",
			index,
			b,
			err,
		)
	}
	return nil
}

func decodePtr(buf []byte, index Block) Block {
	start := Byte(index) * BlockPointerSize
	return encode.DecodeBlockPointer(buf[start : start+BlockPointerSize])
}

func encodePtr(buf []byte, index, value Block) {
	start := Byte(index) * BlockPointerSize
	encode.EncodeBlockPointer(value, buf[start:start+BlockPointerSize])
}
