// Package blockmap resolves logical file blocks to physical blocks
// through the inode's direct pointers and the one-, two- and three-level
// indirect trees. A nil pointer at any level is a hole: reads see zeros,
// writes fill the missing levels lazily.
package blockmap

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

type level int

const (
	levelDirect level = iota - 1
	levelSingly
	levelDoubly
	levelTriply
	levelOutOfRange
)

func (level level) String() string {
	switch level {
	case levelDirect:
		return "direct"
	case levelSingly:
		return "singly indirect"
	case levelDoubly:
		return "doubly indirect"
	case levelTriply:
		return "triply indirect"
	default:
		return "out of range"
	}
}

const (
	directMax = Block(DirectBlocksCount) - 1

	singlyCount = PointersPerBlock
	singlyMax   = directMax + singlyCount

	doublyCount = singlyCount * PointersPerBlock
	doublyMax   = singlyMax + doublyCount

	triplyCount = doublyCount * PointersPerBlock
	triplyMax   = triplyCount + doublyMax
)

// MaxBlocks is the largest logical block index plus one.
const MaxBlocks = triplyMax + 1

// indirection locates a logical block: which top-level inode pointer
// roots it and the per-level indices on the way down (singly-level
// index first).
type indirection struct {
	level   level
	indices [levelOutOfRange]Block
	ptr     *Block
}

func (ind *indirection) fromLogical(inode *Inode, logical Block) error {
	switch {
	case logical <= directMax:
		*ind = indirection{
			level: levelDirect,
			ptr:   &inode.Direct[logical],
		}
	case logical <= singlyMax:
		*ind = indirection{
			level:   levelSingly,
			indices: [levelOutOfRange]Block{levelSingly: logical - directMax - 1},
			ptr:     &inode.SinglyIndirect,
		}
	case logical <= doublyMax:
		base := logical - singlyMax - 1
		*ind = indirection{
			level: levelDoubly,
			indices: [levelOutOfRange]Block{
				levelSingly: base % singlyCount,
				levelDoubly: base / singlyCount,
			},
			ptr: &inode.DoublyIndirect,
		}
	case logical <= triplyMax:
		base := logical - doublyMax - 1
		*ind = indirection{
			level: levelTriply,
			indices: [levelOutOfRange]Block{
				levelSingly: (base % doublyCount) % singlyCount,
				levelDoubly: (base % doublyCount) / singlyCount,
				levelTriply: base / doublyCount,
			},
			ptr: &inode.TriplyIndirect,
		}
	default:
		return fmt.Errorf(
			"logical block `%d` exceeds the maximum file size: %w",
			logical,
			InvalidArgumentErr,
		)
	}
	return nil
}

// path returns the per-level indices from the singly-indirect level up
// to the indirection's own level.
func (ind *indirection) path() []Block {
	return ind.indices[:ind.level+1]
}
