// Package layout computes volume geometry: where each block group's
// bitmaps, inode table and data region live, and how inode numbers map
// to inode-table positions. The layout is fixed at format time and
// derived again from the superblock on every mount.
//
// Block 0 holds the superblock; the group-descriptor table and the
// journal region follow it, then group 0's own metadata. Every other
// group carries its metadata at its base block.
package layout

import (
	"fmt"

	"github.com/multios/mfs/pkg/math"
	. "github.com/multios/mfs/pkg/types"
)

type Geometry struct {
	TotalBlocks    Block
	BlocksPerGroup Block
	InodesPerGroup Ino
	GroupCount     uint32
	JournalStart   Block
	JournalBlocks  Block
}

// New computes the format-time geometry.
func New(totalBlocks Block, inodesPerGroup Ino, journalBlocks Block) Geometry {
	g := Geometry{
		TotalBlocks:    totalBlocks,
		BlocksPerGroup: BlocksPerGroup,
		InodesPerGroup: inodesPerGroup,
		GroupCount: uint32(math.DivRoundUp(
			totalBlocks,
			BlocksPerGroup,
		)),
		JournalBlocks: journalBlocks,
	}
	g.JournalStart = 1 + g.DescriptorBlocks()
	return g
}

// FromSuperblock rebuilds the geometry recorded at format time.
func FromSuperblock(sb *Superblock) Geometry {
	return Geometry{
		TotalBlocks:    sb.TotalBlocks,
		BlocksPerGroup: sb.BlocksPerGroup,
		InodesPerGroup: sb.InodesPerGroup,
		GroupCount:     sb.GroupCount,
		JournalStart:   sb.JournalBlock,
		JournalBlocks:  sb.JournalBlocks,
	}
}

// DescriptorBlocks is the size of the group-descriptor table.
func (g *Geometry) DescriptorBlocks() Block {
	return Block(math.DivRoundUp(
		Byte(g.GroupCount)*GroupDescSize,
		BlockSize,
	))
}

func (g *Geometry) GroupBase(group uint32) Block {
	return Block(group) * g.BlocksPerGroup
}

// GroupBlocks is the number of blocks the group actually owns; the last
// group may be short.
func (g *Geometry) GroupBlocks(group uint32) Block {
	base := g.GroupBase(group)
	return math.Min(g.BlocksPerGroup, g.TotalBlocks-base)
}

// BlockBitmap is the absolute block holding the group's block bitmap.
// Group 0's metadata is displaced past the superblock, descriptor table
// and journal region.
func (g *Geometry) BlockBitmap(group uint32) Block {
	if group == 0 {
		return g.JournalStart + g.JournalBlocks
	}
	return g.GroupBase(group)
}

func (g *Geometry) InodeBitmap(group uint32) Block {
	return g.BlockBitmap(group) + 1
}

func (g *Geometry) InodeTable(group uint32) Block {
	return g.InodeBitmap(group) + 1
}

// InodeTableBlocks is the per-group inode table size.
func (g *Geometry) InodeTableBlocks() Block {
	return Block(math.DivRoundUp(
		Byte(g.InodesPerGroup)*InodeSize,
		BlockSize,
	))
}

// FirstData is the group's first allocatable data block.
func (g *Geometry) FirstData(group uint32) Block {
	return g.InodeTable(group) + g.InodeTableBlocks()
}

func (g *Geometry) TotalInodes() Ino {
	return Ino(g.GroupCount) * g.InodesPerGroup
}

// GroupOfBlock locates a block within its group.
func (g *Geometry) GroupOfBlock(b Block) (group uint32, local Block) {
	return uint32(b / g.BlocksPerGroup), b % g.BlocksPerGroup
}

// GroupOfIno locates an inode within its group's table. Inode numbers
// start at 1.
func (g *Geometry) GroupOfIno(ino Ino) (group uint32, local Ino, err error) {
	if ino == InoNil || ino > g.TotalInodes() {
		return 0, 0, fmt.Errorf(
			"inode `%d` out of range (volume has `%d` inodes): %w",
			ino,
			g.TotalInodes(),
			InvalidArgumentErr,
		)
	}
	index := ino - 1
	return uint32(index / g.InodesPerGroup), index % g.InodesPerGroup, nil
}

// InoOf is the inverse of GroupOfIno.
func (g *Geometry) InoOf(group uint32, local Ino) Ino {
	return Ino(group)*g.InodesPerGroup + local + 1
}

// InodeLocation resolves an inode number to the table block holding its
// record and the record's offset within that block.
func (g *Geometry) InodeLocation(ino Ino) (Block, Byte, error) {
	group, local, err := g.GroupOfIno(ino)
	if err != nil {
		return BlockNil, 0, fmt.Errorf("locating inode `%d`: %w", ino, err)
	}
	offset := Byte(local) * InodeSize
	return g.InodeTable(group) + Block(offset/BlockSize), offset % BlockSize, nil
}

// MetadataBlocks counts the group-local blocks reserved for metadata
// (for group 0 that includes the superblock, descriptor table and
// journal).
func (g *Geometry) MetadataBlocks(group uint32) Block {
	return g.FirstData(group) - g.GroupBase(group)
}
