package encode

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

const (
	gdBlockBitmapStart Byte = 0
	gdInodeBitmapStart Byte = 4
	gdInodeTableStart  Byte = 8
	gdFreeBlocksStart  Byte = 12
	gdFreeInodesStart  Byte = 14
	gdUsedDirsStart    Byte = 16
	gdFlagsStart       Byte = 18
	gdChecksumStart    Byte = 20
	// bytes 22..32 are reserved padding
)

func EncodeGroupDesc(gd *GroupDesc, b *[GroupDescSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	putBlock(p, gdBlockBitmapStart, gd.BlockBitmap)
	putBlock(p, gdInodeBitmapStart, gd.InodeBitmap)
	putBlock(p, gdInodeTableStart, gd.InodeTable)
	putU16(p, gdFreeBlocksStart, gd.FreeBlocks)
	putU16(p, gdFreeInodesStart, gd.FreeInodes)
	putU16(p, gdUsedDirsStart, gd.UsedDirs)
	putU16(p, gdFlagsStart, uint16(gd.Flags))
	gd.Checksum = Checksum16(p[:gdChecksumStart])
	putU16(p, gdChecksumStart, gd.Checksum)
}

func DecodeGroupDesc(gd *GroupDesc, b *[GroupDescSize]byte) error {
	p := b[:]
	stored := getU16(p, gdChecksumStart)
	if computed := Checksum16(p[:gdChecksumStart]); computed != stored {
		return fmt.Errorf(
			"group descriptor checksum: wanted `%#04x`; found `%#04x`: %w",
			computed,
			stored,
			CorruptionDetectedErr,
		)
	}
	gd.BlockBitmap = getBlock(p, gdBlockBitmapStart)
	gd.InodeBitmap = getBlock(p, gdInodeBitmapStart)
	gd.InodeTable = getBlock(p, gdInodeTableStart)
	gd.FreeBlocks = getU16(p, gdFreeBlocksStart)
	gd.FreeInodes = getU16(p, gdFreeInodesStart)
	gd.UsedDirs = getU16(p, gdUsedDirsStart)
	gd.Flags = GroupFlags(getU16(p, gdFlagsStart))
	gd.Checksum = stored
	return nil
}
