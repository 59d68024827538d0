package types

// GroupDescSize is the fixed on-disk size of one block-group descriptor.
const GroupDescSize Byte = 32

// GroupFlags mirror the descriptor flag bits.
type GroupFlags uint16

const (
	GroupInodeUninit  GroupFlags = 0x0001
	GroupBlocksUninit GroupFlags = 0x0002
	GroupITableZeroed GroupFlags = 0x0004
)

// GroupDesc describes one block group: where its bitmaps and inode table
// live (absolute block numbers) and how much of it is free.
type GroupDesc struct {
	BlockBitmap Block
	InodeBitmap Block
	InodeTable  Block
	FreeBlocks  uint16
	FreeInodes  uint16
	UsedDirs    uint16
	Flags       GroupFlags
	Checksum    uint16
}
