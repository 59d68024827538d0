package types

// Block is a physical block number. Pointers on disk are 32-bit
// little-endian; block 0 holds the superblock, so BlockNil doubles as the
// "unallocated hole" marker in block maps.
type Block uint32

// Byte is a byte count or byte offset.
type Byte int64

const (
	BlockSize        Byte = 4096
	BlockPointerSize Byte = 4

	BlockNil Block = 0

	// PointersPerBlock is how many block pointers fit in one block.
	PointersPerBlock Block = Block(BlockSize / BlockPointerSize)

	// BlocksPerGroup is the maximum number of blocks owned by one block
	// group; each group carries its own bitmaps and inode table.
	BlocksPerGroup Block = 8192
)
