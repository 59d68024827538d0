package alloc

import (
	"fmt"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	"github.com/multios/mfs/pkg/layout"
	"github.com/multios/mfs/pkg/math"
	. "github.com/multios/mfs/pkg/types"
)

type group struct {
	desc        GroupDesc
	blocks      Bitmap
	inodes      Bitmap
	blocksDirty bool
	inodesDirty bool
}

// GroupAllocator owns every group's bitmaps and descriptor plus the
// superblock free counters. Allocation is local to a group until the
// group is exhausted; the lowest block number wins among equal
// candidates. Reserved metadata blocks are pre-marked used at format
// time and never reach the free pool.
type GroupAllocator struct {
	geo       layout.Geometry
	sb        *Superblock
	groups    []group
	descDirty bool
}

// NewFormat builds a fresh allocator with every bit clear; Format
// reserves the metadata regions afterwards.
func NewFormat(geo layout.Geometry, sb *Superblock) *GroupAllocator {
	a := &GroupAllocator{geo: geo, sb: sb}
	a.groups = make([]group, geo.GroupCount)
	for i := range a.groups {
		a.groups[i] = group{
			desc: GroupDesc{
				BlockBitmap: geo.BlockBitmap(uint32(i)),
				InodeBitmap: geo.InodeBitmap(uint32(i)),
				InodeTable:  geo.InodeTable(uint32(i)),
			},
			blocks: New(uint64(geo.BlocksPerGroup)),
			inodes: New(uint64(geo.InodesPerGroup)),
		}
	}
	return a
}

// Load reads the descriptor table and every group's bitmaps.
func Load(
	dev device.Device,
	geo layout.Geometry,
	sb *Superblock,
) (*GroupAllocator, error) {
	a := &GroupAllocator{geo: geo, sb: sb}
	descs, err := readDescriptors(dev, &geo)
	if err != nil {
		return nil, fmt.Errorf("loading allocator: %w", err)
	}
	a.groups = make([]group, geo.GroupCount)
	buf := make([]byte, BlockSize)
	for i := range a.groups {
		a.groups[i].desc = descs[i]
		if err := dev.ReadBlock(descs[i].BlockBitmap, buf); err != nil {
			return nil, fmt.Errorf(
				"loading allocator: reading block bitmap for group `%d`: %w",
				i,
				err,
			)
		}
		// sized like New: a bit count that is not a multiple of 8 still
		// owns its partial tail byte
		blockBytes := make([]byte, math.DivRoundUp(geo.BlocksPerGroup, bitsPerByte))
		copy(blockBytes, buf)
		a.groups[i].blocks = FromBytes(
			blockBytes,
			uint64(geo.BlocksPerGroup),
		)
		if err := dev.ReadBlock(descs[i].InodeBitmap, buf); err != nil {
			return nil, fmt.Errorf(
				"loading allocator: reading inode bitmap for group `%d`: %w",
				i,
				err,
			)
		}
		inodeBytes := make([]byte, math.DivRoundUp(geo.InodesPerGroup, bitsPerByte))
		copy(inodeBytes, buf)
		a.groups[i].inodes = FromBytes(
			inodeBytes,
			uint64(geo.InodesPerGroup),
		)
	}
	return a, nil
}

// Reserve pre-marks a block used without touching the free counters;
// callers use it for metadata regions at format time.
func (a *GroupAllocator) Reserve(b Block) {
	g, local := a.geo.GroupOfBlock(b)
	a.groups[g].blocks.Reserve(uint64(local))
	a.groups[g].blocksDirty = true
}

// ReserveIno pre-marks an inode used (the root inode at format time).
func (a *GroupAllocator) ReserveIno(ino Ino) error {
	g, local, err := a.geo.GroupOfIno(ino)
	if err != nil {
		return fmt.Errorf("reserving inode `%d`: %w", ino, err)
	}
	a.groups[g].inodes.Reserve(uint64(local))
	a.groups[g].inodesDirty = true
	return nil
}

// IsFree reports whether a block is unallocated.
func (a *GroupAllocator) IsFree(b Block) bool {
	g, local := a.geo.GroupOfBlock(b)
	return !a.groups[g].blocks.Test(uint64(local))
}

// InoIsAllocated reports whether the inode bitmap bit is set.
func (a *GroupAllocator) InoIsAllocated(ino Ino) bool {
	g, local, err := a.geo.GroupOfIno(ino)
	if err != nil {
		return false
	}
	return a.groups[g].inodes.Test(uint64(local))
}

// Allocate returns `count` free blocks, contiguous when possible:
// first the run starting at `hint`, then the lowest whole run anywhere,
// then ascending free blocks until the count is reached.
func (a *GroupAllocator) Allocate(count int, hint Block) ([]Block, error) {
	blocks, err := a.findFree(count, hint)
	if err != nil {
		return nil, fmt.Errorf("allocating `%d` blocks: %w", count, err)
	}
	for _, b := range blocks {
		g, local := a.geo.GroupOfBlock(b)
		a.groups[g].blocks.Reserve(uint64(local))
		a.groups[g].blocksDirty = true
		a.groups[g].desc.FreeBlocks--
		a.descDirty = true
	}
	a.sb.FreeBlocks -= Block(len(blocks))
	a.sb.AllocHint = blocks[len(blocks)-1] + 1
	return blocks, nil
}

// FindFree is the read-only probe: the blocks Allocate would return,
// without marking them.
func (a *GroupAllocator) FindFree(count int) ([]Block, error) {
	blocks, err := a.findFree(count, BlockNil)
	if err != nil {
		return nil, fmt.Errorf("probing for `%d` free blocks: %w", count, err)
	}
	return blocks, nil
}

func (a *GroupAllocator) findFree(count int, hint Block) ([]Block, error) {
	if count < 1 {
		return nil, fmt.Errorf("count `%d`: %w", count, InvalidArgumentErr)
	}
	if int(a.sb.FreeBlocks) < count {
		return nil, DiskFullErr
	}
	want := uint64(count)

	// a free run at the hinted placement wins outright
	if hint != BlockNil && hint < a.geo.TotalBlocks {
		g, local := a.geo.GroupOfBlock(hint)
		if a.groups[g].blocks.RunLength(uint64(local), want) >= want {
			return runOf(hint, count), nil
		}
	}

	// otherwise the lowest whole run anywhere
	for g := range a.groups {
		if start, ok := a.groups[g].blocks.FindRun(want); ok {
			return runOf(a.geo.GroupBase(uint32(g))+Block(start), count), nil
		}
	}

	// otherwise concatenate smaller runs in ascending order
	blocks := make([]Block, 0, count)
	for g := range a.groups {
		var k uint64
		for len(blocks) < count {
			start, ok := a.groups[g].blocks.FirstFree(k)
			if !ok {
				break
			}
			blocks = append(blocks, a.geo.GroupBase(uint32(g))+Block(start))
			k = start + 1
		}
		if len(blocks) == count {
			return blocks, nil
		}
	}
	return nil, DiskFullErr
}

func runOf(start Block, count int) []Block {
	blocks := make([]Block, count)
	for i := range blocks {
		blocks[i] = start + Block(i)
	}
	return blocks
}

// AllocBlock is the single-block path used by the block map; the hint
// is the previously mapped physical block.
func (a *GroupAllocator) AllocBlock(hint Block) (Block, error) {
	if hint == BlockNil {
		hint = a.sb.AllocHint
	}
	blocks, err := a.Allocate(1, hint)
	if err != nil {
		return BlockNil, err
	}
	return blocks[0], nil
}

// Deallocate returns blocks to the free pool. It never fails; freeing a
// block that is already free is a no-op.
func (a *GroupAllocator) Deallocate(blocks []Block) {
	for _, b := range blocks {
		a.FreeBlock(b)
	}
}

func (a *GroupAllocator) FreeBlock(b Block) {
	g, local := a.geo.GroupOfBlock(b)
	if !a.groups[g].blocks.Test(uint64(local)) {
		return
	}
	a.groups[g].blocks.Free(uint64(local))
	a.groups[g].blocksDirty = true
	a.groups[g].desc.FreeBlocks++
	a.descDirty = true
	a.sb.FreeBlocks++
}

// AllocIno finds a free inode bit, preferring groups with free inodes
// in ascending order, and returns the global inode number.
func (a *GroupAllocator) AllocIno(dir bool) (Ino, error) {
	for g := range a.groups {
		local, ok := a.groups[g].inodes.FirstFree(0)
		if !ok {
			continue
		}
		a.groups[g].inodes.Reserve(local)
		a.groups[g].inodesDirty = true
		a.groups[g].desc.FreeInodes--
		if dir {
			a.groups[g].desc.UsedDirs++
		}
		a.descDirty = true
		a.sb.FreeInodes--
		return a.geo.InoOf(uint32(g), Ino(local)), nil
	}
	return InoNil, fmt.Errorf("allocating inode: %w", DiskFullErr)
}

func (a *GroupAllocator) FreeIno(ino Ino, dir bool) error {
	g, local, err := a.geo.GroupOfIno(ino)
	if err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", ino, err)
	}
	if !a.groups[g].inodes.Test(uint64(local)) {
		return nil
	}
	a.groups[g].inodes.Free(uint64(local))
	a.groups[g].inodesDirty = true
	a.groups[g].desc.FreeInodes++
	if dir {
		a.groups[g].desc.UsedDirs--
	}
	a.descDirty = true
	a.sb.FreeInodes++
	return nil
}

// InitCounts seeds the descriptor and superblock free counters from the
// bitmaps; Format calls this once after reserving metadata.
func (a *GroupAllocator) InitCounts() {
	var freeBlocks Block
	var freeInodes Ino
	for g := range a.groups {
		gb := Block(a.groups[g].blocks.CountFree())
		gi := Ino(a.groups[g].inodes.CountFree())
		a.groups[g].desc.FreeBlocks = uint16(gb)
		a.groups[g].desc.FreeInodes = uint16(gi)
		freeBlocks += gb
		freeInodes += gi
	}
	a.descDirty = true
	a.sb.FreeBlocks = freeBlocks
	a.sb.FreeInodes = freeInodes
}

// CountFreeBlocks recomputes the free-block population from the bitmaps
// (integrity scans compare this against the superblock).
func (a *GroupAllocator) CountFreeBlocks() Block {
	var n Block
	for g := range a.groups {
		n += Block(a.groups[g].blocks.CountFree())
	}
	return n
}

func (a *GroupAllocator) CountFreeInodes() Ino {
	var n Ino
	for g := range a.groups {
		n += Ino(a.groups[g].inodes.CountFree())
	}
	return n
}

// Descriptor exposes a group's descriptor (integrity scans and stat).
func (a *GroupAllocator) Descriptor(group uint32) GroupDesc {
	return a.groups[group].desc
}

// Flush writes dirty bitmaps and the descriptor table through dev.
// During an operation dev is the open transaction, so bitmap updates
// ride the journal.
func (a *GroupAllocator) Flush(dev device.Device) error {
	buf := make([]byte, BlockSize)
	for g := range a.groups {
		if a.groups[g].blocksDirty {
			fillBlock(buf, a.groups[g].blocks.Bytes())
			if err := dev.WriteBlock(a.groups[g].desc.BlockBitmap, buf); err != nil {
				return fmt.Errorf(
					"flushing block bitmap for group `%d`: %w",
					g,
					err,
				)
			}
			a.groups[g].blocksDirty = false
		}
		if a.groups[g].inodesDirty {
			fillBlock(buf, a.groups[g].inodes.Bytes())
			if err := dev.WriteBlock(a.groups[g].desc.InodeBitmap, buf); err != nil {
				return fmt.Errorf(
					"flushing inode bitmap for group `%d`: %w",
					g,
					err,
				)
			}
			a.groups[g].inodesDirty = false
		}
	}
	if a.descDirty {
		if err := a.writeDescriptors(dev); err != nil {
			return fmt.Errorf("flushing group descriptors: %w", err)
		}
		a.descDirty = false
	}
	return nil
}

func fillBlock(dst, src []byte) {
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func (a *GroupAllocator) writeDescriptors(dev device.Device) error {
	descsPerBlock := int(BlockSize / GroupDescSize)
	buf := make([]byte, BlockSize)
	for blockIdx := Block(0); blockIdx < a.geo.DescriptorBlocks(); blockIdx++ {
		for i := range buf {
			buf[i] = 0
		}
		base := int(blockIdx) * descsPerBlock
		for i := 0; i < descsPerBlock && base+i < len(a.groups); i++ {
			var record [GroupDescSize]byte
			encode.EncodeGroupDesc(&a.groups[base+i].desc, &record)
			copy(buf[Byte(i)*GroupDescSize:], record[:])
		}
		if err := dev.WriteBlock(1+blockIdx, buf); err != nil {
			return fmt.Errorf(
				"writing descriptor table block `%d`: %w",
				blockIdx,
				err,
			)
		}
	}
	return nil
}

func readDescriptors(
	dev device.Device,
	geo *layout.Geometry,
) ([]GroupDesc, error) {
	descsPerBlock := int(BlockSize / GroupDescSize)
	descs := make([]GroupDesc, geo.GroupCount)
	buf := make([]byte, BlockSize)
	for blockIdx := Block(0); blockIdx < geo.DescriptorBlocks(); blockIdx++ {
		if err := dev.ReadBlock(1+blockIdx, buf); err != nil {
			return nil, fmt.Errorf(
				"reading descriptor table block `%d`: %w",
				blockIdx,
				err,
			)
		}
		base := int(blockIdx) * descsPerBlock
		for i := 0; i < descsPerBlock && base+i < len(descs); i++ {
			record := (*[GroupDescSize]byte)(buf[Byte(i)*GroupDescSize:])
			if err := encode.DecodeGroupDesc(&descs[base+i], record); err != nil {
				return nil, fmt.Errorf(
					"decoding descriptor for group `%d`: %w",
					base+i,
					err,
				)
			}
		}
	}
	return descs, nil
}
