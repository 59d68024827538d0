package fs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/multios/mfs/pkg/alloc"
	"github.com/multios/mfs/pkg/data"
	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/directory"
	"github.com/multios/mfs/pkg/encode"
	"github.com/multios/mfs/pkg/inode"
	"github.com/multios/mfs/pkg/inode/blockmap"
	"github.com/multios/mfs/pkg/journal"
	"github.com/multios/mfs/pkg/layout"
	. "github.com/multios/mfs/pkg/types"
)

// FormatOptions configure a fresh volume. Zero values take defaults.
type FormatOptions struct {
	TotalBlocks    Block // 0: the whole device
	InodesPerGroup Ino
	JournalBlocks  Block
	Features       Features
	MaxMountCount  uint16
	ErrorPolicy    ErrorPolicy
	ReservedPct    uint16
	Label          string
	Logger         logrus.FieldLogger
}

func (o *FormatOptions) defaults(dev device.Device) {
	if o.TotalBlocks == 0 {
		o.TotalBlocks = dev.BlockCount()
	}
	if o.InodesPerGroup == 0 {
		o.InodesPerGroup = DefaultInodesPerGroup
	}
	if o.JournalBlocks == 0 {
		o.JournalBlocks = DefaultJournalBlocks
	}
	if o.Features == 0 {
		o.Features = FeaturesDefault
	}
	if o.MaxMountCount == 0 {
		o.MaxMountCount = DefaultMaxMountCount
	}
	if o.ErrorPolicy == 0 {
		o.ErrorPolicy = ErrorsRemountReadOnly
	}
	if o.ReservedPct == 0 {
		o.ReservedPct = DefaultReservedPct
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// Format initializes an empty file system: superblock, descriptor
// table, journal, per-group bitmaps and inode tables, and the root
// directory.
func Format(dev device.Device, opts FormatOptions) error {
	opts.defaults(dev)
	if opts.TotalBlocks > dev.BlockCount() {
		return fmt.Errorf(
			"formatting: `%d` blocks requested but the device has `%d`: %w",
			opts.TotalBlocks,
			dev.BlockCount(),
			InvalidArgumentErr,
		)
	}
	if opts.Features&FeatureJournaling == 0 {
		return fmt.Errorf(
			"formatting: journaling is mandatory: %w",
			InvalidArgumentErr,
		)
	}
	if unknown := opts.Features &^ FeaturesSupported; unknown != 0 {
		return fmt.Errorf(
			"formatting: unsupported feature bits `%#x`: %w",
			uint32(unknown),
			InvalidArgumentErr,
		)
	}
	// the on-disk inode bitmap is one block and whole bytes only
	if opts.InodesPerGroup%8 != 0 || opts.InodesPerGroup > Ino(BlockSize)*8 {
		return fmt.Errorf(
			"formatting: `%d` inodes per group: must be a multiple of 8 "+
				"and at most `%d`: %w",
			opts.InodesPerGroup,
			Ino(BlockSize)*8,
			InvalidArgumentErr,
		)
	}

	geo := layout.New(opts.TotalBlocks, opts.InodesPerGroup, opts.JournalBlocks)
	if geo.FirstData(0) >= geo.GroupBlocks(0) {
		return fmt.Errorf(
			"formatting: `%d` blocks leave no data blocks after metadata "+
				"and a `%d`-block journal: %w",
			opts.TotalBlocks,
			opts.JournalBlocks,
			InvalidArgumentErr,
		)
	}

	now := uint64(time.Now().Unix())
	sb := Superblock{
		Magic:          SuperblockMagic,
		Version:        SuperblockVersion,
		State:          StateClean,
		BlockSize:      BlockSize,
		BlocksPerGroup: geo.BlocksPerGroup,
		TotalBlocks:    geo.TotalBlocks,
		TotalInodes:    geo.TotalInodes(),
		GroupCount:     geo.GroupCount,
		InodesPerGroup: geo.InodesPerGroup,
		FirstDataBlock: geo.FirstData(0),
		JournalBlock:   geo.JournalStart,
		JournalBlocks:  geo.JournalBlocks,
		Features:       opts.Features,
		CreateTime:     now,
		MaxMountCount:  opts.MaxMountCount,
		ErrorPolicy:    opts.ErrorPolicy,
		ReservedPct:    opts.ReservedPct,
		AllocHint:      geo.FirstData(0),
	}
	id := uuid.New()
	copy(sb.VolumeID[:], id[:])
	copy(sb.VolumeLabel[:], opts.Label)

	allocator := alloc.NewFormat(geo, &sb)
	for g := uint32(0); g < geo.GroupCount; g++ {
		for b := geo.GroupBase(g); b < geo.FirstData(g); b++ {
			allocator.Reserve(b)
		}
		// a short last group pre-marks the blocks it doesn't own
		for b := geo.GroupBase(g) + geo.GroupBlocks(g); b < geo.GroupBase(g)+geo.BlocksPerGroup; b++ {
			allocator.Reserve(b)
		}
	}
	if err := allocator.ReserveIno(InoRoot); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}
	allocator.InitCounts()

	// zero the inode tables so stale device contents never decode as
	// live inodes
	zero := make([]byte, BlockSize)
	for g := uint32(0); g < geo.GroupCount; g++ {
		table := geo.InodeTable(g)
		for b := Block(0); b < geo.InodeTableBlocks(); b++ {
			if err := dev.WriteBlock(table+b, zero); err != nil {
				return fmt.Errorf(
					"formatting: zeroing inode table of group `%d`: %w",
					g,
					err,
				)
			}
		}
	}

	jnl := journal.New(
		dev,
		geo.JournalStart,
		geo.JournalBlocks,
		DefaultJournalCapacity,
		opts.Logger,
	)
	if err := jnl.Format(); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	// root directory, written directly: nothing can race a format
	table := inode.NewTableStore(dev, geo)
	blocks := blockmap.New(dev, allocator, table)
	io := data.New(dev, blocks, table)
	dirfs := directory.FileSystem{IO: &io, Inodes: table}

	root := Inode{
		Ino:        InoRoot,
		Mode:       ModeDir | 0o755,
		CreateTime: now,
		ModifyTime: now,
		AccessTime: now,
	}
	if err := table.Put(&root); err != nil {
		return fmt.Errorf("formatting: writing root inode: %w", err)
	}
	if err := directory.InitEntries(&dirfs, &root, &root); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	if err := allocator.Flush(dev); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}
	buf := make([]byte, BlockSize)
	encode.EncodeSuperblock(&sb, buf)
	if err := dev.WriteBlock(0, buf); err != nil {
		return fmt.Errorf("formatting: writing superblock: %w", err)
	}
	if err := dev.Flush(); err != nil {
		return fmt.Errorf("formatting: %w", err)
	}

	opts.Logger.WithFields(logrus.Fields{
		"blocks":  sb.TotalBlocks,
		"inodes":  sb.TotalInodes,
		"groups":  sb.GroupCount,
		"journal": sb.JournalBlocks,
		"volume":  id.String(),
	}).Info("formatted volume")
	return nil
}
