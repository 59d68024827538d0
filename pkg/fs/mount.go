package fs

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/multios/mfs/pkg/alloc"
	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	"github.com/multios/mfs/pkg/journal"
	"github.com/multios/mfs/pkg/layout"
	. "github.com/multios/mfs/pkg/types"
)

// Mount opens a formatted volume: validates the superblock, refuses
// incompatible feature bits, replays the journal, runs an integrity
// scan when the volume is marked dirty or overdue for one, and returns
// a ready handle.
func Mount(dev device.Device, opts MountOptions) (*FileSystem, error) {
	opts.defaults()
	fs := &FileSystem{
		base:   dev,
		op:     &opDevice{cur: dev},
		state:  Mounting,
		opts:   opts,
		fds:    make(map[int]*openFile),
		nextFD: 3, // leave room for the conventional stdio numbers
		log:    opts.Logger,
	}

	buf := make([]byte, BlockSize)
	if err := dev.ReadBlock(0, buf); err != nil {
		return nil, fmt.Errorf("mounting: reading superblock: %w", err)
	}
	if err := encode.DecodeSuperblock(&fs.sb, buf); err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	if err := fs.sb.Validate(); err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	if err := fs.sb.CheckFeatures(); err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	fs.geo = layout.FromSuperblock(&fs.sb)

	fs.journal = journal.New(
		dev,
		fs.geo.JournalStart,
		fs.geo.JournalBlocks,
		DefaultJournalCapacity,
		fs.log,
	)
	if fs.sb.State != StateClean {
		fs.log.WithField("state", fs.sb.State).
			Warn("volume was not cleanly unmounted")
	}
	applied, err := fs.journal.Replay()
	if err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	if applied > 0 {
		// the replay may have rewritten any metadata block, block 0
		// included
		if err := dev.ReadBlock(0, buf); err != nil {
			return nil, fmt.Errorf("mounting: re-reading superblock: %w", err)
		}
		if err := encode.DecodeSuperblock(&fs.sb, buf); err != nil {
			return nil, fmt.Errorf("mounting: %w", err)
		}
	}

	fs.alloc, err = alloc.Load(dev, fs.geo, &fs.sb)
	if err != nil {
		return nil, fmt.Errorf("mounting: %w", err)
	}
	fs.wire()

	if fs.sb.State != StateClean || fs.sb.MountCount >= uint32(fs.sb.MaxMountCount) {
		if err := fs.scan(); err != nil {
			return nil, fmt.Errorf("mounting: %w", err)
		}
		fs.sb.MountCount = 0
	}

	fs.sb.MountCount++
	fs.sb.LastMountTime = uint64(time.Now().Unix())
	fs.sb.State = StateClean
	if !opts.ReadOnly {
		encode.EncodeSuperblock(&fs.sb, buf)
		if err := dev.WriteBlock(0, buf); err != nil {
			return nil, fmt.Errorf("mounting: writing superblock: %w", err)
		}
		if err := dev.Flush(); err != nil {
			return nil, fmt.Errorf("mounting: %w", err)
		}
	}

	if opts.ReadOnly {
		fs.state = ReadOnly
	} else {
		fs.state = Mounted
	}
	fs.log.WithFields(logrus.Fields{
		"mounts":   fs.sb.MountCount,
		"free":     fs.sb.FreeBlocks,
		"replayed": applied,
		"state":    fs.state,
	}).Info("mounted volume")
	return fs, nil
}

// scan verifies the superblock free counters against the bitmaps and
// sweeps orphan inodes (allocated bits whose records carry no links).
// Discrepancies are repaired in favor of the bitmaps.
func (fs *FileSystem) scan() error {
	freeBlocks := fs.alloc.CountFreeBlocks()
	freeInodes := fs.alloc.CountFreeInodes()
	if freeBlocks != fs.sb.FreeBlocks {
		fs.log.WithFields(logrus.Fields{
			"superblock": fs.sb.FreeBlocks,
			"bitmaps":    freeBlocks,
		}).Warn("free-block count mismatch; adopting bitmap count")
		fs.sb.FreeBlocks = freeBlocks
	}
	if freeInodes != fs.sb.FreeInodes {
		fs.log.WithFields(logrus.Fields{
			"superblock": fs.sb.FreeInodes,
			"bitmaps":    freeInodes,
		}).Warn("free-inode count mismatch; adopting bitmap count")
		fs.sb.FreeInodes = freeInodes
	}

	orphans := 0
	for ino := InoRoot + 1; ino <= fs.geo.TotalInodes(); ino++ {
		if !fs.alloc.InoIsAllocated(ino) {
			continue
		}
		var record Inode
		if err := fs.inodes.Get(ino, &record); err != nil {
			return fmt.Errorf("integrity scan: %w", err)
		}
		if record.LinksCount > 0 {
			continue
		}
		if _, err := fs.blocks.Truncate(&record, 0); err != nil {
			return fmt.Errorf(
				"integrity scan: releasing orphan inode `%d`: %w",
				ino,
				err,
			)
		}
		if err := fs.alloc.FreeIno(ino, record.Mode.IsDir()); err != nil {
			return fmt.Errorf("integrity scan: %w", err)
		}
		fs.inodes.Evict(ino)
		orphans++
	}
	if orphans > 0 {
		fs.log.WithField("orphans", orphans).
			Warn("integrity scan released orphan inodes")
		if err := fs.alloc.Flush(fs.base); err != nil {
			return fmt.Errorf("integrity scan: %w", err)
		}
	}
	return nil
}

// Unmount closes every descriptor, flushes buffered metadata and writes
// the superblock with a clean state.
func (fs *FileSystem) Unmount() error {
	if err := fs.mounted(); err != nil {
		return fmt.Errorf("unmounting: %w", err)
	}
	wasReadOnly := fs.state == ReadOnly
	fs.state = Unmounting
	fs.fds = make(map[int]*openFile)

	if !wasReadOnly {
		if err := fs.inodes.FlushBuffered(); err != nil {
			return fs.fault(fmt.Errorf("unmounting: %w", err))
		}
		if err := fs.alloc.Flush(fs.base); err != nil {
			return fs.fault(fmt.Errorf("unmounting: %w", err))
		}
		fs.sb.State = StateClean
		buf := make([]byte, BlockSize)
		encode.EncodeSuperblock(&fs.sb, buf)
		if err := fs.base.WriteBlock(0, buf); err != nil {
			return fs.fault(fmt.Errorf(
				"unmounting: writing superblock: %w",
				err,
			))
		}
		if err := fs.base.Flush(); err != nil {
			return fs.fault(fmt.Errorf("unmounting: %w", err))
		}
	}

	fs.state = Unmounted
	fs.log.Info("unmounted volume")
	return nil
}

// Sync flushes buffered access times and forces device durability for
// everything already committed.
func (fs *FileSystem) Sync() error {
	if err := fs.mounted(); err != nil {
		return fmt.Errorf("syncing: %w", err)
	}
	if fs.state == Mounted {
		if err := fs.inodes.FlushBuffered(); err != nil {
			return fs.fault(fmt.Errorf("syncing: %w", err))
		}
	}
	if err := fs.base.Flush(); err != nil {
		return fs.fault(fmt.Errorf("syncing: %w", err))
	}
	return nil
}

// Stats is a point-in-time snapshot of the volume's counters.
type Stats struct {
	TotalBlocks     Block
	FreeBlocks      Block
	TotalInodes     Ino
	FreeInodes      Ino
	GroupCount      uint32
	MountCount      uint32
	State           MountState
	JournalSequence uint64
	VolumeID        [16]byte
	VolumeLabel     string
}

func (fs *FileSystem) Stats() (Stats, error) {
	if err := fs.mounted(); err != nil {
		return Stats{}, fmt.Errorf("reading volume stats: %w", err)
	}
	label := fs.sb.VolumeLabel[:]
	for len(label) > 0 && label[len(label)-1] == 0 {
		label = label[:len(label)-1]
	}
	return Stats{
		TotalBlocks:     fs.sb.TotalBlocks,
		FreeBlocks:      fs.sb.FreeBlocks,
		TotalInodes:     fs.sb.TotalInodes,
		FreeInodes:      fs.sb.FreeInodes,
		GroupCount:      fs.sb.GroupCount,
		MountCount:      fs.sb.MountCount,
		State:           fs.state,
		JournalSequence: fs.journal.Sequence(),
		VolumeID:        fs.sb.VolumeID,
		VolumeLabel:     string(label),
	}, nil
}
