// Package fs is the façade over a mounted volume: mount/unmount, the
// path-addressed operations, and the per-operation journaling
// discipline. Every mutating operation runs inside a transaction; the
// layers below write through a switchable device that points at the
// open transaction during the operation and at the block device
// otherwise, so bitmap, inode-table and data writes all become journal
// post-images without the layers knowing.
package fs

import (
	"errors"
	"fmt"

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

// MountState is the handle's lifecycle state.
type MountState uint8

const (
	Unmounted MountState = iota
	Mounting
	Mounted
	ReadOnly
	Unmounting
)

func (s MountState) String() string {
	switch s {
	case Unmounted:
		return "Unmounted"
	case Mounting:
		return "Mounting"
	case Mounted:
		return "Mounted"
	case ReadOnly:
		return "ReadOnly"
	case Unmounting:
		return "Unmounting"
	default:
		return fmt.Sprintf("MountState(%d)", uint8(s))
	}
}

const (
	DefaultCacheCapacity = 1024
	DefaultMaxOpenFiles  = 256
)

// MountOptions configure a mount. UID and GID identify the caller for
// every permission check made through this handle.
type MountOptions struct {
	CacheCapacity int
	MaxOpenFiles  int
	UID           uint32
	GID           uint32
	ReadOnly      bool
	Logger        logrus.FieldLogger
}

func (o *MountOptions) defaults() {
	if o.CacheCapacity < 1 {
		o.CacheCapacity = DefaultCacheCapacity
	}
	if o.MaxOpenFiles < 1 {
		o.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
}

// opDevice routes block I/O to the open transaction during a mutating
// operation and to the block device otherwise.
type opDevice struct {
	cur device.Device
}

func (d *opDevice) ReadBlock(b Block, p []byte) error  { return d.cur.ReadBlock(b, p) }
func (d *opDevice) WriteBlock(b Block, p []byte) error { return d.cur.WriteBlock(b, p) }
func (d *opDevice) Flush() error                       { return d.cur.Flush() }
func (d *opDevice) BlockCount() Block                  { return d.cur.BlockCount() }

type openFile struct {
	ino      Ino
	flags    OpenFlags
	position Byte
}

// FileSystem is the handle to a mounted volume. It is the sole owner of
// mutation rights: operations serialize at this boundary.
type FileSystem struct {
	base    device.Device
	op      *opDevice
	sb      Superblock
	geo     layout.Geometry
	journal *journal.Journal
	alloc   *alloc.GroupAllocator
	inodes  *inode.CachingStore
	blocks  blockmap.Map
	io      data.IO
	dir     directory.FileSystem
	state   MountState
	opts    MountOptions
	fds     map[int]*openFile
	nextFD  int
	log     logrus.FieldLogger
}

// wire rebuilds the layer stack over the current allocator and inode
// store. Called at mount and again after an abort reload.
func (fs *FileSystem) wire() {
	table := inode.NewTableStore(fs.op, fs.geo)
	fs.inodes = inode.NewCachingStore(table, fs.opts.CacheCapacity)
	fs.blocks = blockmap.New(fs.op, fs.alloc, fs.inodes)
	fs.io = data.New(fs.op, fs.blocks, fs.inodes)
	fs.dir = directory.FileSystem{IO: &fs.io, Inodes: fs.inodes}
}

// State reports the handle's lifecycle state.
func (fs *FileSystem) State() MountState { return fs.state }

func (fs *FileSystem) mounted() error {
	if fs.state != Mounted && fs.state != ReadOnly {
		return NotMountedErr
	}
	return nil
}

func (fs *FileSystem) writable() error {
	if err := fs.mounted(); err != nil {
		return err
	}
	if fs.state == ReadOnly {
		return ReadOnlyErr
	}
	return nil
}

// begin opens a transaction and points the layer stack at it.
func (fs *FileSystem) begin() (*journal.Txn, error) {
	if err := fs.writable(); err != nil {
		return nil, err
	}
	txn := fs.journal.Begin()
	fs.op.cur = txn
	return txn, nil
}

// commit captures the allocator's dirty state and the superblock into
// the transaction, then makes it durable.
func (fs *FileSystem) commit(txn *journal.Txn) error {
	if err := fs.alloc.Flush(txn); err != nil {
		fs.abort(txn)
		return fs.fault(err)
	}
	buf := make([]byte, BlockSize)
	encode.EncodeSuperblock(&fs.sb, buf)
	if err := txn.WriteBlock(0, buf); err != nil {
		fs.abort(txn)
		return fs.fault(err)
	}
	fs.op.cur = fs.base
	if err := txn.Commit(); err != nil {
		fs.reload()
		return fs.fault(err)
	}
	return nil
}

// abort discards the transaction and reloads the in-memory state from
// disk, since the layers mutated counters and caches that the disk
// never saw.
func (fs *FileSystem) abort(txn *journal.Txn) {
	txn.Abort()
	fs.op.cur = fs.base
	fs.reload()
}

func (fs *FileSystem) reload() {
	buf := make([]byte, BlockSize)
	if err := fs.base.ReadBlock(0, buf); err != nil {
		_ = fs.fault(err)
		return
	}
	var sb Superblock
	if err := encode.DecodeSuperblock(&sb, buf); err != nil {
		_ = fs.fault(err)
		return
	}
	fs.sb = sb
	allocator, err := alloc.Load(fs.base, fs.geo, &fs.sb)
	if err != nil {
		_ = fs.fault(err)
		return
	}
	fs.alloc = allocator
	fs.wire()
}

// fault applies the volume's error policy to a failure and returns the
// error (possibly annotated). CorruptionDetected marks the superblock
// so the next mount replays and scans.
func (fs *FileSystem) fault(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, CorruptionDetectedErr) {
		fs.sb.State = StateError
		buf := make([]byte, BlockSize)
		encode.EncodeSuperblock(&fs.sb, buf)
		// best effort: the state flag only accelerates the next mount
		_ = fs.base.WriteBlock(0, buf)
		_ = fs.base.Flush()
	}
	if !errors.Is(err, IOErr) {
		return err
	}
	switch fs.sb.ErrorPolicy {
	case ErrorsPanic:
		panic(fmt.Sprintf("device fault with Panic error policy: %v", err))
	case ErrorsRemountReadOnly:
		if fs.state == Mounted {
			fs.state = ReadOnly
			fs.log.WithError(err).
				Warn("device fault; remounting read-only")
		}
		return fmt.Errorf("remounted read-only: %w", err)
	default:
		fs.log.WithError(err).Warn("device fault ignored by policy")
		return err
	}
}
