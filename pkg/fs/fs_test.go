package fs

import (
	"bytes"
	"fmt"
	stdio "io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(stdio.Discard)
	return log
}

func testDevice(t *testing.T) *device.Memory {
	t.Helper()
	dev := device.NewMemory(8192)
	require.NoError(t, Format(dev, FormatOptions{
		JournalBlocks: 64,
		Label:         "scratch",
		Logger:        quietLogger(),
	}))
	return dev
}

func mountAs(t *testing.T, dev device.Device, uid, gid uint32) *FileSystem {
	t.Helper()
	fs, err := Mount(dev, MountOptions{UID: uid, GID: gid, Logger: quietLogger()})
	require.NoError(t, err)
	return fs
}

// testVolume formats a memory device and mounts it as the superuser.
func testVolume(t *testing.T) (*FileSystem, *device.Memory) {
	t.Helper()
	dev := testDevice(t)
	return mountAs(t, dev, 0, 0), dev
}

func TestFormatMountStats(t *testing.T) {
	fs, _ := testVolume(t)

	stats, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, Block(8192), stats.TotalBlocks)
	require.Equal(t, uint32(1), stats.GroupCount)
	require.Equal(t, uint32(1), stats.MountCount)
	require.Equal(t, Mounted, stats.State)
	require.Equal(t, "scratch", stats.VolumeLabel)
	// the root inode is the only one in use
	require.Equal(t, Ino(1023), stats.FreeInodes)

	root, err := fs.Stat(InoRoot)
	require.NoError(t, err)
	require.True(t, root.Mode.IsDir())
	require.Equal(t, uint16(2), root.LinksCount)
}

func TestFormatRejectsBadOptions(t *testing.T) {
	dev := device.NewMemory(64)
	// too small to hold metadata, a journal and any data
	require.ErrorIs(
		t,
		Format(dev, FormatOptions{Logger: quietLogger()}),
		InvalidArgumentErr,
	)

	dev = device.NewMemory(8192)
	require.ErrorIs(
		t,
		Format(dev, FormatOptions{
			Features: FeaturesDefault | FeatureCompression,
			Logger:   quietLogger(),
		}),
		InvalidArgumentErr,
	)

	// the inode bitmap is whole bytes in a single block
	require.ErrorIs(
		t,
		Format(dev, FormatOptions{
			InodesPerGroup: 100,
			Logger:         quietLogger(),
		}),
		InvalidArgumentErr,
	)
	require.ErrorIs(
		t,
		Format(dev, FormatOptions{
			InodesPerGroup: 40000,
			Logger:         quietLogger(),
		}),
		InvalidArgumentErr,
	)
}

func TestMultiGroupVolume(t *testing.T) {
	dev := device.NewMemory(3 * BlocksPerGroup)
	require.NoError(t, Format(dev, FormatOptions{
		InodesPerGroup: 64,
		JournalBlocks:  64,
		Label:          "spread",
		Logger:         quietLogger(),
	}))
	fs := mountAs(t, dev, 0, 0)

	stats, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, uint32(3), stats.GroupCount)
	require.Equal(t, Ino(192), stats.TotalInodes)
	require.Equal(t, Ino(191), stats.FreeInodes)
	freeBlocks := stats.FreeBlocks

	// group 0 holds 64 inodes, so 100 files spill into group 1
	inos := make([]Ino, 0, 100)
	for i := 0; i < 100; i++ {
		ino, err := fs.CreateFile(InoRoot, fmt.Sprintf("f%03d", i), 0, 0, 0o644)
		require.NoError(t, err)
		inos = append(inos, ino)
	}
	if inos[63] != 65 {
		t.Fatalf("wanted the 64th file at inode `65`; found `%d`", inos[63])
	}

	fd, err := fs.Open("/f099", OpenWrite)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("second group"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	stats, err = fs.Stats()
	require.NoError(t, err)
	require.Equal(t, Ino(91), stats.FreeInodes)
	require.NoError(t, fs.Unmount())

	// a remount reloads three descriptors and both groups' bitmaps
	fs = mountAs(t, dev, 0, 0)
	stats, err = fs.Stats()
	require.NoError(t, err)
	require.Equal(t, uint32(2), stats.MountCount)
	require.Equal(t, Ino(91), stats.FreeInodes)

	fd, err = fs.Open("/f099", OpenRead)
	require.NoError(t, err)
	found := make([]byte, 32)
	n, err := fs.Read(fd, found)
	require.NoError(t, err)
	require.Equal(t, []byte("second group"), found[:n])
	require.NoError(t, fs.Close(fd))

	// removing everything restores both groups' free counts
	for i := 0; i < 100; i++ {
		require.NoError(t, fs.Unlink(InoRoot, fmt.Sprintf("f%03d", i)))
	}
	stats, err = fs.Stats()
	require.NoError(t, err)
	require.Equal(t, Ino(191), stats.FreeInodes)
	require.Equal(t, freeBlocks, stats.FreeBlocks)
}

func TestMountRefusesUnknownFeatures(t *testing.T) {
	dev := testDevice(t)

	// flip on a reserved feature bit behind the implementation's back
	buf := make([]byte, BlockSize)
	require.NoError(t, dev.ReadBlock(0, buf))
	var sb Superblock
	require.NoError(t, encode.DecodeSuperblock(&sb, buf))
	sb.Features |= FeatureCompression
	encode.EncodeSuperblock(&sb, buf)
	require.NoError(t, dev.WriteBlock(0, buf))

	_, err := Mount(dev, MountOptions{Logger: quietLogger()})
	require.ErrorIs(t, err, UnsupportedOperationErr)
}

func TestFileWriteReadStat(t *testing.T) {
	fs, _ := testVolume(t)

	fd, err := fs.Open("/a.txt", OpenCreate|OpenWrite)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte{0x5A}, 10000)
	n, err := fs.Write(fd, payload)
	require.NoError(t, err)
	require.Equal(t, 10000, n)
	require.NoError(t, fs.Close(fd))

	stat, err := fs.StatPath("/a.txt")
	require.NoError(t, err)
	require.True(t, stat.Mode.IsRegular())
	require.Equal(t, Mode(0o644), stat.Mode.Perm())
	require.Equal(t, Byte(10000), stat.Size)
	if stat.BlockCount != 3 {
		t.Fatalf("wanted `3` blocks; found `%d`", stat.BlockCount)
	}
	require.Equal(t, uint16(1), stat.LinksCount)

	fd, err = fs.Open("/a.txt", OpenRead)
	require.NoError(t, err)
	found := make([]byte, 10000)
	n, err = fs.Read(fd, found)
	require.NoError(t, err)
	require.Equal(t, 10000, n)
	require.Equal(t, payload, found)
	require.NoError(t, fs.Close(fd))
}

func TestOpenFlags(t *testing.T) {
	fs, _ := testVolume(t)

	_, err := fs.Open("/x", 0)
	require.ErrorIs(t, err, InvalidArgumentErr)
	_, err = fs.Open("/x", OpenRead)
	require.ErrorIs(t, err, NotFoundErr)
	_, err = fs.Open("x", OpenRead)
	require.ErrorIs(t, err, InvalidPathErr)

	fd, err := fs.Open("/x", OpenCreate|OpenWrite)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("first"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	// truncate empties the file before the first write
	fd, err = fs.Open("/x", OpenWrite|OpenTruncate)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("second"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	stat, err := fs.StatPath("/x")
	require.NoError(t, err)
	require.Equal(t, Byte(6), stat.Size)

	// append positions every write at the end regardless of seeks
	fd, err = fs.Open("/x", OpenWrite|OpenAppend)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("+tail"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	fd, err = fs.Open("/x", OpenRead)
	require.NoError(t, err)
	found := make([]byte, 32)
	n, err := fs.Read(fd, found)
	require.NoError(t, err)
	require.Equal(t, []byte("second+tail"), found[:n])
	require.NoError(t, fs.Close(fd))
}

func TestWriteAfterUnlinkFails(t *testing.T) {
	fs, _ := testVolume(t)

	fd, err := fs.Open("/doomed", OpenCreate|OpenWrite)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("before"))
	require.NoError(t, err)

	require.NoError(t, fs.Unlink(InoRoot, "doomed"))
	after, err := fs.Stats()
	require.NoError(t, err)

	// the descriptor outlived the file; a write must not resurrect the
	// freed inode or reclaim its blocks
	_, err = fs.Write(fd, []byte("zombie"))
	require.ErrorIs(t, err, BadDescriptorErr)

	stats, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, after.FreeBlocks, stats.FreeBlocks)
	require.Equal(t, after.FreeInodes, stats.FreeInodes)
	require.NoError(t, fs.Close(fd))
}

func TestSeek(t *testing.T) {
	fs, _ := testVolume(t)

	fd, err := fs.Open("/s", OpenCreate|OpenRead|OpenWrite)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("hello world"))
	require.NoError(t, err)

	position, err := fs.Seek(fd, 6, stdio.SeekStart)
	require.NoError(t, err)
	require.Equal(t, Byte(6), position)
	found := make([]byte, 5)
	_, err = fs.Read(fd, found)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), found)

	position, err = fs.Seek(fd, -5, stdio.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, Byte(6), position)

	_, err = fs.Seek(fd, -100, stdio.SeekCurrent)
	require.ErrorIs(t, err, InvalidArgumentErr)
	_, err = fs.Seek(fd, 0, 99)
	require.ErrorIs(t, err, InvalidArgumentErr)
	require.NoError(t, fs.Close(fd))
}

func TestBadDescriptor(t *testing.T) {
	fs, _ := testVolume(t)
	_, err := fs.Read(42, make([]byte, 1))
	require.ErrorIs(t, err, BadDescriptorErr)
	require.ErrorIs(t, fs.Close(42), BadDescriptorErr)
}

func TestOpenFileLimit(t *testing.T) {
	dev := testDevice(t)
	fs, err := Mount(dev, MountOptions{
		MaxOpenFiles: 2,
		Logger:       quietLogger(),
	})
	require.NoError(t, err)

	fd, err := fs.Open("/f", OpenCreate|OpenWrite)
	require.NoError(t, err)
	_, err = fs.Open("/f", OpenRead)
	require.NoError(t, err)
	_, err = fs.Open("/f", OpenRead)
	require.ErrorIs(t, err, TooManyOpenFilesErr)
	_ = fd
}

func TestDirectoryLifecycle(t *testing.T) {
	fs, _ := testVolume(t)

	before, err := fs.Stats()
	require.NoError(t, err)

	dir, err := fs.CreateDirectory(InoRoot, "dir", 0, 0, 0o755)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		_, err := fs.CreateFile(dir, fmt.Sprintf("f%d", i), 0, 0, 0o644)
		require.NoError(t, err)
	}
	entries, err := fs.ReadDir(dir)
	require.NoError(t, err)
	// 300 files plus "." and ".."
	require.Len(t, entries, 302)

	require.ErrorIs(t, fs.Rmdir(InoRoot, "dir"), NotEmptyErr)

	for i := 0; i < 300; i++ {
		require.NoError(t, fs.Unlink(dir, fmt.Sprintf("f%d", i)))
	}
	require.NoError(t, fs.Rmdir(InoRoot, "dir"))

	after, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, before.FreeInodes, after.FreeInodes)
	require.Equal(t, before.FreeBlocks, after.FreeBlocks)
}

func TestUnlinkKindMismatch(t *testing.T) {
	fs, _ := testVolume(t)
	_, err := fs.CreateDirectory(InoRoot, "d", 0, 0, 0o755)
	require.NoError(t, err)
	_, err = fs.CreateFile(InoRoot, "f", 0, 0, 0o644)
	require.NoError(t, err)

	require.ErrorIs(t, fs.Unlink(InoRoot, "d"), IsADirErr)
	require.ErrorIs(t, fs.Rmdir(InoRoot, "f"), NotADirErr)
	require.ErrorIs(t, fs.Unlink(InoRoot, "ghost"), NotFoundErr)
}

func TestDirectoryLinkCounts(t *testing.T) {
	fs, _ := testVolume(t)

	parent, err := fs.CreateDirectory(InoRoot, "parent", 0, 0, 0o755)
	require.NoError(t, err)
	stat, err := fs.Stat(parent)
	require.NoError(t, err)
	// "." plus the entry in the root
	require.Equal(t, uint16(2), stat.LinksCount)

	_, err = fs.CreateDirectory(parent, "child", 0, 0, 0o755)
	require.NoError(t, err)
	stat, err = fs.Stat(parent)
	require.NoError(t, err)
	// the child's ".." adds one
	require.Equal(t, uint16(3), stat.LinksCount)

	require.NoError(t, fs.Rmdir(parent, "child"))
	stat, err = fs.Stat(parent)
	require.NoError(t, err)
	require.Equal(t, uint16(2), stat.LinksCount)
}

func TestTruncateReleasesIndirectTrees(t *testing.T) {
	fs, _ := testVolume(t)

	ino, err := fs.CreateFile(InoRoot, "big.bin", 0, 0, 0o644)
	require.NoError(t, err)
	fd, err := fs.Open("/big.bin", OpenWrite)
	require.NoError(t, err)

	// 5 MiB in journal-sized bites: 1,280 data blocks, reaching through
	// the singly- and doubly-indirect trees
	chunk := bytes.Repeat([]byte{0xA5}, 64*1024)
	for written := 0; written < 5*1024*1024; written += len(chunk) {
		n, err := fs.Write(fd, chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
	require.NoError(t, fs.Close(fd))

	stat, err := fs.Stat(ino)
	require.NoError(t, err)
	require.Equal(t, Byte(5*1024*1024), stat.Size)
	// 1,280 data blocks + singly root + doubly root + one singly under it
	if stat.BlockCount != 1283 {
		t.Fatalf("wanted `1283` blocks; found `%d`", stat.BlockCount)
	}

	before, err := fs.Stats()
	require.NoError(t, err)
	require.NoError(t, fs.Truncate(ino, 100))
	after, err := fs.Stats()
	require.NoError(t, err)

	// 1,279 data blocks and all three indirect blocks come back
	if delta := after.FreeBlocks - before.FreeBlocks; delta != 1282 {
		t.Fatalf("wanted `1282` freed blocks; found `%d`", delta)
	}
	stat, err = fs.Stat(ino)
	require.NoError(t, err)
	require.Equal(t, Byte(100), stat.Size)
	require.Equal(t, uint32(1), stat.BlockCount)
}

func TestDurabilityAcrossRemount(t *testing.T) {
	fs, dev := testVolume(t)

	fd, err := fs.Open("/keep.txt", OpenCreate|OpenWrite)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("survives the remount"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))
	require.NoError(t, fs.Sync())

	statBefore, err := fs.Stats()
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())
	require.Equal(t, Unmounted, fs.State())

	fs = mountAs(t, dev, 0, 0)
	stats, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, statBefore.MountCount+1, stats.MountCount)
	require.Equal(t, statBefore.FreeBlocks, stats.FreeBlocks)
	require.Equal(t, statBefore.FreeInodes, stats.FreeInodes)

	fd, err = fs.Open("/keep.txt", OpenRead)
	require.NoError(t, err)
	found := make([]byte, 64)
	n, err := fs.Read(fd, found)
	require.NoError(t, err)
	require.Equal(t, []byte("survives the remount"), found[:n])
	require.NoError(t, fs.Unmount())
}

func TestPermissionsAcrossRemount(t *testing.T) {
	fs, dev := testVolume(t)

	_, err := fs.CreateFile(InoRoot, "locked.txt", 0, 0, 0o600)
	require.NoError(t, err)
	require.NoError(t, fs.Unmount())

	fs = mountAs(t, dev, 1000, 1000)
	_, err = fs.Open("/locked.txt", OpenRead)
	require.ErrorIs(t, err, PermissionDeniedErr)
	_, err = fs.Open("/locked.txt", OpenWrite)
	require.ErrorIs(t, err, PermissionDeniedErr)

	// stat only needs Execute on the traversed directories
	stat, err := fs.StatPath("/locked.txt")
	require.NoError(t, err)
	require.Equal(t, Mode(0o600), stat.Mode.Perm())

	// the root is 0755 and owned by the superuser
	_, err = fs.CreateFile(InoRoot, "mine.txt", 1000, 1000, 0o644)
	require.ErrorIs(t, err, PermissionDeniedErr)
}

func TestACLGrantsBeyondModeBits(t *testing.T) {
	fs, dev := testVolume(t)

	ino, err := fs.CreateFile(InoRoot, "shared.txt", 1000, 1000, 0o600)
	require.NoError(t, err)
	entries := []ACLEntry{
		{Tag: ACLOwner, Perm: ACLRead | ACLWrite},
		{Tag: ACLNamedUser, Qualifier: 2000, Perm: ACLRead},
		{Tag: ACLOther},
	}
	require.NoError(t, fs.SetACL(ino, entries))

	found, err := fs.GetACL(ino)
	require.NoError(t, err)
	require.Equal(t, entries, found)
	require.NoError(t, fs.Unmount())

	// the named user reads but cannot write
	fs = mountAs(t, dev, 2000, 2000)
	_, err = fs.Open("/shared.txt", OpenRead)
	require.NoError(t, err)
	_, err = fs.Open("/shared.txt", OpenWrite)
	require.ErrorIs(t, err, PermissionDeniedErr)
	require.NoError(t, fs.Unmount())

	// everyone else falls through to the empty other entry
	fs = mountAs(t, dev, 3000, 3000)
	_, err = fs.Open("/shared.txt", OpenRead)
	require.ErrorIs(t, err, PermissionDeniedErr)
	require.NoError(t, fs.Unmount())

	// only the owner or the superuser may change the ACL
	fs = mountAs(t, dev, 3000, 3000)
	require.ErrorIs(t, fs.SetACL(ino, nil), PermissionDeniedErr)
}

func TestXattrs(t *testing.T) {
	fs, _ := testVolume(t)

	ino, err := fs.CreateFile(InoRoot, "tagged.txt", 0, 0, 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.SetXattr(ino, "user.origin", []byte("import")))
	require.NoError(t, fs.SetXattr(ino, "user.tier", []byte("hot")))

	value, err := fs.GetXattr(ino, "user.origin")
	require.NoError(t, err)
	require.Equal(t, []byte("import"), value)

	names, err := fs.ListXattrs(ino)
	require.NoError(t, err)
	require.Equal(t, []string{"user.origin", "user.tier"}, names)

	// a nil value removes the attribute
	require.NoError(t, fs.SetXattr(ino, "user.origin", nil))
	_, err = fs.GetXattr(ino, "user.origin")
	require.ErrorIs(t, err, NotFoundErr)
}

func TestRenameMovesAndReplaces(t *testing.T) {
	fs, _ := testVolume(t)

	a, err := fs.CreateFile(InoRoot, "a.txt", 0, 0, 0o644)
	require.NoError(t, err)
	_, err = fs.CreateFile(InoRoot, "c.txt", 0, 0, 0o644)
	require.NoError(t, err)
	before, err := fs.Stats()
	require.NoError(t, err)

	// replacing c.txt releases its inode
	require.NoError(t, fs.Rename(InoRoot, "a.txt", InoRoot, "c.txt"))
	_, err = fs.Lookup(InoRoot, "a.txt")
	require.ErrorIs(t, err, NotFoundErr)
	found, err := fs.Lookup(InoRoot, "c.txt")
	require.NoError(t, err)
	require.Equal(t, a, found)

	after, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, before.FreeInodes+1, after.FreeInodes)
}

func TestRenameDirectoryAcrossParents(t *testing.T) {
	fs, _ := testVolume(t)

	d1, err := fs.CreateDirectory(InoRoot, "d1", 0, 0, 0o755)
	require.NoError(t, err)
	d2, err := fs.CreateDirectory(InoRoot, "d2", 0, 0, 0o755)
	require.NoError(t, err)
	sub, err := fs.CreateDirectory(d1, "sub", 0, 0, 0o755)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(d1, "sub", d2, "sub"))

	found, err := fs.Lookup(d2, "sub")
	require.NoError(t, err)
	require.Equal(t, sub, found)

	// the ".." link moves with the directory
	parent, err := fs.Lookup(sub, "..")
	require.NoError(t, err)
	require.Equal(t, d2, parent)

	stat, err := fs.Stat(d1)
	require.NoError(t, err)
	require.Equal(t, uint16(2), stat.LinksCount)
	stat, err = fs.Stat(d2)
	require.NoError(t, err)
	require.Equal(t, uint16(3), stat.LinksCount)
}

func TestRenameIntoOwnSubtree(t *testing.T) {
	fs, _ := testVolume(t)

	p, err := fs.CreateDirectory(InoRoot, "p", 0, 0, 0o755)
	require.NoError(t, err)
	q, err := fs.CreateDirectory(p, "q", 0, 0, 0o755)
	require.NoError(t, err)

	require.ErrorIs(
		t,
		fs.Rename(InoRoot, "p", q, "loop"),
		InvalidArgumentErr,
	)
	// nothing moved
	found, err := fs.Lookup(InoRoot, "p")
	require.NoError(t, err)
	require.Equal(t, p, found)
}

func TestHardLinks(t *testing.T) {
	fs, _ := testVolume(t)

	ino, err := fs.CreateFile(InoRoot, "orig", 0, 0, 0o644)
	require.NoError(t, err)
	fd, err := fs.Open("/orig", OpenWrite)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("shared contents"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))

	require.NoError(t, fs.Link(ino, InoRoot, "hard"))
	stat, err := fs.Stat(ino)
	require.NoError(t, err)
	require.Equal(t, uint16(2), stat.LinksCount)

	// directories cannot be hard-linked
	dir, err := fs.CreateDirectory(InoRoot, "d", 0, 0, 0o755)
	require.NoError(t, err)
	require.ErrorIs(t, fs.Link(dir, InoRoot, "dlink"), IsADirErr)

	// dropping one name keeps the file alive through the other
	require.NoError(t, fs.Unlink(InoRoot, "orig"))
	fd, err = fs.Open("/hard", OpenRead)
	require.NoError(t, err)
	found := make([]byte, 32)
	n, err := fs.Read(fd, found)
	require.NoError(t, err)
	require.Equal(t, []byte("shared contents"), found[:n])
	require.NoError(t, fs.Close(fd))

	before, err := fs.Stats()
	require.NoError(t, err)
	require.NoError(t, fs.Unlink(InoRoot, "hard"))
	after, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, before.FreeInodes+1, after.FreeInodes)
}

func TestReadOnlyMount(t *testing.T) {
	dev := testDevice(t)
	fs, err := Mount(dev, MountOptions{ReadOnly: true, Logger: quietLogger()})
	require.NoError(t, err)
	require.Equal(t, ReadOnly, fs.State())

	_, err = fs.CreateFile(InoRoot, "nope", 0, 0, 0o644)
	require.ErrorIs(t, err, ReadOnlyErr)

	require.NoError(t, fs.Unmount())

	// the read-only mount never persisted its mount count
	fs = mountAs(t, dev, 0, 0)
	stats, err := fs.Stats()
	require.NoError(t, err)
	require.Equal(t, uint32(1), stats.MountCount)
}

func TestOperationsRequireMount(t *testing.T) {
	fs, _ := testVolume(t)
	require.NoError(t, fs.Unmount())

	_, err := fs.Open("/x", OpenRead)
	require.ErrorIs(t, err, NotMountedErr)
	_, err = fs.Stats()
	require.ErrorIs(t, err, NotMountedErr)
	require.ErrorIs(t, fs.Unmount(), NotMountedErr)
}
