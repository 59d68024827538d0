package directory

import (
	"errors"
	"fmt"
	stdio "io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/multios/mfs/pkg/data"
	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/inode/blockmap"
	. "github.com/multios/mfs/pkg/types"
)

type fakeSource struct{ next Block }

func (s *fakeSource) AllocBlock(hint Block) (Block, error) {
	b := s.next
	s.next++
	return b, nil
}

func (s *fakeSource) FreeBlock(b Block) {}

type memStore map[Ino]Inode

func (s memStore) Put(inode *Inode) error {
	s[inode.Ino] = *inode
	return nil
}

func (s memStore) Get(ino Ino, output *Inode) error {
	record, ok := s[ino]
	if !ok {
		return fmt.Errorf("inode `%d`: %w", ino, NotFoundErr)
	}
	*output = record
	return nil
}

// testDir builds a directory layer over a memory device with an
// initialized directory (inode 2) under a root (inode 1).
func testDir(t *testing.T) (*FileSystem, memStore, *Inode, *Inode) {
	t.Helper()
	dev := device.NewMemory(8192)
	store := memStore{}
	io := data.New(dev, blockmap.New(dev, &fakeSource{next: 100}, store), store)
	fs := &FileSystem{IO: &io, Inodes: store}

	root := &Inode{Ino: 1, Mode: ModeDir | 0o755}
	require.NoError(t, store.Put(root))
	require.NoError(t, InitEntries(fs, root, root))

	dir := &Inode{Ino: 2, Mode: ModeDir | 0o755, LinksCount: 1}
	require.NoError(t, store.Put(dir))
	require.NoError(t, InitEntries(fs, dir, root))
	return fs, store, root, dir
}

func addFile(t *testing.T, fs *FileSystem, dir *Inode, ino Ino, name string) {
	t.Helper()
	entry := &Inode{Ino: ino, Mode: ModeRegular | 0o644}
	require.NoError(t, fs.Inodes.Put(entry))
	require.NoError(t, AddEntry(fs, dir, entry, name))
	if entry.LinksCount != 1 {
		t.Fatalf("wanted `1` link on `%s`; found `%d`", name, entry.LinksCount)
	}
}

func readAll(t *testing.T, fs *FileSystem, ino Ino) []FileInfo {
	t.Helper()
	var h Handle
	require.NoError(t, Open(fs, ino, &h))
	var entries []FileInfo
	for {
		var info FileInfo
		if err := ReadNext(fs, &h, &info); err != nil {
			require.True(t, errors.Is(err, stdio.EOF), "unexpected error: %v", err)
			return entries
		}
		entries = append(entries, info)
	}
}

func TestInitEntries(t *testing.T) {
	_, _, root, dir := testDir(t)

	// "." is a self-link; ".." links the parent
	require.Equal(t, uint16(2), dir.LinksCount)
	// root starts with "." and ".." self-links plus the child's ".."
	require.Equal(t, uint16(3), root.LinksCount)
	require.Equal(t, BlockSize, dir.Size)
}

func TestInitEntriesLayout(t *testing.T) {
	fs, _, root, dir := testDir(t)

	entries := readAll(t, fs, dir.Ino)
	require.Len(t, entries, 2)
	require.True(t, entries[0].Equal(&FileInfo{
		Ino:      dir.Ino,
		FileType: FileTypeDir,
		Name:     ".",
	}))
	require.True(t, entries[1].Equal(&FileInfo{
		Ino:      root.Ino,
		FileType: FileTypeDir,
		Name:     "..",
	}))
}

func TestOpenRejectsNonDir(t *testing.T) {
	fs, store, _, _ := testDir(t)
	file := &Inode{Ino: 10, Mode: ModeRegular | 0o644}
	require.NoError(t, store.Put(file))

	var h Handle
	require.ErrorIs(t, Open(fs, file.Ino, &h), NotADirErr)
}

func TestAddEntryAndLookup(t *testing.T) {
	fs, _, _, dir := testDir(t)
	addFile(t, fs, dir, 10, "alpha")
	addFile(t, fs, dir, 11, "beta")

	var info FileInfo
	require.NoError(t, Lookup(fs, dir.Ino, "beta", &info))
	require.Equal(t, Ino(11), info.Ino)
	require.Equal(t, FileTypeRegular, info.FileType)

	require.ErrorIs(t, Lookup(fs, dir.Ino, "gamma", &info), NotFoundErr)
}

func TestAddEntryRejectsDuplicate(t *testing.T) {
	fs, store, _, dir := testDir(t)
	addFile(t, fs, dir, 10, "alpha")

	dup := &Inode{Ino: 11, Mode: ModeRegular | 0o644}
	require.NoError(t, store.Put(dup))
	require.ErrorIs(t, AddEntry(fs, dir, dup, "alpha"), AlreadyExistsErr)
	require.Equal(t, uint16(0), dup.LinksCount)
}

func TestAddEntryRejectsBadNames(t *testing.T) {
	fs, store, _, dir := testDir(t)
	entry := &Inode{Ino: 10, Mode: ModeRegular | 0o644}
	require.NoError(t, store.Put(entry))

	type testCase struct {
		name string
		err  error
	}
	long := make([]byte, MaxNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	testCases := []testCase{
		{name: "", err: InvalidArgumentErr},
		{name: ".", err: InvalidArgumentErr},
		{name: "..", err: InvalidArgumentErr},
		{name: string(long), err: NameTooLongErr},
		{name: "a/b", err: InvalidPathErr},
		{name: "a\x00b", err: InvalidPathErr},
	}
	for _, tc := range testCases {
		require.ErrorIs(t, AddEntry(fs, dir, entry, tc.name), tc.err)
	}
}

func TestRemoveEntryCoalesces(t *testing.T) {
	fs, _, _, dir := testDir(t)
	addFile(t, fs, dir, 10, "alpha")
	addFile(t, fs, dir, 11, "beta")
	sizeBefore := dir.Size

	var removed FileInfo
	require.NoError(t, RemoveEntry(fs, dir, "alpha", &removed))
	require.Equal(t, Ino(10), removed.Ino)
	require.Equal(t, "alpha", removed.Name)

	// the dead record is absorbed; readdir never sees it
	names := []string{}
	for _, entry := range readAll(t, fs, dir.Ino) {
		names = append(names, entry.Name)
	}
	require.Equal(t, []string{".", "..", "beta"}, names)
	require.Equal(t, sizeBefore, dir.Size)

	// the reclaimed space is reused without growing the directory
	addFile(t, fs, dir, 12, "gamma")
	require.Equal(t, sizeBefore, dir.Size)
}

func TestRemoveEntryUpdatesLinkCount(t *testing.T) {
	fs, store, _, dir := testDir(t)
	addFile(t, fs, dir, 10, "alpha")

	var removed FileInfo
	require.NoError(t, RemoveEntry(fs, dir, "alpha", &removed))

	var inode Inode
	require.NoError(t, store.Get(10, &inode))
	if inode.LinksCount != 0 {
		t.Fatalf("wanted `0` links; found `%d`", inode.LinksCount)
	}
}

func TestRemoveEntryNotFound(t *testing.T) {
	fs, _, _, dir := testDir(t)
	var removed FileInfo
	require.ErrorIs(t, RemoveEntry(fs, dir, "ghost", &removed), NotFoundErr)
}

func TestLargeDirectoryGrowsAndShrinks(t *testing.T) {
	fs, _, _, dir := testDir(t)

	for i := 0; i < 300; i++ {
		addFile(t, fs, dir, Ino(10+i), fmt.Sprintf("f%d", i))
	}
	// 300 files plus "." and ".."
	entries := readAll(t, fs, dir.Ino)
	require.Len(t, entries, 302)
	require.Greater(t, int(dir.Size/BlockSize), 1)
	require.Equal(t, Byte(0), dir.Size%BlockSize)

	var removed FileInfo
	for i := 0; i < 300; i++ {
		require.NoError(
			t,
			RemoveEntry(fs, dir, fmt.Sprintf("f%d", i), &removed),
		)
	}
	entries = readAll(t, fs, dir.Ino)
	require.Len(t, entries, 2)

	empty, err := IsEmpty(fs, dir)
	require.NoError(t, err)
	require.True(t, empty)

	// dead slots are reused: re-adding does not grow the directory
	sizeBefore := dir.Size
	addFile(t, fs, dir, 500, "fresh")
	require.Equal(t, sizeBefore, dir.Size)
}

func TestIsEmpty(t *testing.T) {
	fs, _, _, dir := testDir(t)

	empty, err := IsEmpty(fs, dir)
	require.NoError(t, err)
	require.True(t, empty)

	addFile(t, fs, dir, 10, "alpha")
	empty, err = IsEmpty(fs, dir)
	require.NoError(t, err)
	require.False(t, empty)
}
