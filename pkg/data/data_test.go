package data

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

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

func testIO(t *testing.T) (IO, *Inode) {
	t.Helper()
	dev := device.NewMemory(4096)
	store := memStore{}
	inode := &Inode{Ino: 1, Mode: ModeRegular | 0o644}
	require.NoError(t, store.Put(inode))
	blocks := blockmap.New(dev, &fakeSource{next: 100}, store)
	return New(dev, blocks, store), inode
}

func TestWriteReadRoundTrip(t *testing.T) {
	io, inode := testIO(t)

	payload := bytes.Repeat([]byte{0x5A}, 10000)
	n, err := io.Write(inode, 0, payload)
	require.NoError(t, err)
	require.Equal(t, Byte(10000), n)
	require.Equal(t, Byte(10000), inode.Size)
	// 10,000 bytes span three blocks, all direct
	require.Equal(t, uint32(3), inode.BlockCount)

	found := make([]byte, 10000)
	n, err = io.Read(inode, 0, found)
	require.NoError(t, err)
	require.Equal(t, Byte(10000), n)
	require.Equal(t, payload, found)
}

func TestReadStopsAtEOF(t *testing.T) {
	io, inode := testIO(t)
	_, err := io.Write(inode, 0, []byte("hello"))
	require.NoError(t, err)

	found := make([]byte, 100)
	n, err := io.Read(inode, 0, found)
	require.NoError(t, err)
	require.Equal(t, Byte(5), n)
	require.Equal(t, []byte("hello"), found[:n])

	n, err = io.Read(inode, 5, found)
	require.NoError(t, err)
	require.Equal(t, Byte(0), n)
}

func TestWritePastEndLeavesHole(t *testing.T) {
	io, inode := testIO(t)

	// write into the third block only; the gap stays unallocated
	offset := Byte(2 * BlockSize)
	_, err := io.Write(inode, offset, []byte("tail"))
	require.NoError(t, err)
	require.Equal(t, offset+4, inode.Size)
	require.Equal(t, uint32(1), inode.BlockCount)

	found := make([]byte, offset+4)
	n, err := io.Read(inode, 0, found)
	require.NoError(t, err)
	require.Equal(t, offset+4, n)
	require.Equal(t, make([]byte, offset), found[:offset])
	require.Equal(t, []byte("tail"), found[offset:])
}

func TestPartialWritePatchesBlock(t *testing.T) {
	io, inode := testIO(t)
	_, err := io.Write(inode, 0, []byte("hello"))
	require.NoError(t, err)

	_, err = io.Write(inode, 2, []byte("XY"))
	require.NoError(t, err)
	require.Equal(t, Byte(5), inode.Size)

	found := make([]byte, 5)
	_, err = io.Read(inode, 0, found)
	require.NoError(t, err)
	require.Equal(t, []byte("heXYo"), found)
}

func TestWriteStraddlesBlocks(t *testing.T) {
	io, inode := testIO(t)

	payload := bytes.Repeat([]byte{0xC3}, 100)
	offset := BlockSize - 50
	_, err := io.Write(inode, offset, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(2), inode.BlockCount)

	found := make([]byte, 100)
	_, err = io.Read(inode, offset, found)
	require.NoError(t, err)
	require.Equal(t, payload, found)
}

func TestTruncateShrinkZeroesTail(t *testing.T) {
	io, inode := testIO(t)
	_, err := io.Write(inode, 0, bytes.Repeat([]byte{0xFF}, int(BlockSize)))
	require.NoError(t, err)

	require.NoError(t, io.Truncate(inode, 100))
	require.Equal(t, Byte(100), inode.Size)
	require.Equal(t, uint32(1), inode.BlockCount)

	// regrow over the old contents: the tail must read as zeros
	require.NoError(t, io.Truncate(inode, BlockSize))
	found := make([]byte, BlockSize)
	_, err = io.Read(inode, 0, found)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xFF}, 100), found[:100])
	require.Equal(t, make([]byte, int(BlockSize)-100), found[100:])
}

func TestTruncateGrowIsAHole(t *testing.T) {
	io, inode := testIO(t)
	require.NoError(t, io.Truncate(inode, 10000))
	require.Equal(t, Byte(10000), inode.Size)
	require.Equal(t, uint32(0), inode.BlockCount)

	found := make([]byte, 10000)
	n, err := io.Read(inode, 0, found)
	require.NoError(t, err)
	require.Equal(t, Byte(10000), n)
	require.Equal(t, make([]byte, 10000), found)
}

func TestTruncateReleasesIndirects(t *testing.T) {
	io, inode := testIO(t)

	// 14 blocks: 12 direct plus 2 through the singly-indirect tree
	payload := bytes.Repeat([]byte{0xA5}, 14*int(BlockSize))
	_, err := io.Write(inode, 0, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(15), inode.BlockCount)

	require.NoError(t, io.Truncate(inode, 100))
	require.Equal(t, Byte(100), inode.Size)
	if inode.BlockCount != 1 {
		t.Fatalf("wanted `1` block; found `%d`", inode.BlockCount)
	}
	require.Equal(t, BlockNil, inode.SinglyIndirect)
}
