package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/multios/mfs/pkg/types"
)

func TestGeometrySingleGroup(t *testing.T) {
	geo := New(8192, 1024, 16)

	require.Equal(t, uint32(1), geo.GroupCount)
	// 1 group * 32 bytes fits in one descriptor block
	require.Equal(t, Block(1), geo.DescriptorBlocks())
	// superblock + descriptor table
	require.Equal(t, Block(2), geo.JournalStart)

	// group 0 metadata is displaced past the journal
	require.Equal(t, Block(18), geo.BlockBitmap(0))
	require.Equal(t, Block(19), geo.InodeBitmap(0))
	require.Equal(t, Block(20), geo.InodeTable(0))
	// 1024 inodes * 128 bytes = 32 blocks
	require.Equal(t, Block(32), geo.InodeTableBlocks())
	require.Equal(t, Block(52), geo.FirstData(0))
	require.Equal(t, Block(52), geo.MetadataBlocks(0))
	require.Equal(t, Ino(1024), geo.TotalInodes())
}

func TestGeometryMultiGroup(t *testing.T) {
	geo := New(3*8192, 1024, 64)

	require.Equal(t, uint32(3), geo.GroupCount)
	// later groups carry their metadata at their base
	require.Equal(t, Block(8192), geo.GroupBase(1))
	require.Equal(t, Block(8192), geo.BlockBitmap(1))
	require.Equal(t, Block(8193), geo.InodeBitmap(1))
	require.Equal(t, Block(8194), geo.InodeTable(1))
	require.Equal(t, Block(8194+32), geo.FirstData(1))
	require.Equal(t, Ino(3*1024), geo.TotalInodes())
}

func TestGeometryShortLastGroup(t *testing.T) {
	geo := New(8192+100, 1024, 16)
	require.Equal(t, uint32(2), geo.GroupCount)
	require.Equal(t, Block(8192), geo.GroupBlocks(0))
	require.Equal(t, Block(100), geo.GroupBlocks(1))
}

func TestInoMapping(t *testing.T) {
	geo := New(2*8192, 1024, 16)

	type testCase struct {
		ino   Ino
		group uint32
		local Ino
	}
	testCases := []testCase{
		{ino: 1, group: 0, local: 0},
		{ino: 1024, group: 0, local: 1023},
		{ino: 1025, group: 1, local: 0},
		{ino: 2048, group: 1, local: 1023},
	}
	for _, tc := range testCases {
		group, local, err := geo.GroupOfIno(tc.ino)
		require.NoError(t, err)
		if group != tc.group || local != tc.local {
			t.Fatalf(
				"ino `%d`: wanted group `%d` local `%d`; found group `%d` "+
					"local `%d`",
				tc.ino,
				tc.group,
				tc.local,
				group,
				local,
			)
		}
		if back := geo.InoOf(group, local); back != tc.ino {
			t.Fatalf("wanted ino `%d`; found `%d`", tc.ino, back)
		}
	}

	_, _, err := geo.GroupOfIno(InoNil)
	require.True(t, errors.Is(err, InvalidArgumentErr))
	_, _, err = geo.GroupOfIno(2049)
	require.True(t, errors.Is(err, InvalidArgumentErr))
}

func TestInodeLocation(t *testing.T) {
	geo := New(8192, 1024, 16)

	// 32 inode records per table block
	block, offset, err := geo.InodeLocation(1)
	require.NoError(t, err)
	require.Equal(t, geo.InodeTable(0), block)
	require.Equal(t, Byte(0), offset)

	block, offset, err = geo.InodeLocation(33)
	require.NoError(t, err)
	require.Equal(t, geo.InodeTable(0)+1, block)
	require.Equal(t, Byte(0), offset)

	block, offset, err = geo.InodeLocation(34)
	require.NoError(t, err)
	require.Equal(t, geo.InodeTable(0)+1, block)
	require.Equal(t, Byte(InodeSize), offset)
}
