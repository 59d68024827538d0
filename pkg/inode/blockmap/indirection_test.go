package blockmap

import (
	"errors"
	"testing"

	. "github.com/multios/mfs/pkg/types"
)

func TestFromLogical(t *testing.T) {
	type testCase struct {
		name    string
		logical Block
		level   level
		indices []Block
	}
	testCases := []testCase{{
		name:    "first direct",
		logical: 0,
		level:   levelDirect,
	}, {
		name:    "last direct",
		logical: 11,
		level:   levelDirect,
	}, {
		name:    "first singly",
		logical: 12,
		level:   levelSingly,
		indices: []Block{0},
	}, {
		name:    "last singly",
		logical: 11 + 1024,
		level:   levelSingly,
		indices: []Block{1023},
	}, {
		name:    "first doubly",
		logical: 11 + 1024 + 1,
		level:   levelDoubly,
		indices: []Block{0, 0},
	}, {
		name:    "doubly interior",
		logical: 11 + 1024 + 1 + 2*1024 + 7,
		level:   levelDoubly,
		indices: []Block{7, 2},
	}, {
		name:    "last doubly",
		logical: 11 + 1024 + 1024*1024,
		level:   levelDoubly,
		indices: []Block{1023, 1023},
	}, {
		name:    "first triply",
		logical: 11 + 1024 + 1024*1024 + 1,
		level:   levelTriply,
		indices: []Block{0, 0, 0},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inode := Inode{Ino: 1}
			var ind indirection
			if err := ind.fromLogical(&inode, tc.logical); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ind.level != tc.level {
				t.Fatalf("wanted level `%s`; found `%s`", tc.level, ind.level)
			}
			path := ind.path()
			if len(path) != len(tc.indices) {
				t.Fatalf(
					"wanted `%d` path indices; found `%d`",
					len(tc.indices),
					len(path),
				)
			}
			for i := range path {
				if path[i] != tc.indices[i] {
					t.Fatalf(
						"index %d: wanted `%d`; found `%d`",
						i,
						tc.indices[i],
						path[i],
					)
				}
			}
		})
	}
}

func TestFromLogicalOutOfRange(t *testing.T) {
	inode := Inode{Ino: 1}
	var ind indirection
	err := ind.fromLogical(&inode, MaxBlocks)
	if !errors.Is(err, InvalidArgumentErr) {
		t.Fatalf("wanted invalid-argument; found %v", err)
	}
}
