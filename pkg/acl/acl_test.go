package acl

import (
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/multios/mfs/pkg/types"
)

func TestModeBits(t *testing.T) {
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o640, UID: 1000, GID: 1000}

	type testCase struct {
		name string
		uid  uint32
		gid  uint32
		op   Op
		deny bool
	}
	testCases := []testCase{
		{name: "owner read", uid: 1000, gid: 1000, op: Read},
		{name: "owner write", uid: 1000, gid: 1000, op: Write},
		{name: "owner execute", uid: 1000, gid: 1000, op: Execute, deny: true},
		{name: "group read", uid: 2000, gid: 1000, op: Read},
		{name: "group write", uid: 2000, gid: 1000, op: Write, deny: true},
		{name: "other read", uid: 3000, gid: 3000, op: Read, deny: true},
		{name: "other write", uid: 3000, gid: 3000, op: Write, deny: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.uid, tc.gid, inode, nil, tc.op)
			if tc.deny {
				require.ErrorIs(t, err, PermissionDeniedErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestOwnerClassBeatsGroupMembership(t *testing.T) {
	// the owner gets the owner bits even when the group bits allow more
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o070, UID: 1000, GID: 1000}
	require.ErrorIs(
		t,
		Check(1000, 1000, inode, nil, Read),
		PermissionDeniedErr,
	)
	require.NoError(t, Check(2000, 1000, inode, nil, Read))
}

func TestSuperuserBypass(t *testing.T) {
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o640, UID: 1000, GID: 1000}
	require.NoError(t, Check(0, 0, inode, nil, Read))
	require.NoError(t, Check(0, 0, inode, nil, Write))
	// execute needs at least one execute bit somewhere
	require.ErrorIs(t, Check(0, 0, inode, nil, Execute), PermissionDeniedErr)

	inode.Mode = ModeRegular | 0o750
	require.NoError(t, Check(0, 0, inode, nil, Execute))
}

func TestSuperuserExecuteViaACL(t *testing.T) {
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o640, UID: 1000, GID: 1000}
	entries := []ACLEntry{{Tag: ACLNamedUser, Qualifier: 2000, Perm: ACLExec}}
	require.NoError(t, Check(0, 0, inode, entries, Execute))
}

func TestACLFirstMatchWins(t *testing.T) {
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o600, UID: 1000, GID: 1000}
	entries := []ACLEntry{
		{Tag: ACLOwner, Perm: ACLRead | ACLWrite},
		{Tag: ACLNamedUser, Qualifier: 2000, Perm: ACLRead},
		{Tag: ACLOther},
	}

	// named user gets exactly the named entry's permissions
	require.NoError(t, Check(2000, 2000, inode, entries, Read))
	require.ErrorIs(
		t,
		Check(2000, 2000, inode, entries, Write),
		PermissionDeniedErr,
	)

	// the owner entry matches before the other entry's empty perms
	require.NoError(t, Check(1000, 1000, inode, entries, Write))

	// everyone else falls to the other entry
	require.ErrorIs(
		t,
		Check(3000, 3000, inode, entries, Read),
		PermissionDeniedErr,
	)
}

func TestACLOverridesModeBits(t *testing.T) {
	// mode bits would deny, but the ACL decides when present
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o600, UID: 1000, GID: 1000}
	entries := []ACLEntry{
		{Tag: ACLOwner, Perm: ACLRead | ACLWrite},
		{Tag: ACLNamedGroup, Qualifier: 5000, Perm: ACLRead},
		{Tag: ACLOther},
	}
	require.NoError(t, Check(2000, 5000, inode, entries, Read))
}

func TestACLDeniesWhenNothingMatches(t *testing.T) {
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o777, UID: 1000, GID: 1000}
	entries := []ACLEntry{
		{Tag: ACLNamedUser, Qualifier: 2000, Perm: ACLRead},
	}
	require.ErrorIs(
		t,
		Check(3000, 3000, inode, entries, Read),
		PermissionDeniedErr,
	)
}

func TestMaskEntryNeverGrants(t *testing.T) {
	inode := &Inode{Ino: 7, Mode: ModeRegular | 0o600, UID: 1000, GID: 1000}
	entries := []ACLEntry{
		{Tag: ACLMask, Perm: ACLRead | ACLWrite | ACLExec},
		{Tag: ACLOther},
	}
	require.ErrorIs(
		t,
		Check(3000, 3000, inode, entries, Read),
		PermissionDeniedErr,
	)
}
