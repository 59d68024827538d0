// Package acl decides access: an inode's ordered access-control list
// when present, classic owner/group/other mode bits otherwise.
package acl

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

// Op is the access being requested.
type Op uint8

const (
	Read Op = iota
	Write
	Execute
)

func (op Op) String() string {
	switch op {
	case Read:
		return "read"
	case Write:
		return "write"
	case Execute:
		return "execute"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

func (op Op) bit() uint16 {
	switch op {
	case Read:
		return ACLRead
	case Write:
		return ACLWrite
	default:
		return ACLExec
	}
}

// Check reports whether a caller may perform op on the inode. When
// entries is non-empty it is the inode's access ACL and the first entry
// whose tag and qualifier match the caller decides; otherwise the mode
// bits decide, owner before group before other. uid 0 bypasses the
// check except for Execute on a file with no execute bit anywhere.
func Check(uid, gid uint32, inode *Inode, entries []ACLEntry, op Op) error {
	if uid == 0 {
		if op != Execute || executableBySomeone(inode, entries) {
			return nil
		}
		return denied(uid, inode, op)
	}

	if len(entries) > 0 {
		for i := range entries {
			entry := &entries[i]
			if !entryMatches(entry, uid, gid, inode) {
				continue
			}
			if entry.Perm&op.bit() != 0 {
				return nil
			}
			return denied(uid, inode, op)
		}
		return denied(uid, inode, op)
	}

	var shift uint
	switch {
	case uid == uint32(inode.UID):
		shift = 6
	case gid == uint32(inode.GID):
		shift = 3
	default:
		shift = 0
	}
	if uint16(inode.Mode.Perm())>>shift&op.bit() != 0 {
		return nil
	}
	return denied(uid, inode, op)
}

func entryMatches(entry *ACLEntry, uid, gid uint32, inode *Inode) bool {
	switch entry.Tag {
	case ACLOwner:
		return uid == uint32(inode.UID)
	case ACLNamedUser:
		return uid == entry.Qualifier
	case ACLGroup:
		return gid == uint32(inode.GID)
	case ACLNamedGroup:
		return gid == entry.Qualifier
	case ACLOther:
		return true
	default:
		// mask entries scope other entries' maximums in full POSIX
		// ACLs; here they never grant by themselves
		return false
	}
}

// executableBySomeone reports whether any principal could execute the
// file, which is the one case the superuser does not bypass.
func executableBySomeone(inode *Inode, entries []ACLEntry) bool {
	if uint16(inode.Mode.Perm())&0o111 != 0 {
		return true
	}
	for i := range entries {
		if entries[i].Perm&ACLExec != 0 {
			return true
		}
	}
	return false
}

func denied(uid uint32, inode *Inode, op Op) error {
	return fmt.Errorf(
		"uid `%d` requesting %s on inode `%d`: %w",
		uid,
		op,
		inode.Ino,
		PermissionDeniedErr,
	)
}
