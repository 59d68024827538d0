package fs

import (
	"fmt"
	"strings"

	"github.com/multios/mfs/pkg/acl"
	"github.com/multios/mfs/pkg/directory"
	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// splitPath validates an absolute path and returns its components.
func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path `%s` is not absolute: %w", path, InvalidPathErr)
	}
	var parts []string
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
			continue
		}
		if len(part) > MaxNameLen {
			return nil, fmt.Errorf(
				"path component `%s`: %w",
				part,
				NameTooLongErr,
			)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// resolve walks a path from the root, permission-checking Execute on
// every traversed directory.
func (fs *FileSystem) resolve(path string) (Ino, error) {
	parts, err := splitPath(path)
	if err != nil {
		return InoNil, fmt.Errorf("resolving `%s`: %w", path, err)
	}
	return fs.walk(path, parts)
}

// resolveParent resolves everything but the last component, returning
// the parent directory and the final name.
func (fs *FileSystem) resolveParent(path string) (Ino, string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return InoNil, "", fmt.Errorf("resolving parent of `%s`: %w", path, err)
	}
	if len(parts) == 0 {
		return InoNil, "", fmt.Errorf(
			"resolving parent of `%s`: the root has no parent: %w",
			path,
			InvalidPathErr,
		)
	}
	parent, err := fs.walk(path, parts[:len(parts)-1])
	if err != nil {
		return InoNil, "", err
	}
	return parent, parts[len(parts)-1], nil
}

func (fs *FileSystem) walk(path string, parts []string) (Ino, error) {
	cur := InoRoot
	for _, part := range parts {
		var dir Inode
		if err := fs.inodes.Get(cur, &dir); err != nil {
			return InoNil, fmt.Errorf("resolving `%s`: %w", path, err)
		}
		if !dir.Mode.IsDir() {
			return InoNil, fmt.Errorf(
				"resolving `%s`: inode `%d`: %w",
				path,
				cur,
				NotADirErr,
			)
		}
		if err := fs.checkAccess(&dir, acl.Execute); err != nil {
			return InoNil, fmt.Errorf("resolving `%s`: %w", path, err)
		}
		var info directory.FileInfo
		if err := directory.Lookup(&fs.dir, cur, part, &info); err != nil {
			return InoNil, fmt.Errorf("resolving `%s`: %w", path, err)
		}
		cur = info.Ino
	}
	return cur, nil
}

// loadACL reads an inode's access ACL when the feature is enabled and
// the inode carries one.
func (fs *FileSystem) loadACL(inode *Inode) ([]ACLEntry, error) {
	if fs.sb.Features&(FeatureACL|FeatureSecurity) == 0 {
		return nil, nil
	}
	if inode.AccessACLBlock == BlockNil {
		return nil, nil
	}
	buf := make([]byte, BlockSize)
	if err := fs.op.ReadBlock(inode.AccessACLBlock, buf); err != nil {
		return nil, fmt.Errorf(
			"loading ACL of inode `%d`: %w",
			inode.Ino,
			err,
		)
	}
	entries, err := encode.DecodeACLBlock(buf)
	if err != nil {
		return nil, fmt.Errorf(
			"loading ACL of inode `%d`: %w",
			inode.Ino,
			err,
		)
	}
	return entries, nil
}

// checkAccess applies the ACL (or mode bits) for the mount's caller.
func (fs *FileSystem) checkAccess(inode *Inode, op acl.Op) error {
	entries, err := fs.loadACL(inode)
	if err != nil {
		return err
	}
	return acl.Check(fs.opts.UID, fs.opts.GID, inode, entries, op)
}

// ancestorOf reports whether candidate is on the parent chain of ino
// (inclusive of ino itself), by walking ".." entries to the root.
func (fs *FileSystem) ancestorOf(candidate, ino Ino) (bool, error) {
	cur := ino
	for {
		if cur == candidate {
			return true, nil
		}
		if cur == InoRoot {
			return false, nil
		}
		var info directory.FileInfo
		if err := directory.Lookup(&fs.dir, cur, "..", &info); err != nil {
			return false, fmt.Errorf(
				"walking parents of inode `%d`: %w",
				ino,
				err,
			)
		}
		if info.Ino == cur {
			return false, fmt.Errorf(
				"walking parents of inode `%d`: `..` of `%d` points at "+
					"itself: %w",
				ino,
				cur,
				CorruptionDetectedErr,
			)
		}
		cur = info.Ino
	}
}
