package fs

import (
	"errors"
	"fmt"
	"time"

	"github.com/multios/mfs/pkg/acl"
	"github.com/multios/mfs/pkg/directory"
	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// Rename moves a name between directories in one transaction. An
// existing destination is replaced when the kinds are compatible (a
// directory only replaces an empty directory). Renaming a directory
// into its own subtree is rejected before anything is touched.
func (fs *FileSystem) Rename(
	oldParent Ino,
	oldName string,
	newParent Ino,
	newName string,
) error {
	wrap := func(err error) error {
		return fmt.Errorf(
			"renaming `%s` in dir `%d` to `%s` in dir `%d`: %w",
			oldName,
			oldParent,
			newName,
			newParent,
			err,
		)
	}

	var oldDir, newDir Inode
	if err := fs.inodes.Get(oldParent, &oldDir); err != nil {
		return wrap(err)
	}
	// a single record when source and destination are the same dir, so
	// the two halves of the move never clobber each other's updates
	destDir := &oldDir
	if newParent != oldParent {
		if err := fs.inodes.Get(newParent, &newDir); err != nil {
			return wrap(err)
		}
		destDir = &newDir
	}
	for _, dir := range []*Inode{&oldDir, destDir} {
		if !dir.Mode.IsDir() {
			return wrap(NotADirErr)
		}
		if err := fs.checkAccess(dir, acl.Execute); err != nil {
			return wrap(err)
		}
		if err := fs.checkAccess(dir, acl.Write); err != nil {
			return wrap(err)
		}
	}

	var source directory.FileInfo
	if err := directory.Lookup(&fs.dir, oldParent, oldName, &source); err != nil {
		return wrap(err)
	}
	var sourceInode Inode
	if err := fs.inodes.Get(source.Ino, &sourceInode); err != nil {
		return wrap(err)
	}

	if oldParent == newParent && oldName == newName {
		return nil
	}

	if sourceInode.Mode.IsDir() {
		// moving a directory under itself would detach its subtree
		cyclic, err := fs.ancestorOf(source.Ino, newParent)
		if err != nil {
			return wrap(err)
		}
		if cyclic {
			return wrap(fmt.Errorf(
				"inode `%d` is an ancestor of dir `%d`: %w",
				source.Ino,
				newParent,
				InvalidArgumentErr,
			))
		}
	}

	// replacement semantics are checked before the transaction opens
	var dest directory.FileInfo
	destExists := true
	if err := directory.Lookup(&fs.dir, newParent, newName, &dest); err != nil {
		if !errors.Is(err, NotFoundErr) {
			return wrap(err)
		}
		destExists = false
	}
	if destExists {
		var destInode Inode
		if err := fs.inodes.Get(dest.Ino, &destInode); err != nil {
			return wrap(err)
		}
		if destInode.Mode.IsDir() != sourceInode.Mode.IsDir() {
			if destInode.Mode.IsDir() {
				return wrap(IsADirErr)
			}
			return wrap(NotADirErr)
		}
		if destInode.Mode.IsDir() {
			empty, err := directory.IsEmpty(&fs.dir, &destInode)
			if err != nil {
				return wrap(err)
			}
			if !empty {
				return wrap(NotEmptyErr)
			}
		}
	}

	txn, err := fs.begin()
	if err != nil {
		return wrap(err)
	}
	now := uint64(time.Now().Unix())

	if destExists {
		var removed directory.FileInfo
		if err := directory.RemoveEntry(
			&fs.dir,
			destDir,
			newName,
			&removed,
		); err != nil {
			fs.abort(txn)
			return wrap(err)
		}
		var destInode Inode
		if err := fs.inodes.Get(removed.Ino, &destInode); err != nil {
			fs.abort(txn)
			return wrap(err)
		}
		if destInode.Mode.IsDir() {
			destInode.LinksCount = 0
			destDir.LinksCount--
		}
		if destInode.LinksCount == 0 {
			if err := fs.release(&destInode, now); err != nil {
				fs.abort(txn)
				return wrap(err)
			}
		}
	}

	var moved directory.FileInfo
	if err := directory.RemoveEntry(&fs.dir, &oldDir, oldName, &moved); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := fs.inodes.Get(source.Ino, &sourceInode); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := directory.AddEntry(&fs.dir, destDir, &sourceInode, newName); err != nil {
		fs.abort(txn)
		return wrap(err)
	}

	if sourceInode.Mode.IsDir() && oldParent != newParent {
		// repoint ".." and move its parent link
		var dotdot [4]byte
		encode.EncodeDirEntryIno(newParent, &dotdot)
		if _, err := fs.io.Write(
			&sourceInode,
			encode.DirEntrySize(1),
			dotdot[:],
		); err != nil {
			fs.abort(txn)
			return wrap(err)
		}
		oldDir.LinksCount--
		destDir.LinksCount++
	}

	oldDir.ModifyTime = now
	if err := fs.inodes.Put(&oldDir); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if oldParent != newParent {
		destDir.ModifyTime = now
		if err := fs.inodes.Put(destDir); err != nil {
			fs.abort(txn)
			return wrap(err)
		}
	}
	if err := fs.commit(txn); err != nil {
		return wrap(err)
	}
	return nil
}

// Link adds a second name for an inode. Directories cannot be hard
// linked; the directory graph stays a tree.
func (fs *FileSystem) Link(ino Ino, newParent Ino, newName string) error {
	wrap := func(err error) error {
		return fmt.Errorf(
			"linking inode `%d` as `%s` in dir `%d`: %w",
			ino,
			newName,
			newParent,
			err,
		)
	}

	var target Inode
	if err := fs.inodes.Get(ino, &target); err != nil {
		return wrap(err)
	}
	if target.Mode.IsDir() {
		return wrap(IsADirErr)
	}
	var parentInode Inode
	if err := fs.inodes.Get(newParent, &parentInode); err != nil {
		return wrap(err)
	}
	if !parentInode.Mode.IsDir() {
		return wrap(NotADirErr)
	}
	if err := fs.checkAccess(&parentInode, acl.Execute); err != nil {
		return wrap(err)
	}
	if err := fs.checkAccess(&parentInode, acl.Write); err != nil {
		return wrap(err)
	}

	txn, err := fs.begin()
	if err != nil {
		return wrap(err)
	}
	if err := directory.AddEntry(&fs.dir, &parentInode, &target, newName); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	parentInode.ModifyTime = uint64(time.Now().Unix())
	if err := fs.inodes.Put(&parentInode); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := fs.commit(txn); err != nil {
		return wrap(err)
	}
	return nil
}
