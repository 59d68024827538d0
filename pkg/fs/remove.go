package fs

import (
	"fmt"
	"time"

	"github.com/multios/mfs/pkg/acl"
	"github.com/multios/mfs/pkg/directory"
	. "github.com/multios/mfs/pkg/types"
)

// Unlink removes a name from a directory; when the last link drops the
// inode's blocks and the inode itself return to the free pool.
func (fs *FileSystem) Unlink(parent Ino, name string) error {
	if err := fs.unlink(parent, name, false); err != nil {
		return fmt.Errorf(
			"unlinking `%s` from dir `%d`: %w",
			name,
			parent,
			err,
		)
	}
	return nil
}

// Rmdir removes an empty directory.
func (fs *FileSystem) Rmdir(parent Ino, name string) error {
	if err := fs.unlink(parent, name, true); err != nil {
		return fmt.Errorf(
			"removing dir `%s` from dir `%d`: %w",
			name,
			parent,
			err,
		)
	}
	return nil
}

func (fs *FileSystem) unlink(parent Ino, name string, wantDir bool) error {
	var parentInode Inode
	if err := fs.inodes.Get(parent, &parentInode); err != nil {
		return err
	}
	if !parentInode.Mode.IsDir() {
		return NotADirErr
	}
	if err := fs.checkAccess(&parentInode, acl.Execute); err != nil {
		return err
	}
	if err := fs.checkAccess(&parentInode, acl.Write); err != nil {
		return err
	}

	var info directory.FileInfo
	if err := directory.Lookup(&fs.dir, parent, name, &info); err != nil {
		return err
	}
	var target Inode
	if err := fs.inodes.Get(info.Ino, &target); err != nil {
		return err
	}
	if wantDir {
		if !target.Mode.IsDir() {
			return NotADirErr
		}
		empty, err := directory.IsEmpty(&fs.dir, &target)
		if err != nil {
			return err
		}
		if !empty {
			return NotEmptyErr
		}
	} else if target.Mode.IsDir() {
		return IsADirErr
	}
	if target.Flags&FlagImmutable != 0 {
		return PermissionDeniedErr
	}

	txn, err := fs.begin()
	if err != nil {
		return err
	}
	if err := directory.RemoveEntry(&fs.dir, &parentInode, name, &info); err != nil {
		fs.abort(txn)
		return err
	}
	// RemoveEntry dropped the parent-entry link; reload the record
	if err := fs.inodes.Get(info.Ino, &target); err != nil {
		fs.abort(txn)
		return err
	}

	if wantDir {
		// the directory's "." and the parent's ".." go with it
		target.LinksCount = 0
		parentInode.LinksCount--
	}

	now := uint64(time.Now().Unix())
	if target.LinksCount == 0 {
		if err := fs.release(&target, now); err != nil {
			fs.abort(txn)
			return err
		}
	} else {
		if err := fs.inodes.Put(&target); err != nil {
			fs.abort(txn)
			return err
		}
	}

	parentInode.ModifyTime = now
	if err := fs.inodes.Put(&parentInode); err != nil {
		fs.abort(txn)
		return err
	}
	return fs.commit(txn)
}

// release frees an unlinked inode's blocks, its side blocks (ACLs,
// xattrs) and the inode bit.
func (fs *FileSystem) release(inode *Inode, now uint64) error {
	if _, err := fs.blocks.Truncate(inode, 0); err != nil {
		return err
	}
	for _, side := range []Block{
		inode.XattrBlock,
		inode.AccessACLBlock,
		inode.DefaultACLBlock,
	} {
		if side != BlockNil {
			fs.alloc.FreeBlock(side)
		}
	}
	inode.XattrBlock = BlockNil
	inode.AccessACLBlock = BlockNil
	inode.DefaultACLBlock = BlockNil
	inode.DeleteTime = now
	inode.Size = 0
	if err := fs.inodes.Put(inode); err != nil {
		return err
	}
	if err := fs.alloc.FreeIno(inode.Ino, inode.Mode.IsDir()); err != nil {
		return err
	}
	fs.inodes.Evict(inode.Ino)
	return nil
}
