package fs

import (
	"fmt"
	"time"

	"github.com/multios/mfs/pkg/acl"
	"github.com/multios/mfs/pkg/directory"
	. "github.com/multios/mfs/pkg/types"
)

// CreateFile creates a regular file in the parent directory and returns
// its inode number.
func (fs *FileSystem) CreateFile(
	parent Ino,
	name string,
	uid, gid uint32,
	mode Mode,
) (Ino, error) {
	ino, err := fs.create(parent, name, uid, gid, mode.Perm()|ModeRegular)
	if err != nil {
		return InoNil, fmt.Errorf(
			"creating file `%s` in dir `%d`: %w",
			name,
			parent,
			err,
		)
	}
	return ino, nil
}

// CreateDirectory creates a directory, initialized with its "." and
// ".." entries.
func (fs *FileSystem) CreateDirectory(
	parent Ino,
	name string,
	uid, gid uint32,
	mode Mode,
) (Ino, error) {
	ino, err := fs.create(parent, name, uid, gid, mode.Perm()|ModeDir)
	if err != nil {
		return InoNil, fmt.Errorf(
			"creating dir `%s` in dir `%d`: %w",
			name,
			parent,
			err,
		)
	}
	return ino, nil
}

func (fs *FileSystem) create(
	parent Ino,
	name string,
	uid, gid uint32,
	mode Mode,
) (Ino, error) {
	var parentInode Inode
	if err := fs.inodes.Get(parent, &parentInode); err != nil {
		return InoNil, err
	}
	if !parentInode.Mode.IsDir() {
		return InoNil, NotADirErr
	}
	if err := fs.checkAccess(&parentInode, acl.Execute); err != nil {
		return InoNil, err
	}
	if err := fs.checkAccess(&parentInode, acl.Write); err != nil {
		return InoNil, err
	}

	txn, err := fs.begin()
	if err != nil {
		return InoNil, err
	}

	ino, err := fs.alloc.AllocIno(mode.IsDir())
	if err != nil {
		fs.abort(txn)
		return InoNil, err
	}
	now := uint64(time.Now().Unix())
	inode := Inode{
		Ino:        ino,
		Mode:       mode,
		UID:        uint16(uid),
		GID:        uint16(gid),
		CreateTime: now,
		ModifyTime: now,
		AccessTime: now,
	}
	if err := fs.inodes.Put(&inode); err != nil {
		fs.abort(txn)
		return InoNil, err
	}
	if err := directory.AddEntry(&fs.dir, &parentInode, &inode, name); err != nil {
		fs.abort(txn)
		return InoNil, err
	}
	if mode.IsDir() {
		if err := directory.InitEntries(&fs.dir, &inode, &parentInode); err != nil {
			fs.abort(txn)
			return InoNil, err
		}
	}

	parentInode.ModifyTime = now
	if err := fs.inodes.Put(&parentInode); err != nil {
		fs.abort(txn)
		return InoNil, err
	}
	if err := fs.commit(txn); err != nil {
		return InoNil, err
	}
	return ino, nil
}
