package directory

import (
	"fmt"

	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// InitEntries writes a fresh directory's first block: "." pointing at
// the directory itself and ".." pointing at its parent, with ".."
// owning the rest of the block. Bumps the link counts the two entries
// imply ("." on dir, ".." on parent; for the root both are the root).
func InitEntries(fs *FileSystem, dir, parent *Inode) error {
	dot := DirEntry{
		Ino:      dir.Ino,
		RecLen:   uint16(encode.DirEntrySize(1)),
		NameLen:  1,
		FileType: FileTypeDir,
		Name:     ".",
	}
	dotdot := DirEntry{
		Ino:      parent.Ino,
		RecLen:   uint16(BlockSize - encode.DirEntrySize(1)),
		NameLen:  2,
		FileType: FileTypeDir,
		Name:     "..",
	}

	if err := writeEntry(fs, dir, 0, &dot); err != nil {
		return fmt.Errorf("initializing dir `%d`: %w", dir.Ino, err)
	}
	if err := writeEntry(
		fs,
		dir,
		encode.DirEntrySize(1),
		&dotdot,
	); err != nil {
		return fmt.Errorf("initializing dir `%d`: %w", dir.Ino, err)
	}

	dir.Size = BlockSize
	dir.LinksCount++ // "."
	if dir.Ino == parent.Ino {
		// root: ".." is a self-link too
		dir.LinksCount++
		if err := fs.Inodes.Put(dir); err != nil {
			return fmt.Errorf("initializing dir `%d`: %w", dir.Ino, err)
		}
		if parent != dir {
			*parent = *dir
		}
		return nil
	}
	if err := fs.Inodes.Put(dir); err != nil {
		return fmt.Errorf("initializing dir `%d`: %w", dir.Ino, err)
	}

	parent.LinksCount++ // ".."
	if err := fs.Inodes.Put(parent); err != nil {
		return fmt.Errorf(
			"initializing dir `%d`: updating parent `%d`: %w",
			dir.Ino,
			parent.Ino,
			err,
		)
	}
	return nil
}
