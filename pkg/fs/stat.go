package fs

import (
	"errors"
	"fmt"
	"io"

	"github.com/multios/mfs/pkg/acl"
	"github.com/multios/mfs/pkg/directory"
	. "github.com/multios/mfs/pkg/types"
)

// FileStat is the metadata snapshot returned by Stat.
type FileStat struct {
	Ino        Ino
	Mode       Mode
	UID        uint32
	GID        uint32
	Size       Byte
	BlockCount uint32
	LinksCount uint16
	Flags      InodeFlags
	AccessTime uint64
	CreateTime uint64
	ModifyTime uint64
}

// Stat reports an inode's metadata.
func (fs *FileSystem) Stat(ino Ino) (FileStat, error) {
	if err := fs.mounted(); err != nil {
		return FileStat{}, fmt.Errorf("statting inode `%d`: %w", ino, err)
	}
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return FileStat{}, fmt.Errorf("statting inode `%d`: %w", ino, err)
	}
	return FileStat{
		Ino:        inode.Ino,
		Mode:       inode.Mode,
		UID:        uint32(inode.UID),
		GID:        uint32(inode.GID),
		Size:       inode.Size,
		BlockCount: inode.BlockCount,
		LinksCount: inode.LinksCount,
		Flags:      inode.Flags,
		AccessTime: inode.AccessTime,
		CreateTime: inode.CreateTime,
		ModifyTime: inode.ModifyTime,
	}, nil
}

// StatPath resolves a path and stats the result.
func (fs *FileSystem) StatPath(path string) (FileStat, error) {
	ino, err := fs.resolve(path)
	if err != nil {
		return FileStat{}, fmt.Errorf("statting `%s`: %w", path, err)
	}
	return fs.Stat(ino)
}

// ReadDir lists a directory's live entries, "." and ".." included.
func (fs *FileSystem) ReadDir(ino Ino) ([]directory.FileInfo, error) {
	if err := fs.mounted(); err != nil {
		return nil, fmt.Errorf("reading dir `%d`: %w", ino, err)
	}
	var dir Inode
	if err := fs.inodes.Get(ino, &dir); err != nil {
		return nil, fmt.Errorf("reading dir `%d`: %w", ino, err)
	}
	if err := fs.checkAccess(&dir, acl.Read); err != nil {
		return nil, fmt.Errorf("reading dir `%d`: %w", ino, err)
	}

	var h directory.Handle
	if err := directory.Open(&fs.dir, ino, &h); err != nil {
		return nil, fmt.Errorf("reading dir `%d`: %w", ino, err)
	}
	var infos []directory.FileInfo
	for {
		var info directory.FileInfo
		if err := directory.ReadNext(&fs.dir, &h, &info); err != nil {
			if errors.Is(err, io.EOF) {
				return infos, nil
			}
			return infos, fmt.Errorf("reading dir `%d`: %w", ino, err)
		}
		infos = append(infos, info)
	}
}

// Lookup finds one name in a directory without walking a path.
func (fs *FileSystem) Lookup(parent Ino, name string) (Ino, error) {
	if err := fs.mounted(); err != nil {
		return InoNil, fmt.Errorf(
			"looking up `%s` in dir `%d`: %w",
			name,
			parent,
			err,
		)
	}
	var info directory.FileInfo
	if err := directory.Lookup(&fs.dir, parent, name, &info); err != nil {
		return InoNil, err
	}
	return info.Ino, nil
}
