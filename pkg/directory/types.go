// Package directory reads and writes variable-length directory entries.
// Entries are 4-byte aligned and never straddle a block boundary: the
// last record in each block extends its reclen to the end of the block,
// so free space always belongs to some record and the scan stride is
// always reclen.
package directory

import (
	"github.com/multios/mfs/pkg/data"
	. "github.com/multios/mfs/pkg/types"
)

// FileSystem is the slice of the mounted volume the directory layer
// operates on.
type FileSystem struct {
	IO     *data.IO
	Inodes InodeStore
}

// FileInfo is one readdir result.
type FileInfo struct {
	Ino      Ino
	FileType FileType
	Name     string
}

func (fi *FileInfo) Equal(other *FileInfo) bool {
	return fi.Ino == other.Ino && fi.FileType == other.FileType &&
		fi.Name == other.Name
}

// Handle is an iteration cursor over a directory's entries.
type Handle struct {
	ino    Ino
	offset Byte
}

func (h *Handle) Ino() Ino { return h.ino }
