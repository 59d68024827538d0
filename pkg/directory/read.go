package directory

import (
	"fmt"
	"io"

	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// Open positions a handle at the first entry of a directory.
func Open(fs *FileSystem, ino Ino, h *Handle) error {
	var inode Inode
	if err := fs.Inodes.Get(ino, &inode); err != nil {
		return fmt.Errorf("opening inode `%d` as directory: %w", ino, err)
	}
	if !inode.Mode.IsDir() {
		return fmt.Errorf(
			"opening inode `%d` as directory: %w",
			ino,
			NotADirErr,
		)
	}
	h.ino = ino
	h.offset = 0
	return nil
}

// ReadNext advances the handle past deleted slots to the next live
// entry, returning io.EOF when the directory is exhausted.
func ReadNext(fs *FileSystem, h *Handle, info *FileInfo) error {
	var inode Inode
	if err := fs.Inodes.Get(h.ino, &inode); err != nil {
		return fmt.Errorf(
			"reading entry from `%d` at offset `%d`: %w",
			h.ino,
			h.offset,
			err,
		)
	}

	var entry DirEntry
	for h.offset < inode.Size {
		if err := readEntry(fs, &inode, h.offset, &entry); err != nil {
			return fmt.Errorf(
				"reading entry from `%d` at offset `%d`: %w",
				h.ino,
				h.offset,
				err,
			)
		}
		h.offset += Byte(entry.RecLen)

		if entry.Ino == InoNil {
			continue
		}

		info.Ino = entry.Ino
		info.FileType = entry.FileType
		info.Name = entry.Name
		return nil
	}

	return io.EOF
}

// readEntry decodes the record at offset, including its name.
func readEntry(
	fs *FileSystem,
	inode *Inode,
	offset Byte,
	out *DirEntry,
) error {
	var header [encode.DirEntryHeaderSize]byte
	if _, err := fs.IO.Read(inode, offset, header[:]); err != nil {
		return fmt.Errorf(
			"reading direntry for inode `%d` at offset `%d`: %w",
			inode.Ino,
			offset,
			err,
		)
	}
	encode.DecodeDirEntryHeader(out, &header)

	if out.RecLen < uint16(encode.DirEntryHeaderSize) ||
		Byte(out.RecLen)%4 != 0 ||
		(offset%BlockSize)+Byte(out.RecLen) > BlockSize {
		return fmt.Errorf(
			"reading direntry for inode `%d` at offset `%d`: record length "+
				"`%d`: %w",
			inode.Ino,
			offset,
			out.RecLen,
			CorruptionDetectedErr,
		)
	}

	if out.NameLen == 0 {
		out.Name = ""
		return nil
	}
	name := make([]byte, out.NameLen)
	if _, err := fs.IO.Read(
		inode,
		offset+encode.DirEntryHeaderSize,
		name,
	); err != nil {
		return fmt.Errorf(
			"reading direntry for inode `%d` at offset `%d`: %w",
			inode.Ino,
			offset,
			err,
		)
	}
	out.Name = string(name)
	return nil
}

// IsEmpty reports whether the directory holds only "." and "..".
func IsEmpty(fs *FileSystem, dir *Inode) (bool, error) {
	var entry DirEntry
	var offset Byte
	for offset < dir.Size {
		if err := readEntry(fs, dir, offset, &entry); err != nil {
			return false, fmt.Errorf(
				"checking whether dir `%d` is empty: %w",
				dir.Ino,
				err,
			)
		}
		if entry.Ino != InoNil && entry.Name != "." && entry.Name != ".." {
			return false, nil
		}
		offset += Byte(entry.RecLen)
	}
	return true, nil
}
