package directory

import (
	"fmt"

	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// AddEntry links an inode into a directory under the given name. The
// record goes into the first slot that can hold it: a deleted record is
// claimed whole, a live record's slack is split off, and a fresh block
// is appended only when no block has room. The entry inode's link count
// is bumped and persisted.
func AddEntry(fs *FileSystem, dir, entry *Inode, name string) error {
	if err := CheckName(name); err != nil {
		return fmt.Errorf(
			"adding inode `%d` to dir `%d` as `%s`: %w",
			entry.Ino,
			dir.Ino,
			name,
			err,
		)
	}

	need := encode.DirEntrySize(uint8(len(name)))
	newEntry := DirEntry{
		Ino:      entry.Ino,
		NameLen:  uint8(len(name)),
		FileType: entry.Mode.FileType(),
		Name:     name,
	}

	// one pass: find the first usable slot while also checking for a
	// duplicate name
	var (
		found       bool
		claimOffset Byte
		claimRecLen uint16
		splitOffset Byte // live record to shrink; claims of dead
		splitRecLen uint16
		split       bool
	)
	var scan DirEntry
	var offset Byte
	for offset < dir.Size {
		if err := readEntry(fs, dir, offset, &scan); err != nil {
			return fmt.Errorf(
				"adding inode `%d` to dir `%d` as `%s`: %w",
				entry.Ino,
				dir.Ino,
				name,
				err,
			)
		}
		if scan.Ino != InoNil && scan.Name == name {
			return fmt.Errorf(
				"adding inode `%d` to dir `%d` as `%s`: %w",
				entry.Ino,
				dir.Ino,
				name,
				AlreadyExistsErr,
			)
		}
		if !found {
			if scan.Ino == InoNil && Byte(scan.RecLen) >= need {
				found = true
				claimOffset = offset
				claimRecLen = scan.RecLen
				split = false
			} else if scan.Ino != InoNil &&
				encode.DirEntryFreeSpace(&scan) >= need {
				found = true
				claimOffset = offset + encode.DirEntrySize(scan.NameLen)
				claimRecLen = scan.RecLen -
					uint16(encode.DirEntrySize(scan.NameLen))
				splitOffset = offset
				splitRecLen = uint16(encode.DirEntrySize(scan.NameLen))
				split = true
			}
		}
		offset += Byte(scan.RecLen)
	}

	if !found {
		// append a fresh block; its single record owns the whole block
		claimOffset = dir.Size
		claimRecLen = uint16(BlockSize)
		split = false
	}

	newEntry.RecLen = claimRecLen
	if err := writeEntry(fs, dir, claimOffset, &newEntry); err != nil {
		return fmt.Errorf(
			"adding inode `%d` to dir `%d` as `%s`: %w",
			entry.Ino,
			dir.Ino,
			name,
			err,
		)
	}
	if !found {
		// the appended record owns its whole block, so the directory
		// grows by a full block regardless of the record's own size
		dir.Size = claimOffset + BlockSize
		if err := fs.Inodes.Put(dir); err != nil {
			return fmt.Errorf(
				"adding inode `%d` to dir `%d` as `%s`: extending dir: %w",
				entry.Ino,
				dir.Ino,
				name,
				err,
			)
		}
	}

	// shrink the donor record only after the new record is in place, so
	// a failure between the two writes leaves every entry reachable
	if split {
		var buf [2]byte
		encode.EncodeDirEntryRecLen(splitRecLen, &buf)
		if _, err := fs.IO.Write(
			dir,
			splitOffset+encode.DirEntryRecLenStart,
			buf[:],
		); err != nil {
			return fmt.Errorf(
				"adding inode `%d` to dir `%d` as `%s`: shrinking donor "+
					"record: %w",
				entry.Ino,
				dir.Ino,
				name,
				err,
			)
		}
	}

	entry.LinksCount++
	if err := fs.Inodes.Put(entry); err != nil {
		return fmt.Errorf(
			"adding inode `%d` to dir `%d` as `%s`: updating link count: %w",
			entry.Ino,
			dir.Ino,
			name,
			err,
		)
	}
	return nil
}

// writeEntry encodes a record (header, name, zeroed alignment padding)
// at the given offset. Growing past dir.Size extends the directory.
func writeEntry(fs *FileSystem, dir *Inode, offset Byte, entry *DirEntry) error {
	size := encode.DirEntrySize(entry.NameLen)
	buf := make([]byte, size)
	var header [encode.DirEntryHeaderSize]byte
	encode.EncodeDirEntryHeader(entry, &header)
	copy(buf, header[:])
	copy(buf[encode.DirEntryHeaderSize:], entry.Name)
	if _, err := fs.IO.Write(dir, offset, buf); err != nil {
		return fmt.Errorf(
			"writing direntry `%s` to inode `%d` at offset `%d`: %w",
			entry.Name,
			dir.Ino,
			offset,
			err,
		)
	}
	return nil
}

// CheckName rejects names a directory can't store.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("name `%s`: %w", name, InvalidArgumentErr)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("name of `%d` bytes: %w", len(name), NameTooLongErr)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return fmt.Errorf("name `%q`: %w", name, InvalidPathErr)
		}
	}
	return nil
}
