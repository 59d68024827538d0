package encode

import (
	"github.com/multios/mfs/pkg/math"
	. "github.com/multios/mfs/pkg/types"
)

const (
	dirEntryInoStart      Byte = 0
	DirEntryRecLenStart   Byte = 4
	dirEntryNameLenStart  Byte = 6
	dirEntryFileTypeStart Byte = 7

	DirEntryHeaderSize Byte = 8
)

// DirEntrySize is the space a live record needs: header plus name,
// rounded up to 4-byte alignment.
func DirEntrySize(nameLen uint8) Byte {
	return math.Align4(DirEntryHeaderSize + Byte(nameLen))
}

// DirEntryFreeSpace is the slack a record owns beyond its own needs; a
// new entry can be split off it.
func DirEntryFreeSpace(entry *DirEntry) Byte {
	return Byte(entry.RecLen) - DirEntrySize(entry.NameLen)
}

func EncodeDirEntryHeader(entry *DirEntry, b *[DirEntryHeaderSize]byte) {
	p := b[:]
	putIno(p, dirEntryInoStart, entry.Ino)
	putU16(p, DirEntryRecLenStart, entry.RecLen)
	putU8(p, dirEntryNameLenStart, entry.NameLen)
	putU8(p, dirEntryFileTypeStart, uint8(entry.FileType))
}

// DecodeDirEntryHeader does not validate the file type: zeroed records
// (deleted slots) are legal on disk.
func DecodeDirEntryHeader(entry *DirEntry, b *[DirEntryHeaderSize]byte) {
	p := b[:]
	entry.Ino = getIno(p, dirEntryInoStart)
	entry.RecLen = getU16(p, DirEntryRecLenStart)
	entry.NameLen = getU8(p, dirEntryNameLenStart)
	entry.FileType = FileType(getU8(p, dirEntryFileTypeStart))
}

func EncodeDirEntryRecLen(recLen uint16, b *[2]byte) {
	putU16(b[:], 0, recLen)
}

func EncodeDirEntryIno(ino Ino, b *[4]byte) {
	putIno(b[:], 0, ino)
}
