package types

// MaxNameLen is the longest directory entry name in bytes.
const MaxNameLen = 255

// DirEntry is one directory record. On disk the header is 8 bytes
// (ino u32, reclen u16, namelen u8, type u8) followed by the name; the
// record is padded to 4-byte alignment and never straddles a block.
// Ino == InoNil marks a deleted slot whose space is still owned by
// RecLen.
type DirEntry struct {
	Ino      Ino
	RecLen   uint16
	NameLen  uint8
	FileType FileType
	Name     string
}
