package types

import "fmt"

// Ino is an inode number. Inode numbers are global: the allocating
// group's index times inodes-per-group plus the group-local index plus
// one, so InoNil never collides with a real inode.
type Ino uint32

const (
	DirectBlocksCount Block = 12
	InodeSize         Byte  = 128

	InoNil  Ino = 0
	InoRoot Ino = 1
)

// Mode packs the file type and the 12 permission bits (including
// setuid/setgid/sticky, which are stored but not interpreted here).
type Mode uint16

const (
	ModeTypeMask Mode = 0xF000
	ModeRegular  Mode = 0x8000
	ModeDir      Mode = 0x4000
	ModeSymlink  Mode = 0xA000

	ModePermMask Mode = 0x0FFF
	ModeSetUID   Mode = 0x0800
	ModeSetGID   Mode = 0x0400
	ModeSticky   Mode = 0x0200
)

func (m Mode) Type() Mode      { return m & ModeTypeMask }
func (m Mode) Perm() Mode      { return m & ModePermMask }
func (m Mode) IsDir() bool     { return m.Type() == ModeDir }
func (m Mode) IsRegular() bool { return m.Type() == ModeRegular }
func (m Mode) IsSymlink() bool { return m.Type() == ModeSymlink }

// FileType is the one-byte type hint carried in directory entries.
type FileType uint8

const (
	FileTypeUnknown FileType = 0
	FileTypeRegular FileType = 1
	FileTypeDir     FileType = 2
	FileTypeSymlink FileType = 7
)

func (ft FileType) String() string {
	switch ft {
	case FileTypeUnknown:
		return "Unknown"
	case FileTypeRegular:
		return "Regular"
	case FileTypeDir:
		return "Dir"
	case FileTypeSymlink:
		return "Symlink"
	default:
		return fmt.Sprintf("FileType(%d)", uint8(ft))
	}
}

func (m Mode) FileType() FileType {
	switch m.Type() {
	case ModeRegular:
		return FileTypeRegular
	case ModeDir:
		return FileTypeDir
	case ModeSymlink:
		return FileTypeSymlink
	default:
		return FileTypeUnknown
	}
}

// InodeFlags mirror the on-disk inode flag bits.
type InodeFlags uint32

const (
	FlagAppendOnly InodeFlags = 0x00000020
	FlagImmutable  InodeFlags = 0x00000040
	FlagSymlink    InodeFlags = 0x00000080
	FlagCompressed InodeFlags = 0x00000100
	FlagEncrypted  InodeFlags = 0x00000800
	FlagIndexDir   InodeFlags = 0x00020000
)

// Inode is the in-memory form of the fixed 128-byte on-disk record. Ino
// is not stored on disk; the store fills it in from the table position.
type Inode struct {
	Ino        Ino
	Mode       Mode
	UID        uint16
	GID        uint16
	LinksCount uint16
	Size       Byte
	AccessTime uint64
	CreateTime uint64
	ModifyTime uint64
	DeleteTime uint64
	Flags      InodeFlags
	BlockCount uint32

	Direct         [DirectBlocksCount]Block
	SinglyIndirect Block
	DoublyIndirect Block
	TriplyIndirect Block

	XattrBlock      Block
	AccessACLBlock  Block
	DefaultACLBlock Block
}

// InodeStore loads and stores inode records by inode number.
type InodeStore interface {
	Put(inode *Inode) error
	Get(ino Ino, output *Inode) error
}
