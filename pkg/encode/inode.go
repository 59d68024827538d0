package encode

import (
	. "github.com/multios/mfs/pkg/types"
)

const (
	inodeModeStart       Byte = 0
	inodeUIDStart        Byte = 2
	inodeGIDStart        Byte = 4
	inodeLinksStart      Byte = 6
	inodeSizeStart       Byte = 8
	inodeAccessTimeStart Byte = 16
	inodeCreateTimeStart Byte = 24
	inodeModifyTimeStart Byte = 32
	inodeDeleteTimeStart Byte = 40
	inodeFlagsStart      Byte = 48
	inodeBlockCountStart Byte = 52
	inodeDirectStart     Byte = 56
	inodeSinglyStart     Byte = 104
	inodeDoublyStart     Byte = 108
	inodeTriplyStart     Byte = 112
	inodeXattrStart      Byte = 116
	inodeAccessACLStart  Byte = 120
	inodeDefaultACLStart Byte = 124
)

// EncodeInode packs the fixed 128-byte record. Ino itself is positional
// and not stored.
func EncodeInode(inode *Inode, b *[InodeSize]byte) {
	p := b[:]
	putU16(p, inodeModeStart, uint16(inode.Mode))
	putU16(p, inodeUIDStart, inode.UID)
	putU16(p, inodeGIDStart, inode.GID)
	putU16(p, inodeLinksStart, inode.LinksCount)
	putU64(p, inodeSizeStart, uint64(inode.Size))
	putU64(p, inodeAccessTimeStart, inode.AccessTime)
	putU64(p, inodeCreateTimeStart, inode.CreateTime)
	putU64(p, inodeModifyTimeStart, inode.ModifyTime)
	putU64(p, inodeDeleteTimeStart, inode.DeleteTime)
	putU32(p, inodeFlagsStart, uint32(inode.Flags))
	putU32(p, inodeBlockCountStart, inode.BlockCount)
	for i := Byte(0); i < Byte(DirectBlocksCount); i++ {
		putBlock(p, inodeDirectStart+i*BlockPointerSize, inode.Direct[i])
	}
	putBlock(p, inodeSinglyStart, inode.SinglyIndirect)
	putBlock(p, inodeDoublyStart, inode.DoublyIndirect)
	putBlock(p, inodeTriplyStart, inode.TriplyIndirect)
	putBlock(p, inodeXattrStart, inode.XattrBlock)
	putBlock(p, inodeAccessACLStart, inode.AccessACLBlock)
	putBlock(p, inodeDefaultACLStart, inode.DefaultACLBlock)
}

func DecodeInode(inode *Inode, b *[InodeSize]byte) {
	p := b[:]
	inode.Mode = Mode(getU16(p, inodeModeStart))
	inode.UID = getU16(p, inodeUIDStart)
	inode.GID = getU16(p, inodeGIDStart)
	inode.LinksCount = getU16(p, inodeLinksStart)
	inode.Size = Byte(getU64(p, inodeSizeStart))
	inode.AccessTime = getU64(p, inodeAccessTimeStart)
	inode.CreateTime = getU64(p, inodeCreateTimeStart)
	inode.ModifyTime = getU64(p, inodeModifyTimeStart)
	inode.DeleteTime = getU64(p, inodeDeleteTimeStart)
	inode.Flags = InodeFlags(getU32(p, inodeFlagsStart))
	inode.BlockCount = getU32(p, inodeBlockCountStart)
	for i := Byte(0); i < Byte(DirectBlocksCount); i++ {
		inode.Direct[i] = getBlock(p, inodeDirectStart+i*BlockPointerSize)
	}
	inode.SinglyIndirect = getBlock(p, inodeSinglyStart)
	inode.DoublyIndirect = getBlock(p, inodeDoublyStart)
	inode.TriplyIndirect = getBlock(p, inodeTriplyStart)
	inode.XattrBlock = getBlock(p, inodeXattrStart)
	inode.AccessACLBlock = getBlock(p, inodeAccessACLStart)
	inode.DefaultACLBlock = getBlock(p, inodeDefaultACLStart)
}
