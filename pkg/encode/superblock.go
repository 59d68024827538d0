package encode

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

const (
	sbMagicStart          Byte = 0
	sbVersionStart        Byte = 4
	sbStateStart          Byte = 6
	sbBlockSizeStart      Byte = 8
	sbBlocksPerGroupStart Byte = 12
	sbTotalBlocksStart    Byte = 16
	sbTotalInodesStart    Byte = 24
	sbFreeBlocksStart     Byte = 32
	sbFreeInodesStart     Byte = 40
	sbGroupCountStart     Byte = 48
	sbInodesPerGroupStart Byte = 52
	sbFirstDataBlockStart Byte = 56
	sbJournalBlockStart   Byte = 64
	sbJournalBlocksStart  Byte = 72
	sbFeaturesStart       Byte = 76
	sbCreateTimeStart     Byte = 80
	sbLastMountTimeStart  Byte = 88
	sbMountCountStart     Byte = 96
	sbMaxMountCountStart  Byte = 100
	sbErrorPolicyStart    Byte = 102
	sbRevisionLevelStart  Byte = 104
	sbReservedPctStart    Byte = 106
	sbAllocHintStart      Byte = 108
	sbVolumeIDStart       Byte = 112
	sbVolumeLabelStart    Byte = 128
	sbChecksumStart       Byte = 144

	// SuperblockEncodedSize covers every field including the checksum;
	// the rest of block 0 is zero padding.
	SuperblockEncodedSize Byte = sbChecksumStart + 4
)

// EncodeSuperblock fills a whole block image, computing the checksum
// over all bytes preceding the checksum field.
func EncodeSuperblock(sb *Superblock, b []byte) {
	for i := range b {
		b[i] = 0
	}
	putU32(b, sbMagicStart, sb.Magic)
	putU16(b, sbVersionStart, sb.Version)
	putU16(b, sbStateStart, uint16(sb.State))
	putU32(b, sbBlockSizeStart, uint32(sb.BlockSize))
	putU32(b, sbBlocksPerGroupStart, uint32(sb.BlocksPerGroup))
	putU64(b, sbTotalBlocksStart, uint64(sb.TotalBlocks))
	putU64(b, sbTotalInodesStart, uint64(sb.TotalInodes))
	putU64(b, sbFreeBlocksStart, uint64(sb.FreeBlocks))
	putU64(b, sbFreeInodesStart, uint64(sb.FreeInodes))
	putU32(b, sbGroupCountStart, sb.GroupCount)
	putU32(b, sbInodesPerGroupStart, uint32(sb.InodesPerGroup))
	putU64(b, sbFirstDataBlockStart, uint64(sb.FirstDataBlock))
	putU64(b, sbJournalBlockStart, uint64(sb.JournalBlock))
	putU32(b, sbJournalBlocksStart, uint32(sb.JournalBlocks))
	putU32(b, sbFeaturesStart, uint32(sb.Features))
	putU64(b, sbCreateTimeStart, sb.CreateTime)
	putU64(b, sbLastMountTimeStart, sb.LastMountTime)
	putU32(b, sbMountCountStart, sb.MountCount)
	putU16(b, sbMaxMountCountStart, sb.MaxMountCount)
	putU16(b, sbErrorPolicyStart, uint16(sb.ErrorPolicy))
	putU16(b, sbRevisionLevelStart, sb.RevisionLevel)
	putU16(b, sbReservedPctStart, sb.ReservedPct)
	putU32(b, sbAllocHintStart, uint32(sb.AllocHint))
	copy(b[sbVolumeIDStart:sbVolumeIDStart+16], sb.VolumeID[:])
	copy(b[sbVolumeLabelStart:sbVolumeLabelStart+16], sb.VolumeLabel[:])
	sb.Checksum = Checksum32(b[:sbChecksumStart])
	putU32(b, sbChecksumStart, sb.Checksum)
}

// DecodeSuperblock verifies the checksum and unpacks block 0.
func DecodeSuperblock(sb *Superblock, b []byte) error {
	stored := getU32(b, sbChecksumStart)
	if computed := Checksum32(b[:sbChecksumStart]); computed != stored {
		return fmt.Errorf(
			"superblock checksum: wanted `%#08x`; found `%#08x`: %w",
			computed,
			stored,
			CorruptionDetectedErr,
		)
	}
	sb.Magic = getU32(b, sbMagicStart)
	sb.Version = getU16(b, sbVersionStart)
	sb.State = State(getU16(b, sbStateStart))
	sb.BlockSize = Byte(getU32(b, sbBlockSizeStart))
	sb.BlocksPerGroup = Block(getU32(b, sbBlocksPerGroupStart))
	sb.TotalBlocks = Block(getU64(b, sbTotalBlocksStart))
	sb.TotalInodes = Ino(getU64(b, sbTotalInodesStart))
	sb.FreeBlocks = Block(getU64(b, sbFreeBlocksStart))
	sb.FreeInodes = Ino(getU64(b, sbFreeInodesStart))
	sb.GroupCount = getU32(b, sbGroupCountStart)
	sb.InodesPerGroup = Ino(getU32(b, sbInodesPerGroupStart))
	sb.FirstDataBlock = Block(getU64(b, sbFirstDataBlockStart))
	sb.JournalBlock = Block(getU64(b, sbJournalBlockStart))
	sb.JournalBlocks = Block(getU32(b, sbJournalBlocksStart))
	sb.Features = Features(getU32(b, sbFeaturesStart))
	sb.CreateTime = getU64(b, sbCreateTimeStart)
	sb.LastMountTime = getU64(b, sbLastMountTimeStart)
	sb.MountCount = getU32(b, sbMountCountStart)
	sb.MaxMountCount = getU16(b, sbMaxMountCountStart)
	sb.ErrorPolicy = ErrorPolicy(getU16(b, sbErrorPolicyStart))
	sb.RevisionLevel = getU16(b, sbRevisionLevelStart)
	sb.ReservedPct = getU16(b, sbReservedPctStart)
	sb.AllocHint = Block(getU32(b, sbAllocHintStart))
	copy(sb.VolumeID[:], b[sbVolumeIDStart:sbVolumeIDStart+16])
	copy(sb.VolumeLabel[:], b[sbVolumeLabelStart:sbVolumeLabelStart+16])
	sb.Checksum = stored
	return nil
}
