package types

import "fmt"

const (
	SuperblockMagic   uint32 = 0x4D465300 // "MFS\0"
	SuperblockVersion uint16 = 1

	DefaultInodesPerGroup Ino    = 1024
	DefaultMaxMountCount  uint16 = 30
	DefaultReservedPct    uint16 = 5
)

// State is the superblock integrity state.
type State uint16

const (
	StateClean        State = 0x0001
	StateError        State = 0x0002
	StateOrphanInodes State = 0x0004
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "Clean"
	case StateError:
		return "Error"
	case StateOrphanInodes:
		return "OrphanInodes"
	default:
		return fmt.Sprintf("State(%d)", uint16(s))
	}
}

// ErrorPolicy selects the behavior on metadata corruption or device
// faults.
type ErrorPolicy uint16

const (
	ErrorsIgnore          ErrorPolicy = 0x0001
	ErrorsRemountReadOnly ErrorPolicy = 0x0002
	ErrorsPanic           ErrorPolicy = 0x0003
)

// Features is the superblock feature-flag set.
type Features uint32

const (
	FeatureJournaling  Features = 0x0001
	FeatureIndexing    Features = 0x0002
	FeatureSecurity    Features = 0x0004
	FeatureCompression Features = 0x0008
	FeatureLargeFiles  Features = 0x0010
	FeatureEncryption  Features = 0x0020
	FeatureAttributes  Features = 0x0040
	FeatureQuotas      Features = 0x0080
	FeatureACL         Features = 0x0100

	// FeaturesSupported is the set of feature bits this implementation can
	// interpret. Mounting refuses anything outside this set: reserved bits
	// (compression, encryption, quotas) change how data must be read, so
	// they are treated as incompatible until implemented.
	FeaturesSupported = FeatureJournaling | FeatureIndexing |
		FeatureSecurity | FeatureLargeFiles | FeatureAttributes | FeatureACL

	// FeaturesDefault is what Format writes when the caller passes none.
	FeaturesDefault = FeatureJournaling | FeatureSecurity |
		FeatureLargeFiles | FeatureAttributes | FeatureACL
)

// Superblock is the in-memory form of block 0.
type Superblock struct {
	Magic          uint32
	Version        uint16
	State          State
	BlockSize      Byte
	BlocksPerGroup Block
	TotalBlocks    Block
	TotalInodes    Ino
	FreeBlocks     Block
	FreeInodes     Ino
	GroupCount     uint32
	InodesPerGroup Ino
	FirstDataBlock Block
	JournalBlock   Block
	JournalBlocks  Block
	Features       Features
	CreateTime     uint64
	LastMountTime  uint64
	MountCount     uint32
	MaxMountCount  uint16
	ErrorPolicy    ErrorPolicy
	RevisionLevel  uint16
	ReservedPct    uint16
	AllocHint      Block
	VolumeID       [16]byte
	VolumeLabel    [16]byte
	Checksum       uint32
}

// Validate checks the invariants that make the rest of the superblock
// trustworthy. Checksum verification happens at decode time.
func (sb *Superblock) Validate() error {
	if sb.Magic != SuperblockMagic {
		return fmt.Errorf(
			"superblock magic: wanted `%#08x`; found `%#08x`: %w",
			SuperblockMagic,
			sb.Magic,
			CorruptionDetectedErr,
		)
	}
	if sb.Version != SuperblockVersion {
		return fmt.Errorf(
			"superblock version `%d` not supported: %w",
			sb.Version,
			UnsupportedOperationErr,
		)
	}
	if sb.BlockSize != BlockSize {
		return fmt.Errorf(
			"superblock block size `%d`: wanted `%d`: %w",
			sb.BlockSize,
			BlockSize,
			UnsupportedOperationErr,
		)
	}
	if sb.FreeBlocks > sb.TotalBlocks || sb.FreeInodes > sb.TotalInodes {
		return fmt.Errorf(
			"superblock free counts exceed totals "+
				"(blocks `%d`/`%d`, inodes `%d`/`%d`): %w",
			sb.FreeBlocks,
			sb.TotalBlocks,
			sb.FreeInodes,
			sb.TotalInodes,
			CorruptionDetectedErr,
		)
	}
	if sb.JournalBlock+sb.JournalBlocks > sb.TotalBlocks {
		return fmt.Errorf(
			"journal region [`%d`, `%d`) exceeds volume (`%d` blocks): %w",
			sb.JournalBlock,
			sb.JournalBlock+sb.JournalBlocks,
			sb.TotalBlocks,
			CorruptionDetectedErr,
		)
	}
	return nil
}

// CheckFeatures refuses feature bits this implementation cannot honor.
func (sb *Superblock) CheckFeatures() error {
	if unknown := sb.Features &^ FeaturesSupported; unknown != 0 {
		return fmt.Errorf(
			"volume uses incompatible features `%#x`: %w",
			uint32(unknown),
			UnsupportedOperationErr,
		)
	}
	if sb.Features&FeatureJournaling == 0 {
		return fmt.Errorf(
			"volume formatted without journaling: %w",
			UnsupportedOperationErr,
		)
	}
	return nil
}
