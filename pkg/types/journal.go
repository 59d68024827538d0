package types

const (
	JournalHeaderMagic uint32 = 0x4D46534C // "MFSL"
	JournalRecordMagic uint32 = 0x4D46534A // "MFSJ"

	// DefaultJournalBlocks sizes the journal region at format time
	// (4 MiB).
	DefaultJournalBlocks Block = 1024

	// DefaultJournalCapacity caps outstanding records in one transaction
	// before a forced checkpoint.
	DefaultJournalCapacity = 10000
)

// JournalRecordKind discriminates journal slots.
type JournalRecordKind uint32

const (
	JournalRecordData   JournalRecordKind = 1
	JournalRecordCommit JournalRecordKind = 2
)

// JournalRecord is the decoded header of one journal slot. Data records
// are followed by the raw 4,096-byte image of the target block in the
// next slot; commit records stand alone with Target == BlockNil.
type JournalRecord struct {
	Kind      JournalRecordKind
	Sequence  uint64
	Target    Block
	Timestamp uint64
}

// JournalHeader is the journal region's first block: the scan window and
// the last assigned sequence number.
type JournalHeader struct {
	Sequence uint64
	Head     Block
	Tail     Block
}
