package encode

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

const (
	jhMagicStart    Byte = 0
	jhSequenceStart Byte = 8
	jhHeadStart     Byte = 16
	jhTailStart     Byte = 20
	jhChecksumStart Byte = 24

	jrMagicStart     Byte = 0
	jrKindStart      Byte = 4
	jrSequenceStart  Byte = 8
	jrTargetStart    Byte = 16
	jrTimestampStart Byte = 24
	jrChecksumStart  Byte = 32
)

func EncodeJournalHeader(h *JournalHeader, b []byte) {
	for i := range b {
		b[i] = 0
	}
	putU32(b, jhMagicStart, JournalHeaderMagic)
	putU64(b, jhSequenceStart, h.Sequence)
	putU32(b, jhHeadStart, uint32(h.Head))
	putU32(b, jhTailStart, uint32(h.Tail))
	putU32(b, jhChecksumStart, Checksum32(b[:jhChecksumStart]))
}

func DecodeJournalHeader(h *JournalHeader, b []byte) error {
	if magic := getU32(b, jhMagicStart); magic != JournalHeaderMagic {
		return fmt.Errorf(
			"journal header magic: wanted `%#08x`; found `%#08x`: %w",
			JournalHeaderMagic,
			magic,
			CorruptionDetectedErr,
		)
	}
	stored := getU32(b, jhChecksumStart)
	if computed := Checksum32(b[:jhChecksumStart]); computed != stored {
		return fmt.Errorf(
			"journal header checksum: wanted `%#08x`; found `%#08x`: %w",
			computed,
			stored,
			CorruptionDetectedErr,
		)
	}
	h.Sequence = getU64(b, jhSequenceStart)
	h.Head = Block(getU32(b, jhHeadStart))
	h.Tail = Block(getU32(b, jhTailStart))
	return nil
}

func EncodeJournalRecord(r *JournalRecord, b []byte) {
	for i := range b {
		b[i] = 0
	}
	putU32(b, jrMagicStart, JournalRecordMagic)
	putU32(b, jrKindStart, uint32(r.Kind))
	putU64(b, jrSequenceStart, r.Sequence)
	putU64(b, jrTargetStart, uint64(r.Target))
	putU64(b, jrTimestampStart, r.Timestamp)
	putU32(b, jrChecksumStart, Checksum32(b[:jrChecksumStart]))
}

// DecodeJournalRecord reports ok=false for slots that don't carry a
// valid record header (unwritten space, torn writes, stale images);
// replay treats those as the end of the log.
func DecodeJournalRecord(r *JournalRecord, b []byte) (ok bool) {
	if getU32(b, jrMagicStart) != JournalRecordMagic {
		return false
	}
	if getU32(b, jrChecksumStart) != Checksum32(b[:jrChecksumStart]) {
		return false
	}
	r.Kind = JournalRecordKind(getU32(b, jrKindStart))
	r.Sequence = getU64(b, jrSequenceStart)
	r.Target = Block(getU64(b, jrTargetStart))
	r.Timestamp = getU64(b, jrTimestampStart)
	return r.Kind == JournalRecordData || r.Kind == JournalRecordCommit
}
