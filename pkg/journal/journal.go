// Package journal implements the write-ahead log. Every mutating
// operation accumulates post-images of the blocks it touches in a
// transaction; commit writes the images to the log, seals them with a
// commit record, and only then applies them to their home blocks. The
// flush between the commit record and the apply is the atomicity
// boundary: after a crash, a present commit record means roll forward,
// an absent one means the transaction never happened.
//
// On disk the region starts with a header block (sequence, scan window)
// followed by slots. A data record occupies two slots: a header block
// naming the target, then the raw 4,096-byte image. A commit record is
// one header-only slot with target 0.
package journal

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

type Journal struct {
	base     device.Device
	start    Block
	blocks   Block
	capacity int
	header   JournalHeader
	written  int // records since the last checkpoint
	log      logrus.FieldLogger
}

func New(
	base device.Device,
	start Block,
	blocks Block,
	capacity int,
	log logrus.FieldLogger,
) *Journal {
	if capacity < 1 {
		capacity = DefaultJournalCapacity
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Journal{
		base:     base,
		start:    start,
		blocks:   blocks,
		capacity: capacity,
		log:      log,
	}
}

// slots is the number of record slots (the first block is the header).
func (j *Journal) slots() Block { return j.blocks - 1 }

func (j *Journal) slotBlock(slot Block) Block { return j.start + 1 + slot }

// Sequence is the last committed sequence number.
func (j *Journal) Sequence() uint64 { return j.header.Sequence }

// Depth is the number of record slots between head and tail.
func (j *Journal) Depth() Block { return j.header.Tail - j.header.Head }

// Format initializes an empty journal region.
func (j *Journal) Format() error {
	buf := make([]byte, BlockSize)
	j.header = JournalHeader{}
	encode.EncodeJournalHeader(&j.header, buf)
	if err := j.base.WriteBlock(j.start, buf); err != nil {
		return fmt.Errorf("formatting journal: %w", err)
	}
	return nil
}

// Load reads the journal header at mount time.
func (j *Journal) Load() error {
	buf := make([]byte, BlockSize)
	if err := j.base.ReadBlock(j.start, buf); err != nil {
		return fmt.Errorf("loading journal: %w", err)
	}
	if err := encode.DecodeJournalHeader(&j.header, buf); err != nil {
		return fmt.Errorf("loading journal: %w", err)
	}
	return nil
}

func (j *Journal) writeHeader() error {
	buf := make([]byte, BlockSize)
	encode.EncodeJournalHeader(&j.header, buf)
	if err := j.base.WriteBlock(j.start, buf); err != nil {
		return fmt.Errorf("writing journal header: %w", err)
	}
	return nil
}

// checkpoint resets the log. Safe whenever no transaction is mid-commit:
// every committed record has already been applied and flushed, so the
// log's contents are only needed for crash recovery of the *next*
// commit.
func (j *Journal) checkpoint() error {
	j.header.Head = 0
	j.header.Tail = 0
	j.written = 0
	if err := j.writeHeader(); err != nil {
		return fmt.Errorf("checkpointing journal: %w", err)
	}
	j.log.WithField("sequence", j.header.Sequence).
		Debug("journal checkpoint")
	return nil
}

// Replay scans forward from the head, re-applying every run of records
// sealed by a commit. Runs without a commit are discarded. Stale
// records (sequence at or below the header's) are skipped: they were
// applied before the header was last written, which makes a second
// replay a no-op.
func (j *Journal) Replay() (int, error) {
	if err := j.Load(); err != nil {
		return 0, fmt.Errorf("replaying journal: %w", err)
	}

	applied := 0
	maxSeq := j.header.Sequence
	slot := j.header.Head

	type pendingImage struct {
		target Block
		image  []byte
	}
	var pending []pendingImage
	var pendingSeq uint64

	buf := make([]byte, BlockSize)
	for slot < j.slots() {
		if err := j.base.ReadBlock(j.slotBlock(slot), buf); err != nil {
			return applied, fmt.Errorf(
				"replaying journal: reading slot `%d`: %w",
				slot,
				err,
			)
		}
		var record JournalRecord
		if !encode.DecodeJournalRecord(&record, buf) {
			break
		}
		if record.Sequence <= j.header.Sequence {
			// stale image from before the last checkpoint
			break
		}
		switch record.Kind {
		case JournalRecordData:
			if pendingSeq != 0 && record.Sequence != pendingSeq {
				// a new transaction without a commit for the previous
				// one: discard the incomplete run
				pending = pending[:0]
			}
			pendingSeq = record.Sequence
			if slot+1 >= j.slots() {
				// torn: header without image
				slot = j.slots()
				break
			}
			image := make([]byte, BlockSize)
			if err := j.base.ReadBlock(j.slotBlock(slot+1), image); err != nil {
				return applied, fmt.Errorf(
					"replaying journal: reading image slot `%d`: %w",
					slot+1,
					err,
				)
			}
			pending = append(pending, pendingImage{
				target: record.Target,
				image:  image,
			})
			slot += 2
		case JournalRecordCommit:
			if record.Sequence == pendingSeq && len(pending) > 0 {
				for _, p := range pending {
					if err := j.base.WriteBlock(p.target, p.image); err != nil {
						return applied, fmt.Errorf(
							"replaying journal: applying block `%d`: %w",
							p.target,
							err,
						)
					}
				}
				if err := j.base.Flush(); err != nil {
					return applied, fmt.Errorf("replaying journal: %w", err)
				}
				applied++
			}
			if record.Sequence > maxSeq {
				maxSeq = record.Sequence
			}
			pending = pending[:0]
			pendingSeq = 0
			slot++
		}
	}

	j.header.Sequence = maxSeq
	j.header.Head = 0
	j.header.Tail = 0
	j.written = 0
	if err := j.writeHeader(); err != nil {
		return applied, fmt.Errorf("replaying journal: %w", err)
	}
	if err := j.base.Flush(); err != nil {
		return applied, fmt.Errorf("replaying journal: %w", err)
	}
	if applied > 0 {
		j.log.WithFields(logrus.Fields{
			"transactions": applied,
			"sequence":     maxSeq,
		}).Info("journal replay rolled forward")
	}
	return applied, nil
}

func timestamp() uint64 { return uint64(time.Now().Unix()) }
