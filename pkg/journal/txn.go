package journal

import (
	"fmt"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// Txn is an open transaction. It implements device.Device so the
// layers above it (allocator, inode table, block map, directories) are
// oblivious to journaling: their reads see their own uncommitted
// writes, and their writes become post-images applied only on commit.
type Txn struct {
	journal *Journal
	order   []Block
	images  map[Block][]byte
	closed  bool
}

var _ device.Device = (*Txn)(nil)

// Begin opens a transaction against the journal's base device.
func (j *Journal) Begin() *Txn {
	return &Txn{
		journal: j,
		images:  make(map[Block][]byte),
	}
}

func (txn *Txn) ReadBlock(b Block, p []byte) error {
	if image, captured := txn.images[b]; captured {
		copy(p, image)
		return nil
	}
	return txn.journal.base.ReadBlock(b, p)
}

func (txn *Txn) WriteBlock(b Block, p []byte) error {
	if txn.closed {
		return fmt.Errorf(
			"capturing block `%d`: transaction already closed: %w",
			b,
			InvalidArgumentErr,
		)
	}
	if len(p) != int(BlockSize) {
		return fmt.Errorf(
			"capturing block `%d`: image is `%d` bytes: %w",
			b,
			len(p),
			InvalidArgumentErr,
		)
	}
	image, captured := txn.images[b]
	if !captured {
		image = make([]byte, BlockSize)
		txn.images[b] = image
		txn.order = append(txn.order, b)
	}
	copy(image, p)
	return nil
}

// Flush is a no-op: durability happens at commit.
func (txn *Txn) Flush() error { return nil }

func (txn *Txn) BlockCount() Block { return txn.journal.base.BlockCount() }

// Blocks is the number of distinct blocks captured so far.
func (txn *Txn) Blocks() int { return len(txn.order) }

// Abort discards the transaction. The log is untouched and no sequence
// number is consumed.
func (txn *Txn) Abort() {
	txn.closed = true
	txn.order = nil
	txn.images = nil
}

// Commit makes the transaction durable: post-images and a commit record
// go to the log and are flushed, then the images are applied to their
// home blocks and flushed again. A crash before the first flush loses
// the transaction whole; a crash after it is repaired by replay.
func (txn *Txn) Commit() error {
	if txn.closed {
		return fmt.Errorf("committing transaction: already closed: %w",
			InvalidArgumentErr)
	}
	txn.closed = true
	if len(txn.order) == 0 {
		return nil
	}

	j := txn.journal
	needed := Block(2*len(txn.order) + 1)
	if j.header.Tail+needed > j.slots() ||
		j.written+len(txn.order)+1 > j.capacity {
		if err := j.checkpoint(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
	}
	if needed > j.slots() {
		return fmt.Errorf(
			"committing transaction: `%d` blocks exceed the journal's `%d` "+
				"slots: %w",
			len(txn.order),
			j.slots(),
			DiskFullErr,
		)
	}

	seq := j.header.Sequence + 1
	now := timestamp()
	slot := j.header.Tail
	buf := make([]byte, BlockSize)
	for _, target := range txn.order {
		record := JournalRecord{
			Kind:      JournalRecordData,
			Sequence:  seq,
			Target:    target,
			Timestamp: now,
		}
		encode.EncodeJournalRecord(&record, buf)
		if err := j.base.WriteBlock(j.slotBlock(slot), buf); err != nil {
			return fmt.Errorf(
				"committing transaction: logging record for block `%d`: %w",
				target,
				err,
			)
		}
		if err := j.base.WriteBlock(
			j.slotBlock(slot+1),
			txn.images[target],
		); err != nil {
			return fmt.Errorf(
				"committing transaction: logging image of block `%d`: %w",
				target,
				err,
			)
		}
		slot += 2
	}
	commit := JournalRecord{
		Kind:      JournalRecordCommit,
		Sequence:  seq,
		Timestamp: now,
	}
	encode.EncodeJournalRecord(&commit, buf)
	if err := j.base.WriteBlock(j.slotBlock(slot), buf); err != nil {
		return fmt.Errorf("committing transaction: logging commit: %w", err)
	}
	slot++
	if err := j.base.Flush(); err != nil {
		return fmt.Errorf("committing transaction: flushing log: %w", err)
	}

	// the point of no return: the commit record is durable
	for _, target := range txn.order {
		if err := j.base.WriteBlock(target, txn.images[target]); err != nil {
			return fmt.Errorf(
				"committing transaction: applying block `%d` (recoverable "+
					"by replay): %w",
				target,
				err,
			)
		}
	}
	if err := j.base.Flush(); err != nil {
		return fmt.Errorf(
			"committing transaction: flushing applied blocks (recoverable "+
				"by replay): %w",
			err,
		)
	}

	j.header.Sequence = seq
	j.header.Head = slot
	j.header.Tail = slot
	j.written += len(txn.order) + 1
	if err := j.writeHeader(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
