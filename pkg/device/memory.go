package device

import (
	. "github.com/multios/mfs/pkg/types"
)

// Memory is an in-memory device used by tests and by the CLI's dry-run
// mode. Writes are immediate, so Flush is a no-op.
type Memory struct {
	data []byte
}

var _ Device = (*Memory)(nil)

func NewMemory(blocks Block) *Memory {
	return &Memory{data: make([]byte, Byte(blocks)*BlockSize)}
}

func (m *Memory) ReadBlock(n Block, buf []byte) error {
	if err := checkRange("reading", n, m.BlockCount(), buf); err != nil {
		return err
	}
	offset := Byte(n) * BlockSize
	copy(buf, m.data[offset:offset+BlockSize])
	return nil
}

func (m *Memory) WriteBlock(n Block, buf []byte) error {
	if err := checkRange("writing", n, m.BlockCount(), buf); err != nil {
		return err
	}
	offset := Byte(n) * BlockSize
	copy(m.data[offset:offset+BlockSize], buf)
	return nil
}

func (m *Memory) Flush() error { return nil }

func (m *Memory) BlockCount() Block {
	return Block(Byte(len(m.data)) / BlockSize)
}

// Bytes exposes the backing store so tests can inspect raw images.
func (m *Memory) Bytes() []byte { return m.data }
