package device

import (
	"fmt"
	"os"

	. "github.com/multios/mfs/pkg/types"
)

// File is a device backed by a regular file (or a raw block device
// node). The OS may buffer writes; Flush maps to fsync.
type File struct {
	f      *os.File
	blocks Block
}

var _ Device = (*File)(nil)

// OpenFile opens an existing image. The file size must be a whole number
// of blocks.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening device `%s`: %w", path, IOErr)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening device `%s`: %w", path, IOErr)
	}
	if Byte(info.Size())%BlockSize != 0 {
		f.Close()
		return nil, fmt.Errorf(
			"opening device `%s`: size `%d` is not a multiple of the block "+
				"size (`%d`): %w",
			path,
			info.Size(),
			BlockSize,
			InvalidArgumentErr,
		)
	}
	return &File{f: f, blocks: Block(Byte(info.Size()) / BlockSize)}, nil
}

// CreateFile creates (or truncates) an image sized to the given block
// count.
func CreateFile(path string, blocks Block) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating device `%s`: %w", path, IOErr)
	}
	if err := f.Truncate(int64(Byte(blocks) * BlockSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating device `%s`: %w", path, IOErr)
	}
	return &File{f: f, blocks: blocks}, nil
}

func (d *File) ReadBlock(n Block, buf []byte) error {
	if err := checkRange("reading", n, d.blocks, buf); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(buf, int64(Byte(n)*BlockSize)); err != nil {
		return fmt.Errorf("reading block `%d`: %v: %w", n, err, IOErr)
	}
	return nil
}

func (d *File) WriteBlock(n Block, buf []byte) error {
	if err := checkRange("writing", n, d.blocks, buf); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(buf, int64(Byte(n)*BlockSize)); err != nil {
		return fmt.Errorf("writing block `%d`: %v: %w", n, err, IOErr)
	}
	return nil
}

func (d *File) Flush() error {
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("flushing device: %v: %w", err, IOErr)
	}
	return nil
}

func (d *File) BlockCount() Block { return d.blocks }

func (d *File) Close() error { return d.f.Close() }
