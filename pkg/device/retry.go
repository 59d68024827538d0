package device

import (
	"errors"

	. "github.com/multios/mfs/pkg/types"
)

// Retry wraps a device and retries transient I/O failures a bounded
// number of times. Only IOErr is retried; argument errors propagate
// immediately. This is the one place in the stack that recovers
// anything silently.
type Retry struct {
	Inner    Device
	Attempts int
}

var _ Device = (*Retry)(nil)

func (r *Retry) ReadBlock(n Block, buf []byte) error {
	return r.retry(func() error { return r.Inner.ReadBlock(n, buf) })
}

func (r *Retry) WriteBlock(n Block, buf []byte) error {
	return r.retry(func() error { return r.Inner.WriteBlock(n, buf) })
}

func (r *Retry) Flush() error {
	return r.retry(func() error { return r.Inner.Flush() })
}

func (r *Retry) BlockCount() Block { return r.Inner.BlockCount() }

func (r *Retry) retry(op func() error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil || !errors.Is(err, IOErr) {
			return err
		}
	}
	return err
}
