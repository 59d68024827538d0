// Package inode persists inode records in the per-group inode tables
// and fronts them with a small LRU cache.
package inode

import (
	"fmt"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/encode"
	"github.com/multios/mfs/pkg/layout"
	. "github.com/multios/mfs/pkg/types"
)

// TableStore reads and writes 128-byte inode records by
// read-modify-writing the inode-table block that holds them. It goes
// through the handle's current device, so stores made during an
// operation ride the open transaction.
type TableStore struct {
	dev device.Device
	geo layout.Geometry
}

var _ InodeStore = (*TableStore)(nil)

func NewTableStore(dev device.Device, geo layout.Geometry) *TableStore {
	return &TableStore{dev: dev, geo: geo}
}

func (s *TableStore) Put(inode *Inode) error {
	tableBlock, offset, err := s.geo.InodeLocation(inode.Ino)
	if err != nil {
		return fmt.Errorf("storing inode `%d`: %w", inode.Ino, err)
	}
	buf := make([]byte, BlockSize)
	if err := s.dev.ReadBlock(tableBlock, buf); err != nil {
		return fmt.Errorf("storing inode `%d`: %w", inode.Ino, err)
	}
	var record [InodeSize]byte
	encode.EncodeInode(inode, &record)
	copy(buf[offset:offset+InodeSize], record[:])
	if err := s.dev.WriteBlock(tableBlock, buf); err != nil {
		return fmt.Errorf("storing inode `%d`: %w", inode.Ino, err)
	}
	return nil
}

func (s *TableStore) Get(ino Ino, output *Inode) error {
	tableBlock, offset, err := s.geo.InodeLocation(ino)
	if err != nil {
		return fmt.Errorf("fetching inode `%d`: %w", ino, err)
	}
	buf := make([]byte, BlockSize)
	if err := s.dev.ReadBlock(tableBlock, buf); err != nil {
		return fmt.Errorf("fetching inode `%d`: %w", ino, err)
	}
	record := (*[InodeSize]byte)(buf[offset : offset+InodeSize])
	encode.DecodeInode(output, record)
	output.Ino = ino
	return nil
}
