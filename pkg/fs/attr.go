package fs

import (
	"fmt"

	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

func (fs *FileSystem) aclEnabled() error {
	if fs.sb.Features&(FeatureACL|FeatureSecurity) == 0 {
		return fmt.Errorf(
			"volume formatted without the ACL feature: %w",
			UnsupportedOperationErr,
		)
	}
	return nil
}

func (fs *FileSystem) xattrEnabled() error {
	if fs.sb.Features&FeatureAttributes == 0 {
		return fmt.Errorf(
			"volume formatted without the extended-attributes feature: %w",
			UnsupportedOperationErr,
		)
	}
	return nil
}

// GetACL returns an inode's access ACL; nil when it has none.
func (fs *FileSystem) GetACL(ino Ino) ([]ACLEntry, error) {
	if err := fs.mounted(); err != nil {
		return nil, fmt.Errorf("reading ACL of inode `%d`: %w", ino, err)
	}
	if err := fs.aclEnabled(); err != nil {
		return nil, fmt.Errorf("reading ACL of inode `%d`: %w", ino, err)
	}
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return nil, fmt.Errorf("reading ACL of inode `%d`: %w", ino, err)
	}
	entries, err := fs.loadACL(&inode)
	if err != nil {
		return nil, fmt.Errorf("reading ACL of inode `%d`: %w", ino, err)
	}
	return entries, nil
}

// SetACL replaces an inode's access ACL; an empty list removes it and
// releases its block. Only the owner (or the superuser) may change it.
func (fs *FileSystem) SetACL(ino Ino, entries []ACLEntry) error {
	wrap := func(err error) error {
		return fmt.Errorf("setting ACL of inode `%d`: %w", ino, err)
	}
	if err := fs.aclEnabled(); err != nil {
		return wrap(err)
	}
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return wrap(err)
	}
	if fs.opts.UID != 0 && fs.opts.UID != uint32(inode.UID) {
		return wrap(PermissionDeniedErr)
	}

	txn, err := fs.begin()
	if err != nil {
		return wrap(err)
	}
	if len(entries) == 0 {
		if inode.AccessACLBlock != BlockNil {
			fs.alloc.FreeBlock(inode.AccessACLBlock)
			inode.AccessACLBlock = BlockNil
			if err := fs.inodes.Put(&inode); err != nil {
				fs.abort(txn)
				return wrap(err)
			}
		}
		return fs.commit(txn)
	}

	if inode.AccessACLBlock == BlockNil {
		b, err := fs.alloc.AllocBlock(BlockNil)
		if err != nil {
			fs.abort(txn)
			return wrap(err)
		}
		inode.AccessACLBlock = b
	}
	buf := make([]byte, BlockSize)
	if err := encode.EncodeACLBlock(entries, buf); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := fs.op.WriteBlock(inode.AccessACLBlock, buf); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := fs.inodes.Put(&inode); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	return fs.commit(txn)
}

func (fs *FileSystem) loadXattrs(inode *Inode) ([]Xattr, error) {
	if inode.XattrBlock == BlockNil {
		return nil, nil
	}
	buf := make([]byte, BlockSize)
	if err := fs.op.ReadBlock(inode.XattrBlock, buf); err != nil {
		return nil, err
	}
	return encode.DecodeXattrBlock(buf)
}

// GetXattr returns one extended attribute's value.
func (fs *FileSystem) GetXattr(ino Ino, name string) ([]byte, error) {
	wrap := func(err error) error {
		return fmt.Errorf(
			"reading xattr `%s` of inode `%d`: %w",
			name,
			ino,
			err,
		)
	}
	if err := fs.mounted(); err != nil {
		return nil, wrap(err)
	}
	if err := fs.xattrEnabled(); err != nil {
		return nil, wrap(err)
	}
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return nil, wrap(err)
	}
	attrs, err := fs.loadXattrs(&inode)
	if err != nil {
		return nil, wrap(err)
	}
	for i := range attrs {
		if attrs[i].Name == name {
			return attrs[i].Value, nil
		}
	}
	return nil, wrap(NotFoundErr)
}

// ListXattrs returns every extended attribute name on the inode.
func (fs *FileSystem) ListXattrs(ino Ino) ([]string, error) {
	wrap := func(err error) error {
		return fmt.Errorf("listing xattrs of inode `%d`: %w", ino, err)
	}
	if err := fs.mounted(); err != nil {
		return nil, wrap(err)
	}
	if err := fs.xattrEnabled(); err != nil {
		return nil, wrap(err)
	}
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return nil, wrap(err)
	}
	attrs, err := fs.loadXattrs(&inode)
	if err != nil {
		return nil, wrap(err)
	}
	names := make([]string, len(attrs))
	for i := range attrs {
		names[i] = attrs[i].Name
	}
	return names, nil
}

// SetXattr stores one extended attribute; a nil value removes it. The
// last removed attribute releases the attribute block.
func (fs *FileSystem) SetXattr(ino Ino, name string, value []byte) error {
	wrap := func(err error) error {
		return fmt.Errorf(
			"setting xattr `%s` of inode `%d`: %w",
			name,
			ino,
			err,
		)
	}
	if err := fs.xattrEnabled(); err != nil {
		return wrap(err)
	}
	if name == "" {
		return wrap(InvalidArgumentErr)
	}
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return wrap(err)
	}
	if fs.opts.UID != 0 && fs.opts.UID != uint32(inode.UID) {
		return wrap(PermissionDeniedErr)
	}

	txn, err := fs.begin()
	if err != nil {
		return wrap(err)
	}
	attrs, err := fs.loadXattrs(&inode)
	if err != nil {
		fs.abort(txn)
		return wrap(err)
	}

	replaced := false
	next := attrs[:0]
	for i := range attrs {
		if attrs[i].Name == name {
			replaced = true
			if value == nil {
				continue
			}
			attrs[i].Value = value
		}
		next = append(next, attrs[i])
	}
	if !replaced {
		if value == nil {
			fs.abort(txn)
			return wrap(NotFoundErr)
		}
		next = append(next, Xattr{Name: name, Value: value})
	}

	if len(next) == 0 {
		if inode.XattrBlock != BlockNil {
			fs.alloc.FreeBlock(inode.XattrBlock)
			inode.XattrBlock = BlockNil
			if err := fs.inodes.Put(&inode); err != nil {
				fs.abort(txn)
				return wrap(err)
			}
		}
		return fs.commit(txn)
	}

	if inode.XattrBlock == BlockNil {
		b, err := fs.alloc.AllocBlock(BlockNil)
		if err != nil {
			fs.abort(txn)
			return wrap(err)
		}
		inode.XattrBlock = b
	}
	buf := make([]byte, BlockSize)
	if err := encode.EncodeXattrBlock(next, buf); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := fs.op.WriteBlock(inode.XattrBlock, buf); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	if err := fs.inodes.Put(&inode); err != nil {
		fs.abort(txn)
		return wrap(err)
	}
	return fs.commit(txn)
}
