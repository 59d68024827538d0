package fs

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/multios/mfs/pkg/acl"
	. "github.com/multios/mfs/pkg/types"
)

// OpenFlags control Open's access mode and side effects.
type OpenFlags uint32

const (
	OpenRead OpenFlags = 1 << iota
	OpenWrite
	OpenCreate
	OpenTruncate
	OpenAppend
)

// Open resolves a path and returns a descriptor. OpenCreate creates a
// missing regular file (mode 0644, owned by the mount's caller);
// OpenTruncate empties an existing file; OpenAppend positions every
// write at the end of the file.
func (fs *FileSystem) Open(path string, flags OpenFlags) (int, error) {
	if err := fs.mounted(); err != nil {
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}
	if flags&(OpenRead|OpenWrite) == 0 {
		return -1, fmt.Errorf(
			"opening `%s`: no access mode requested: %w",
			path,
			InvalidArgumentErr,
		)
	}
	if len(fs.fds) >= fs.opts.MaxOpenFiles {
		return -1, fmt.Errorf("opening `%s`: %w", path, TooManyOpenFilesErr)
	}

	ino, err := fs.resolve(path)
	if err != nil {
		if !errors.Is(err, NotFoundErr) || flags&OpenCreate == 0 {
			return -1, fmt.Errorf("opening `%s`: %w", path, err)
		}
		parent, name, perr := fs.resolveParent(path)
		if perr != nil {
			return -1, fmt.Errorf("opening `%s`: %w", path, perr)
		}
		ino, err = fs.CreateFile(
			parent,
			name,
			fs.opts.UID,
			fs.opts.GID,
			0o644,
		)
		if err != nil {
			return -1, fmt.Errorf("opening `%s`: %w", path, err)
		}
	}

	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return -1, fmt.Errorf("opening `%s`: %w", path, err)
	}
	if inode.Mode.IsDir() && flags&OpenWrite != 0 {
		return -1, fmt.Errorf("opening `%s`: %w", path, IsADirErr)
	}
	if flags&OpenRead != 0 {
		if err := fs.checkAccess(&inode, acl.Read); err != nil {
			return -1, fmt.Errorf("opening `%s`: %w", path, err)
		}
	}
	if flags&OpenWrite != 0 {
		if err := fs.checkAccess(&inode, acl.Write); err != nil {
			return -1, fmt.Errorf("opening `%s`: %w", path, err)
		}
		if inode.Flags&FlagImmutable != 0 {
			return -1, fmt.Errorf("opening `%s`: %w", path, PermissionDeniedErr)
		}
	}
	if flags&OpenTruncate != 0 && flags&OpenWrite != 0 && inode.Size > 0 {
		if err := fs.Truncate(ino, 0); err != nil {
			return -1, fmt.Errorf("opening `%s`: %w", path, err)
		}
	}

	fd := fs.nextFD
	fs.nextFD++
	fs.fds[fd] = &openFile{ino: ino, flags: flags}
	return fd, nil
}

// Close releases a descriptor.
func (fs *FileSystem) Close(fd int) error {
	if err := fs.mounted(); err != nil {
		return fmt.Errorf("closing fd `%d`: %w", fd, err)
	}
	if _, open := fs.fds[fd]; !open {
		return fmt.Errorf("closing fd `%d`: %w", fd, BadDescriptorErr)
	}
	delete(fs.fds, fd)
	return nil
}

func (fs *FileSystem) file(fd int) (*openFile, error) {
	f, open := fs.fds[fd]
	if !open {
		return nil, BadDescriptorErr
	}
	return f, nil
}

// Read fills b from the descriptor's position, advancing it by the
// bytes read. The access time is buffered, not journaled.
func (fs *FileSystem) Read(fd int, b []byte) (int, error) {
	if err := fs.mounted(); err != nil {
		return 0, fmt.Errorf("reading fd `%d`: %w", fd, err)
	}
	f, err := fs.file(fd)
	if err != nil {
		return 0, fmt.Errorf("reading fd `%d`: %w", fd, err)
	}
	if f.flags&OpenRead == 0 {
		return 0, fmt.Errorf(
			"reading fd `%d`: opened without read access: %w",
			fd,
			BadDescriptorErr,
		)
	}
	var inode Inode
	if err := fs.inodes.Get(f.ino, &inode); err != nil {
		return 0, fmt.Errorf("reading fd `%d`: %w", fd, fs.fault(err))
	}
	n, err := fs.io.Read(&inode, f.position, b)
	if err != nil {
		return int(n), fmt.Errorf("reading fd `%d`: %w", fd, fs.fault(err))
	}
	f.position += n

	if fs.state == Mounted {
		inode.AccessTime = uint64(time.Now().Unix())
		fs.inodes.PutBuffered(&inode)
	}
	return int(n), nil
}

// Write stores b at the descriptor's position (the end of the file for
// append descriptors) inside one transaction.
func (fs *FileSystem) Write(fd int, b []byte) (int, error) {
	f, err := fs.file(fd)
	if err != nil {
		return 0, fmt.Errorf("writing fd `%d`: %w", fd, err)
	}
	if f.flags&OpenWrite == 0 {
		return 0, fmt.Errorf(
			"writing fd `%d`: opened without write access: %w",
			fd,
			BadDescriptorErr,
		)
	}

	txn, err := fs.begin()
	if err != nil {
		return 0, fmt.Errorf("writing fd `%d`: %w", fd, err)
	}
	var inode Inode
	if err := fs.inodes.Get(f.ino, &inode); err != nil {
		fs.abort(txn)
		return 0, fmt.Errorf("writing fd `%d`: %w", fd, err)
	}
	// an unlinked file's inode and blocks are back in the free pool;
	// writing through a stale descriptor must not resurrect them
	if inode.LinksCount == 0 {
		fs.abort(txn)
		return 0, fmt.Errorf(
			"writing fd `%d`: file was unlinked: %w",
			fd,
			BadDescriptorErr,
		)
	}
	position := f.position
	if f.flags&OpenAppend != 0 || inode.Flags&FlagAppendOnly != 0 {
		position = inode.Size
	}
	n, err := fs.io.Write(&inode, position, b)
	if err != nil {
		fs.abort(txn)
		return 0, fmt.Errorf("writing fd `%d`: %w", fd, fs.fault(err))
	}
	if err := fs.commit(txn); err != nil {
		return 0, fmt.Errorf("writing fd `%d`: %w", fd, err)
	}
	f.position = position + n
	return int(n), nil
}

// Seek moves the descriptor's position; whence is io.SeekStart,
// io.SeekCurrent or io.SeekEnd.
func (fs *FileSystem) Seek(fd int, offset Byte, whence int) (Byte, error) {
	if err := fs.mounted(); err != nil {
		return 0, fmt.Errorf("seeking fd `%d`: %w", fd, err)
	}
	f, err := fs.file(fd)
	if err != nil {
		return 0, fmt.Errorf("seeking fd `%d`: %w", fd, err)
	}
	var base Byte
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.position
	case io.SeekEnd:
		var inode Inode
		if err := fs.inodes.Get(f.ino, &inode); err != nil {
			return 0, fmt.Errorf("seeking fd `%d`: %w", fd, err)
		}
		base = inode.Size
	default:
		return 0, fmt.Errorf(
			"seeking fd `%d`: whence `%d`: %w",
			fd,
			whence,
			InvalidArgumentErr,
		)
	}
	position := base + offset
	if position < 0 {
		return 0, fmt.Errorf(
			"seeking fd `%d`: position `%d`: %w",
			fd,
			position,
			InvalidArgumentErr,
		)
	}
	f.position = position
	return position, nil
}

// Truncate sets a file's size, releasing blocks past the new end.
func (fs *FileSystem) Truncate(ino Ino, size Byte) error {
	var inode Inode
	if err := fs.inodes.Get(ino, &inode); err != nil {
		return fmt.Errorf("truncating inode `%d`: %w", ino, err)
	}
	if inode.Mode.IsDir() {
		return fmt.Errorf("truncating inode `%d`: %w", ino, IsADirErr)
	}
	if inode.LinksCount == 0 {
		return fmt.Errorf("truncating inode `%d`: %w", ino, NotFoundErr)
	}
	if err := fs.checkAccess(&inode, acl.Write); err != nil {
		return fmt.Errorf("truncating inode `%d`: %w", ino, err)
	}
	if inode.Flags&(FlagImmutable|FlagAppendOnly) != 0 {
		return fmt.Errorf(
			"truncating inode `%d`: %w",
			ino,
			PermissionDeniedErr,
		)
	}

	txn, err := fs.begin()
	if err != nil {
		return fmt.Errorf("truncating inode `%d`: %w", ino, err)
	}
	if err := fs.io.Truncate(&inode, size); err != nil {
		fs.abort(txn)
		return fmt.Errorf("truncating inode `%d`: %w", ino, fs.fault(err))
	}
	if err := fs.commit(txn); err != nil {
		return fmt.Errorf("truncating inode `%d`: %w", ino, err)
	}
	return nil
}
