package directory

import (
	"fmt"

	"github.com/multios/mfs/pkg/encode"
	. "github.com/multios/mfs/pkg/types"
)

// RemoveEntry unlinks a name from a directory. A record that follows
// another in its block is absorbed into its predecessor's reclen; the
// first record of a block just has its ino zeroed (its reclen keeps the
// slot reachable for reuse). The removed inode's link count is
// decremented and the record, with Ino filled in, is returned through
// out.
func RemoveEntry(fs *FileSystem, dir *Inode, name string, out *FileInfo) error {
	var (
		scan       DirEntry
		offset     Byte
		prevOffset Byte
		prevRecLen uint16
		hasPrev    bool
	)
	for offset < dir.Size {
		if offset%BlockSize == 0 {
			// records never straddle blocks, so coalescing stops here
			hasPrev = false
		}
		if err := readEntry(fs, dir, offset, &scan); err != nil {
			return fmt.Errorf(
				"removing `%s` from dir `%d`: %w",
				name,
				dir.Ino,
				err,
			)
		}
		if scan.Ino != InoNil && scan.Name == name {
			if hasPrev {
				var buf [2]byte
				encode.EncodeDirEntryRecLen(prevRecLen+scan.RecLen, &buf)
				if _, err := fs.IO.Write(
					dir,
					prevOffset+encode.DirEntryRecLenStart,
					buf[:],
				); err != nil {
					return fmt.Errorf(
						"removing `%s` from dir `%d`: growing preceding "+
							"record: %w",
						name,
						dir.Ino,
						err,
					)
				}
			} else {
				var buf [4]byte
				encode.EncodeDirEntryIno(InoNil, &buf)
				if _, err := fs.IO.Write(dir, offset, buf[:]); err != nil {
					return fmt.Errorf(
						"removing `%s` from dir `%d`: clearing record: %w",
						name,
						dir.Ino,
						err,
					)
				}
			}

			var removed Inode
			if err := fs.Inodes.Get(scan.Ino, &removed); err != nil {
				return fmt.Errorf(
					"removing `%s` from dir `%d`: loading inode `%d`: %w",
					name,
					dir.Ino,
					scan.Ino,
					err,
				)
			}
			if removed.LinksCount > 0 {
				removed.LinksCount--
			}
			if err := fs.Inodes.Put(&removed); err != nil {
				return fmt.Errorf(
					"removing `%s` from dir `%d`: updating link count of "+
						"inode `%d`: %w",
					name,
					dir.Ino,
					scan.Ino,
					err,
				)
			}

			out.Ino = scan.Ino
			out.FileType = scan.FileType
			out.Name = scan.Name
			return nil
		}

		prevOffset = offset
		prevRecLen = scan.RecLen
		hasPrev = true
		offset += Byte(scan.RecLen)
	}

	return fmt.Errorf(
		"removing `%s` from dir `%d`: %w",
		name,
		dir.Ino,
		NotFoundErr,
	)
}
