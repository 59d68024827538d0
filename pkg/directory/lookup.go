package directory

import (
	"errors"
	"fmt"
	"io"

	. "github.com/multios/mfs/pkg/types"
)

// Lookup finds the live entry with the given name.
func Lookup(fs *FileSystem, dirIno Ino, name string, out *FileInfo) error {
	var h Handle
	if err := Open(fs, dirIno, &h); err != nil {
		return fmt.Errorf("looking up `%s` in dir `%d`: %w", name, dirIno, err)
	}

	for {
		var info FileInfo
		if err := ReadNext(fs, &h, &info); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf(
					"looking up `%s` in dir `%d`: %w",
					name,
					dirIno,
					NotFoundErr,
				)
			}
			return fmt.Errorf(
				"looking up `%s` in dir `%d`: %w",
				name,
				dirIno,
				err,
			)
		}
		if info.Name == name {
			*out = info
			return nil
		}
	}
}
