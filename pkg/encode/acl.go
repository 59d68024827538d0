package encode

import (
	"fmt"

	. "github.com/multios/mfs/pkg/types"
)

const (
	aclMagicStart Byte = 0
	aclCountStart Byte = 4
	aclEntryStart Byte = 8

	aclEntryTagStart       Byte = 0
	aclEntryPermStart      Byte = 2
	aclEntryQualifierStart Byte = 4
	// bytes 8..16 of each entry are reserved

	// MaxACLEntries is how many 16-byte entries fit in one block after
	// the header.
	MaxACLEntries = int((BlockSize - aclEntryStart) / ACLEntrySize)
)

func EncodeACLBlock(entries []ACLEntry, b []byte) error {
	if len(entries) > MaxACLEntries {
		return fmt.Errorf(
			"encoding acl: `%d` entries exceed block capacity (`%d`): %w",
			len(entries),
			MaxACLEntries,
			InvalidArgumentErr,
		)
	}
	for i := range b {
		b[i] = 0
	}
	putU32(b, aclMagicStart, ACLBlockMagic)
	putU32(b, aclCountStart, uint32(len(entries)))
	for i := range entries {
		start := aclEntryStart + Byte(i)*ACLEntrySize
		putU16(b, start+aclEntryTagStart, uint16(entries[i].Tag))
		putU16(b, start+aclEntryPermStart, entries[i].Perm)
		putU32(b, start+aclEntryQualifierStart, entries[i].Qualifier)
	}
	return nil
}

func DecodeACLBlock(b []byte) ([]ACLEntry, error) {
	if magic := getU32(b, aclMagicStart); magic != ACLBlockMagic {
		return nil, fmt.Errorf(
			"acl block magic: wanted `%#08x`; found `%#08x`: %w",
			ACLBlockMagic,
			magic,
			CorruptionDetectedErr,
		)
	}
	count := int(getU32(b, aclCountStart))
	if count > MaxACLEntries {
		return nil, fmt.Errorf(
			"acl block entry count `%d` exceeds capacity (`%d`): %w",
			count,
			MaxACLEntries,
			CorruptionDetectedErr,
		)
	}
	entries := make([]ACLEntry, count)
	for i := 0; i < count; i++ {
		start := aclEntryStart + Byte(i)*ACLEntrySize
		entries[i] = ACLEntry{
			Tag:       ACLTag(getU16(b, start+aclEntryTagStart)),
			Perm:      getU16(b, start+aclEntryPermStart),
			Qualifier: getU32(b, start+aclEntryQualifierStart),
		}
	}
	return entries, nil
}
