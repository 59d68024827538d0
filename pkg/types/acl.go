package types

const (
	ACLBlockMagic   uint32 = 0x4D465341 // "MFSA"
	XattrBlockMagic uint32 = 0x4D465358 // "MFSX"

	ACLEntrySize Byte = 16
)

// ACLTag identifies whom an ACL entry applies to.
type ACLTag uint16

const (
	ACLOwner      ACLTag = 1
	ACLNamedUser  ACLTag = 2
	ACLGroup      ACLTag = 3
	ACLNamedGroup ACLTag = 4
	ACLMask       ACLTag = 5
	ACLOther      ACLTag = 6
)

// ACL permission bits.
const (
	ACLRead  uint16 = 0x4
	ACLWrite uint16 = 0x2
	ACLExec  uint16 = 0x1
)

// ACLEntry is one 16-byte access-control entry. Entries are evaluated in
// order; the first entry whose tag and qualifier match the caller
// decides.
type ACLEntry struct {
	Tag       ACLTag
	Perm      uint16
	Qualifier uint32
}

// Xattr is one extended-attribute pair.
type Xattr struct {
	Name  string
	Value []byte
}
