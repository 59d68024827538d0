package encode

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Checksum32 is the 32-bit checksum used by the superblock and the
// journal (CRC32-C).
func Checksum32(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

// Checksum16 is the truncated variant carried by group descriptors.
func Checksum16(b []byte) uint16 {
	return uint16(Checksum32(b) & 0xFFFF)
}
