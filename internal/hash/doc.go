// Package hash provides the CRC32-Castagnoli checksum that guards serialized
// motion database binaries.
//
// The checksum covers the header fields after the checksum slot and the
// stored, possibly compressed, payload:
//
//	h := hash.NewCRC32C()
//	h.Write(header[16:])
//	h.Write(payload)
//	sum := h.Sum32()
package hash
