// Package murmur exposes the 64-bit mixing constant from MurmurHash2 used by
// the cuckoo engine's alternate-bucket involution, and the XOR-fold helpers
// that reduce a 64-bit hash to the engine's 8-bit tag.
package murmur

// Multiply64 is the 64-bit MurmurHash2 multiplicative constant. Cuckoo
// hashing uses it, multiplied against (tag+1), to compute a key's alternate
// bucket from its primary bucket; the "+1" keeps the multiplier nonzero so
// the mapping stays well distributed even when tag == 0.
const Multiply64 uint64 = 0xc6a4a7935bd1e995

// Fold64To32 XORs the two halves of a 64-bit hash together.
func Fold64To32(h uint64) uint32 {
	return uint32(h) ^ uint32(h>>32)
}

// Fold32To16 XORs the two halves of a 32-bit value together.
func Fold32To16(h uint32) uint16 {
	return uint16(h) ^ uint16(h>>16)
}

// Fold16To8 XORs the two halves of a 16-bit value together.
func Fold16To8(h uint16) uint8 {
	return uint8(h) ^ uint8(h>>8)
}
