// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import "github.com/dagsnest/cuckootable/internal/murmur"

// hashedKey bundles a key's full hash with its 8-bit tag, computed once per
// operation so that retries of a snapshot-and-lock loop don't re-hash the
// key.
type hashedKey struct {
	hash uint64
	tag  uint8
}

func hashKey[K comparable](hasher func(K) uint64, k K) hashedKey {
	h := hasher(k)
	return hashedKey{hash: h, tag: tagOf(h)}
}

// tagOf folds a 64-bit hash down to 8 bits. The tag depends only on the
// hash, never on the table size, so that after an in-place doubling the
// alternate bucket of a key differs from its primary bucket only in the new
// high bit.
func tagOf(hash uint64) uint8 {
	h32 := murmur.Fold64To32(hash)
	h16 := murmur.Fold32To16(h32)
	return murmur.Fold16To8(h16)
}

// hashMask returns the bit mask for a bucket array at the given hashpower.
func hashMask(hashpower uint32) uint64 {
	return (uint64(1) << hashpower) - 1
}

// bucketCount returns 2^hashpower, the number of buckets at that hashpower.
func bucketCount(hashpower uint32) uint64 {
	return uint64(1) << hashpower
}

// primaryIndex returns a key's primary (first candidate) bucket.
func primaryIndex(hash uint64, hashpower uint32) uint64 {
	return hash & hashMask(hashpower)
}

// altIndex returns the other candidate bucket given one of the two and the
// key's tag. It is an involution: altIndex(altIndex(b, tag, p), tag, p) == b.
//
// tag+1 keeps the multiplier nonzero: a tag of 0 would otherwise always map
// a bucket to itself.
func altIndex(bucket uint64, tag uint8, hashpower uint32) uint64 {
	return (bucket ^ ((uint64(tag) + 1) * murmur.Multiply64)) & hashMask(hashpower)
}

// reserveHashpower returns the smallest hashpower whose bucket capacity
// (2^hashpower buckets * slotsPerBucket slots) can hold n elements.
func reserveHashpower(n uint64) uint32 {
	if n == 0 {
		return 1
	}
	buckets := (n + slotsPerBucket - 1) / slotsPerBucket
	var p uint32 = 1
	for bucketCount(p) < buckets {
		p++
	}
	return p
}
