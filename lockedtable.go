// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"math/bits"
	"sync"
)

// LockedTable is an exclusive handle on a Table: while it is held, no other
// goroutine can observe or make progress on the table, so LockedTable's own
// methods never need to acquire a stripe lock themselves. It is useful for
// batches of operations that must appear atomic as a whole, and for
// iterating over every entry without interleaving with writers. Obtain one
// with Table.LockTable, and release it with Unlock when done; a LockedTable
// left unreleased blocks the whole table forever.
//
// LockedTable is not safe for concurrent use by multiple goroutines; it is
// a handle for the single goroutine that locked the table.
type LockedTable[K comparable, V any] struct {
	table    *Table[K, V]
	locked   []*stripe
	mu       sync.Mutex
	released bool
}

// LockTable acquires every stripe and returns a LockedTable. It blocks
// until it can acquire all of them; a concurrent LockTable call from another
// goroutine waits until this one is unlocked, and a second LockTable call
// from the goroutine already holding one deadlocks. Callers should treat it
// like acquiring a single global mutex.
func (t *Table[K, V]) LockTable() *LockedTable[K, V] {
	for {
		n := t.stripes.allocatedSize()
		locked := make([]*stripe, n)
		for i := uint64(0); i < n; i++ {
			locked[i] = t.stripeAt(i)
		}
		for _, s := range locked {
			s.lock()
		}
		// A resize that finished while we waited may have allocated more
		// stripes; retry so that every stripe is held.
		if t.stripes.allocatedSize() == n {
			return &LockedTable[K, V]{table: t, locked: locked}
		}
		unlockAll(locked)
	}
}

// Unlock releases the table. It is idempotent; calling it more than once
// has no effect beyond the first.
func (lt *LockedTable[K, V]) Unlock() {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.released {
		return
	}
	lt.released = true
	unlockAll(lt.locked)
}

func (lt *LockedTable[K, V]) isReleased() bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.released
}

// ExactSize counts occupied slots directly, unlike Table.Size's lock-free
// approximation: since the table is exclusively held, the count is exact.
func (lt *LockedTable[K, V]) ExactSize() uint64 {
	buckets := lt.table.bucketsSnapshot()
	var n uint64
	for i := range buckets {
		n += uint64(bits.OnesCount8(buckets[i].occupied))
	}
	return n
}

// Find looks up key and reports whether it is present.
func (lt *LockedTable[K, V]) Find(key K) (V, bool) {
	hv := hashKey(lt.table.hasher, key)
	buckets := lt.table.bucketsSnapshot()
	hashpower := lt.table.hp.Load()
	i1 := primaryIndex(hv.hash, hashpower)
	i2 := altIndex(i1, hv.tag, hashpower)
	for _, bi := range [2]uint64{i1, i2} {
		b := &buckets[bi]
		if slot, ok := b.findSlot(hv.tag, key, lt.table.equal); ok {
			return b.vals[slot], true
		}
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (lt *LockedTable[K, V]) Contains(key K) bool {
	_, ok := lt.Find(key)
	return ok
}

// Insert adds key/value if key is not already present. It reports whether
// the insert happened. Unlike Table.Insert, it returns ErrTableFull instead
// of growing the table automatically, since growing would require
// re-acquiring locks this handle already holds.
func (lt *LockedTable[K, V]) Insert(key K, value V) (bool, error) {
	hv := hashKey(lt.table.hasher, key)
	buckets := lt.table.bucketsSnapshot()
	hashpower := lt.table.hp.Load()
	i1 := primaryIndex(hv.hash, hashpower)
	i2 := altIndex(i1, hv.tag, hashpower)
	b1, b2 := &buckets[i1], &buckets[i2]

	if _, ok := b1.findSlot(hv.tag, key, lt.table.equal); ok {
		return false, nil
	}
	if _, ok := b2.findSlot(hv.tag, key, lt.table.equal); ok {
		return false, nil
	}
	if slot := b1.firstEmptySlot(); slot >= 0 {
		b1.set(slot, hv.tag, key, value)
		lt.table.stripeAt(lt.table.stripeIndexForBucket(i1)).incr()
		return true, nil
	}
	if slot := b2.firstEmptySlot(); slot >= 0 {
		b2.set(slot, hv.tag, key, value)
		lt.table.stripeAt(lt.table.stripeIndexForBucket(i2)).incr()
		return true, nil
	}

	path, found := lt.table.searchCuckooPath(buckets, i1, i2)
	if !found {
		return false, ErrTableFull
	}
	if !lt.table.moveAlongPathNoLock(path, buckets, key, hv, value) {
		return false, ErrTableFull
	}
	return true, nil
}

// Erase removes key if present, reporting whether it was found.
func (lt *LockedTable[K, V]) Erase(key K) bool {
	hv := hashKey(lt.table.hasher, key)
	buckets := lt.table.bucketsSnapshot()
	hashpower := lt.table.hp.Load()
	i1 := primaryIndex(hv.hash, hashpower)
	i2 := altIndex(i1, hv.tag, hashpower)
	for _, bi := range [2]uint64{i1, i2} {
		b := &buckets[bi]
		if slot, ok := b.findSlot(hv.tag, key, lt.table.equal); ok {
			b.erase(slot)
			lt.table.stripeAt(lt.table.stripeIndexForBucket(bi)).decr()
			return true
		}
	}
	return false
}

// Iterator walks every occupied slot of a LockedTable in bucket order.
// A zero Iterator is not usable; obtain one from LockedTable.Begin.
type Iterator[K comparable, V any] struct {
	lt      *LockedTable[K, V]
	bucket  int
	slot    int
	atEnd   bool
	lastErr error
}

// Begin returns an iterator positioned at the first occupied slot, or at
// End if the table is empty.
func (lt *LockedTable[K, V]) Begin() *Iterator[K, V] {
	it := &Iterator[K, V]{lt: lt, bucket: 0, slot: -1}
	it.advance()
	return it
}

// End returns an iterator positioned past the last element.
func (lt *LockedTable[K, V]) End() *Iterator[K, V] {
	return &Iterator[K, V]{lt: lt, atEnd: true}
}

// Err reports the error that last interrupted iteration, if any. It is set
// once the parent LockedTable has been released and further movement is
// attempted.
func (it *Iterator[K, V]) Err() error { return it.lastErr }

func (it *Iterator[K, V]) advance() {
	if it.lt.isReleased() {
		it.atEnd = true
		it.lastErr = ErrTableInvalidated
		return
	}
	buckets := it.lt.table.bucketsSnapshot()
	for it.bucket < len(buckets) {
		b := &buckets[it.bucket]
		for it.slot++; it.slot < slotsPerBucket; it.slot++ {
			if b.isOccupied(it.slot) {
				return
			}
		}
		it.bucket++
		it.slot = -1
	}
	it.atEnd = true
}

func (it *Iterator[K, V]) retreat() {
	if it.lt.isReleased() {
		it.atEnd = true
		it.lastErr = ErrTableInvalidated
		return
	}
	buckets := it.lt.table.bucketsSnapshot()
	if it.atEnd {
		it.bucket = len(buckets) - 1
		it.slot = slotsPerBucket
	}
	for it.bucket >= 0 {
		b := &buckets[it.bucket]
		for it.slot--; it.slot >= 0; it.slot-- {
			if b.isOccupied(it.slot) {
				it.atEnd = false
				return
			}
		}
		it.bucket--
		it.slot = slotsPerBucket
	}
	it.bucket = -1
}

// Next advances the iterator and reports whether it now points at a valid
// element (false means it reached End, possibly because Err() is set).
func (it *Iterator[K, V]) Next() bool {
	if it.atEnd {
		return false
	}
	it.advance()
	return !it.atEnd
}

// Prev moves the iterator backward and reports whether it now points at a
// valid element.
func (it *Iterator[K, V]) Prev() bool {
	it.retreat()
	return it.bucket >= 0 && !it.atEnd
}

// Key returns the key at the iterator's current position.
func (it *Iterator[K, V]) Key() K {
	buckets := it.lt.table.bucketsSnapshot()
	return buckets[it.bucket].keys[it.slot]
}

// Value returns the value at the iterator's current position.
func (it *Iterator[K, V]) Value() V {
	buckets := it.lt.table.bucketsSnapshot()
	return buckets[it.bucket].vals[it.slot]
}

// SetValue replaces the value at the iterator's current position.
func (it *Iterator[K, V]) SetValue(v V) {
	buckets := it.lt.table.bucketsSnapshot()
	buckets[it.bucket].vals[it.slot] = v
}

// Equal reports whether it and other refer to the same position. Two End
// iterators, or Begin and End on an empty table, always compare equal.
func (it *Iterator[K, V]) Equal(other *Iterator[K, V]) bool {
	if it.atEnd || other.atEnd {
		return it.atEnd == other.atEnd
	}
	return it.bucket == other.bucket && it.slot == other.slot
}
