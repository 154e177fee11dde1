// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import "sort"

// lockStripesFor locks, in ascending stripe-index order, every distinct
// stripe that covers the given bucket indices, and returns the locked
// stripes. Locking in a fixed global order across all callers is what keeps
// concurrent multi-bucket operations deadlock-free.
func (t *Table[K, V]) lockStripesFor(bucketIdxs ...uint64) []*stripe {
	seen := make(map[uint64]bool, len(bucketIdxs))
	idxs := make([]uint64, 0, len(bucketIdxs))
	for _, b := range bucketIdxs {
		si := t.stripeIndexForBucket(b)
		if !seen[si] {
			seen[si] = true
			idxs = append(idxs, si)
		}
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	locked := make([]*stripe, len(idxs))
	for i, si := range idxs {
		s := t.stripeAt(si)
		s.lock()
		locked[i] = s
	}
	return locked
}

func unlockAll(stripes []*stripe) {
	for _, s := range stripes {
		s.unlock()
	}
}

// snapshotAndLock locks the stripes covering compute's result at the
// table's current hashpower, then rechecks that the hashpower hasn't
// changed underneath it (a resize running concurrently would otherwise
// leave the caller holding locks for buckets that no longer mean anything).
// On a mismatch it unlocks and retries against the new hashpower.
func (t *Table[K, V]) snapshotAndLock(compute func(hashpower uint32) []uint64) (hashpower uint32, bucketIdxs []uint64, locked []*stripe) {
	for {
		hashpower = t.hp.Load()
		bucketIdxs = compute(hashpower)
		locked = t.lockStripesFor(bucketIdxs...)
		if t.hp.Load() == hashpower {
			return
		}
		unlockAll(locked)
	}
}

func twoBucketsFunc(hv hashedKey) func(uint32) []uint64 {
	return func(hashpower uint32) []uint64 {
		i1 := primaryIndex(hv.hash, hashpower)
		i2 := altIndex(i1, hv.tag, hashpower)
		return []uint64{i1, i2}
	}
}

// Find looks up key and reports whether it is present.
func (t *Table[K, V]) Find(key K) (V, bool) {
	hv := hashKey(t.hasher, key)
	_, idxs, locked := t.snapshotAndLock(twoBucketsFunc(hv))
	defer unlockAll(locked)

	buckets := t.bucketsSnapshot()
	for _, bi := range idxs {
		b := &buckets[bi]
		if slot, ok := b.findSlot(hv.tag, key, t.equal); ok {
			return b.vals[slot], true
		}
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (t *Table[K, V]) Contains(key K) bool {
	_, ok := t.Find(key)
	return ok
}

// Get looks up key and returns its value, or ErrNotFound if key is absent.
// It is Find's error-returning counterpart, for callers that want a missing
// key folded into their own error chain (errors.Is(err, ErrNotFound))
// instead of a second boolean to check.
func (t *Table[K, V]) Get(key K) (V, error) {
	v, ok := t.Find(key)
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Erase removes key if present, reporting whether it was found.
func (t *Table[K, V]) Erase(key K) bool {
	hv := hashKey(t.hasher, key)
	_, idxs, locked := t.snapshotAndLock(twoBucketsFunc(hv))
	defer unlockAll(locked)

	buckets := t.bucketsSnapshot()
	for _, bi := range idxs {
		b := &buckets[bi]
		if slot, ok := b.findSlot(hv.tag, key, t.equal); ok {
			b.erase(slot)
			t.stripeAt(t.stripeIndexForBucket(bi)).decr()
			t.metrics.incErases()
			return true
		}
	}
	return false
}

// Update replaces the value stored for key if it is present, reporting
// whether it found a key to update. It never inserts.
func (t *Table[K, V]) Update(key K, value V) bool {
	hv := hashKey(t.hasher, key)
	_, idxs, locked := t.snapshotAndLock(twoBucketsFunc(hv))
	defer unlockAll(locked)

	buckets := t.bucketsSnapshot()
	for _, bi := range idxs {
		b := &buckets[bi]
		if slot, ok := b.findSlot(hv.tag, key, t.equal); ok {
			b.vals[slot] = value
			return true
		}
	}
	return false
}

// UpdateFn calls fn with a pointer to the stored value for key, if present,
// letting fn mutate it in place. It reports whether key was found. It never
// inserts.
func (t *Table[K, V]) UpdateFn(key K, fn func(*V)) bool {
	hv := hashKey(t.hasher, key)
	_, idxs, locked := t.snapshotAndLock(twoBucketsFunc(hv))
	defer unlockAll(locked)

	buckets := t.bucketsSnapshot()
	for _, bi := range idxs {
		b := &buckets[bi]
		if slot, ok := b.findSlot(hv.tag, key, t.equal); ok {
			fn(&b.vals[slot])
			return true
		}
	}
	return false
}

// insertOrUpsert is the shared implementation behind Insert and Upsert. When
// key is already present, it calls combine(old, true) only if updateIfFound
// is set; otherwise it leaves the existing entry untouched. When key is
// absent, it always inserts combine(zero, false), growing the table via the
// cuckoo eviction search (and, if that search is exhausted, a resize) as
// needed. A concurrent hashpower change or a cuckoo path invalidated by a
// racing writer both simply restart the whole attempt from the top, which is
// also how a duplicate key inserted by another goroutine during the
// eviction search gets picked up: the restarted attempt re-scans both
// candidate buckets from scratch.
func (t *Table[K, V]) insertOrUpsert(key K, combine func(old V, found bool) V, updateIfFound bool) (V, bool, error) {
	hv := hashKey(t.hasher, key)
	for {
		hashpower, idxs, locked := t.snapshotAndLock(twoBucketsFunc(hv))
		i1, i2 := idxs[0], idxs[1]
		buckets := t.bucketsSnapshot()
		b1, b2 := &buckets[i1], &buckets[i2]

		if slot, ok := b1.findSlot(hv.tag, key, t.equal); ok {
			old := b1.vals[slot]
			if !updateIfFound {
				unlockAll(locked)
				return old, false, nil
			}
			newV := combine(old, true)
			b1.vals[slot] = newV
			unlockAll(locked)
			return newV, false, nil
		}
		if slot, ok := b2.findSlot(hv.tag, key, t.equal); ok {
			old := b2.vals[slot]
			if !updateIfFound {
				unlockAll(locked)
				return old, false, nil
			}
			newV := combine(old, true)
			b2.vals[slot] = newV
			unlockAll(locked)
			return newV, false, nil
		}

		var zero V
		newV := combine(zero, false)

		if slot := b1.firstEmptySlot(); slot >= 0 {
			b1.set(slot, hv.tag, key, newV)
			t.stripeAt(t.stripeIndexForBucket(i1)).incr()
			unlockAll(locked)
			t.reportSize()
			t.metrics.incInserts()
			return newV, true, nil
		}
		if slot := b2.firstEmptySlot(); slot >= 0 {
			b2.set(slot, hv.tag, key, newV)
			t.stripeAt(t.stripeIndexForBucket(i2)).incr()
			unlockAll(locked)
			t.reportSize()
			t.metrics.incInserts()
			return newV, true, nil
		}

		// Both candidate buckets are full: search for an eviction path
		// before giving up and growing the table. The search reads buckets
		// without holding any lock, so the path it finds must be replayed
		// and re-validated under lock before it's trusted.
		unlockAll(locked)
		path, found := t.searchCuckooPath(buckets, i1, i2)
		if !found {
			t.metrics.incBFSExhausted()
			if err := t.growForFullTable(hashpower); err != nil {
				var zeroV V
				return zeroV, false, err
			}
			continue
		}
		otherBucket := i2
		if path.buckets[0] == i2 {
			otherBucket = i1
		}
		if !t.cuckoopathMove(path, hashpower, key, hv, newV, otherBucket) {
			continue
		}
		t.reportSize()
		t.metrics.incInserts()
		return newV, true, nil
	}
}

// Insert adds key/value if key is not already present. It reports whether
// the insert happened; it never overwrites an existing entry. See Upsert to
// update-or-insert.
func (t *Table[K, V]) Insert(key K, value V) (bool, error) {
	_, inserted, err := t.insertOrUpsert(key, func(V, bool) V { return value }, false)
	return inserted, err
}

// Upsert inserts or updates key atomically with respect to other Table
// operations. fn is called with the current value and true if key was
// present, or the zero value and false if it was absent; its return value
// becomes the new stored value. Upsert returns the value that was stored.
func (t *Table[K, V]) Upsert(key K, fn func(old V, found bool) V) (V, error) {
	v, _, err := t.insertOrUpsert(key, fn, true)
	return v, err
}

// Clear removes every entry, keeping the table's current capacity.
func (t *Table[K, V]) Clear() {
	n := t.stripes.allocatedSize()
	for i := uint64(0); i < n; i++ {
		t.stripeAt(i).lock()
	}
	buckets := t.bucketsSnapshot()
	for i := range buckets {
		buckets[i].clear()
	}
	for i := uint64(0); i < n; i++ {
		s := t.stripeAt(i)
		s.count.Store(0)
		s.unlock()
	}
	t.reportSize()
}
