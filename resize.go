// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// growForFullTable is called when an insert's eviction search comes back
// empty. It acquires the table's expansion lock, checks that nobody else
// already grew the table out from under the caller's stale hashpower
// observation, validates the growth against the configured policy, and
// doubles the bucket array in place.
func (t *Table[K, V]) growForFullTable(observedHashpower uint32) error {
	t.expansionMu.Lock()
	defer t.expansionMu.Unlock()

	if t.hp.Load() != observedHashpower {
		// Someone else already grew the table while we were searching for
		// an eviction path; the caller's retry will see the new hashpower.
		return nil
	}

	newHashpower := observedHashpower + 1
	if max := t.maxHashpower.Load(); max != noMaximumHashpower && newHashpower > max {
		return newMaxHashpowerExceeded(newHashpower, max)
	}

	newCapacity := bucketCount(newHashpower) * slotsPerBucket
	if newCapacity > 0 {
		projected := float64(t.Size()) / float64(newCapacity)
		if projected < t.MinimumLoadFactor() {
			return ErrLoadFactorTooLow
		}
	}

	return t.doubleInPlace(newHashpower)
}

// doubleInPlace grows the table by exactly one hashpower bit. Because a
// key's primary and alternate bucket indices at the new hashpower always
// agree with its old index in every bit below the new one, every element
// currently in bucket b moves to either b or b+oldCount, never anywhere
// else. Each of the oldCount (source, destination) pairs is therefore
// independent, so the move runs across a worker pool with
// golang.org/x/sync/errgroup.
//
// The caller must hold expansionMu. doubleInPlace locks every currently
// allocated stripe for the duration of the move, trading resize latency
// (all point ops block for the whole resize) for not having to thread
// partial-unlock bookkeeping through the worker pool.
func (t *Table[K, V]) doubleInPlace(newHashpower uint32) error {
	oldHashpower := t.hp.Load()
	oldCount := bucketCount(oldHashpower)
	newCount := bucketCount(newHashpower)

	n := t.stripes.allocatedSize()
	locked := make([]*stripe, n)
	for i := uint64(0); i < n; i++ {
		locked[i] = t.stripeAt(i)
	}
	for _, s := range locked {
		s.lock()
	}
	defer func() {
		for _, s := range locked {
			s.unlock()
		}
	}()

	oldBuckets := t.bucketsSnapshot()
	newBuckets := make([]bucket[K, V], newCount)
	copy(newBuckets, oldBuckets)

	var g errgroup.Group
	for b := uint64(0); b < oldCount; b++ {
		b := b
		g.Go(func() error {
			ctx := context.Background()
			if err := t.workers.Acquire(ctx); err != nil {
				return err
			}
			defer t.workers.Release()

			low := &newBuckets[b]
			high := &newBuckets[b+oldCount]
			for i := 0; i < slotsPerBucket; i++ {
				if !low.isOccupied(i) {
					continue
				}
				k := low.keys[i]
				tag := low.tags[i]
				keyHash := t.hasher(k)
				oldPrimary := primaryIndex(keyHash, oldHashpower)
				newPrimary := primaryIndex(keyHash, newHashpower)

				var dest uint64
				if b == oldPrimary {
					dest = newPrimary
				} else {
					dest = altIndex(newPrimary, tag, newHashpower)
				}
				if dest == b {
					continue
				}
				j := high.firstEmptySlot()
				low.moveTo(i, high, j)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	newNumStripes := t.numStripesFor(newHashpower)
	t.stripes.allocate(newNumStripes)
	// Growing the hashpower can also grow the number of stripes, which
	// reassigns which stripe each bucket maps to: a low/high pair that
	// shared one stripe before the move may map to two different stripes
	// afterward. Recomputing every counter directly from the occupied
	// slots (instead of diffing counts as elements move) keeps this
	// correct regardless of how the stripe mapping shifts.
	t.recomputeStripeCounts(newBuckets, newNumStripes)
	t.buckets.Store(&newBuckets)
	t.hp.Store(newHashpower)
	t.metrics.incResize("double_in_place")
	if t.logger != nil {
		t.logger.Infof("cuckoo: doubled in place to hashpower %d (%d buckets)", newHashpower, newCount)
	}
	return nil
}

// recomputeStripeCounts rebuilds every stripe counter in t.stripes from the
// occupied slots in buckets, assuming bucket indices map to stripes under
// numStripes. The caller must already hold every stripe being written.
func (t *Table[K, V]) recomputeStripeCounts(buckets []bucket[K, V], numStripes uint64) {
	counts := make([]int64, numStripes)
	for bi := range buckets {
		si := stripeIndex(uint64(bi), numStripes)
		b := &buckets[bi]
		for i := 0; i < slotsPerBucket; i++ {
			if b.isOccupied(i) {
				counts[si]++
			}
		}
	}
	for i, c := range counts {
		t.stripeAt(uint64(i)).count.Store(c)
	}
}

// rebuildCopy replaces the table's contents with a freshly built table at
// newHashpower, inserting every existing element through the ordinary
// insert path; if the elements do not all fit at newHashpower, the fresh
// table grows and the table ends at that larger hashpower. It is strong-exception-safe: if an insert into the fresh
// table fails, the original table is left untouched. Used for explicit
// Rehash and Reserve calls, which may move to an arbitrary hashpower
// (including downward) that doubleInPlace's pairing trick cannot express.
// The caller must hold expansionMu.
func (t *Table[K, V]) rebuildCopy(newHashpower uint32) error {
	n := t.stripes.allocatedSize()
	locked := make([]*stripe, n)
	for i := uint64(0); i < n; i++ {
		locked[i] = t.stripeAt(i)
	}
	for _, s := range locked {
		s.lock()
	}
	defer func() {
		for _, s := range locked {
			s.unlock()
		}
	}()

	oldBuckets := t.bucketsSnapshot()
	fresh := New[K, V](t.hasher, t.equal,
		WithInitialCapacity(bucketCount(newHashpower)*slotsPerBucket),
		WithMinLoadFactor(t.MinimumLoadFactor()),
		WithMaxHashpower(t.maxHashpower.Load()),
		WithResizeWorkers(t.workers.Capacity()),
		withNumStripesBits(t.numStripesBits),
	)
	for bi := range oldBuckets {
		b := &oldBuckets[bi]
		for i := 0; i < slotsPerBucket; i++ {
			if !b.isOccupied(i) {
				continue
			}
			if _, err := fresh.Insert(b.keys[i], b.vals[i]); err != nil {
				return err
			}
		}
	}

	// The fresh table grows like any other if the elements do not all fit
	// at newHashpower; publish the hashpower its bucket array really has.
	newHashpower = fresh.Hashpower()
	newBuckets := fresh.bucketsSnapshot()
	newNumStripes := t.numStripesFor(newHashpower)
	t.stripes.allocate(newNumStripes)
	t.recomputeStripeCounts(newBuckets, newNumStripes)
	t.buckets.Store(&newBuckets)
	t.hp.Store(newHashpower)
	t.metrics.incResize("rebuild_copy")
	if t.logger != nil {
		t.logger.Infof("cuckoo: rebuilt table at hashpower %d", newHashpower)
	}
	return nil
}

// Rehash resizes the table to hold 2^newHashpower buckets, rebuilding from
// scratch; if the current elements do not all fit at that size, the table
// ends at the larger hashpower that holds them. It is a no-op if the table
// is already at newHashpower.
func (t *Table[K, V]) Rehash(newHashpower uint32) error {
	t.expansionMu.Lock()
	defer t.expansionMu.Unlock()
	if newHashpower == t.hp.Load() {
		return nil
	}
	if max := t.maxHashpower.Load(); max != noMaximumHashpower && newHashpower > max {
		return newMaxHashpowerExceeded(newHashpower, max)
	}
	return t.rebuildCopy(newHashpower)
}

// Reserve resizes the table so it can hold at least n elements without
// triggering an automatic resize, while never discarding any element
// currently stored: the target hashpower is the larger of what n requires
// and what the table's current size requires, so Reserve(0) shrinks the
// table down to the smallest hashpower that still fits its current
// contents, and a Reserve smaller than the current size only shrinks that
// far and no further.
func (t *Table[K, V]) Reserve(n uint64) error {
	t.expansionMu.Lock()
	defer t.expansionMu.Unlock()

	want := reserveHashpower(n)
	if needed := reserveHashpower(t.Size()); needed > want {
		want = needed
	}
	if want == t.hp.Load() {
		return nil
	}
	if max := t.maxHashpower.Load(); max != noMaximumHashpower && want > max {
		return newMaxHashpowerExceeded(want, max)
	}
	return t.rebuildCopy(want)
}
