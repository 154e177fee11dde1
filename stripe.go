// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"sync"
	"sync/atomic"
)

// cacheLinePad is sized so that a stripe occupies its own cache line and two
// adjacent stripes in the lazy array's segment slice never false-share.
const cacheLinePad = 64 - 16 // sync.Mutex (8 bytes) + atomic.Int64 (8 bytes)

// stripe is one element of the lock-striping array: a mutex protecting every
// bucket whose index maps to this stripe, plus a local element count.
// Callers mutate count only while the stripe is held, but Size()/
// LoadFactor() sum every stripe's count without locking any of them, so
// count is an atomic.Int64 rather than a plain int64: the sum is
// approximate and monotonically converges to the true size once operations
// quiesce, and the race detector sees no data race.
type stripe struct {
	mu    sync.Mutex
	count atomic.Int64
	_     [cacheLinePad]byte
}

func (s *stripe) lock()         { s.mu.Lock() }
func (s *stripe) unlock()       { s.mu.Unlock() }
func (s *stripe) tryLock() bool { return s.mu.TryLock() }

// incr/decr must only be called while the stripe is held.
func (s *stripe) incr() { s.count.Add(1) }
func (s *stripe) decr() { s.count.Add(-1) }

// stripeIndex maps a bucket index to a stripe index: stripe(b) = b mod L.
// numStripes is always a power of two, so the mod reduces to a mask.
func stripeIndex(bucketIdx uint64, numStripes uint64) uint64 {
	return bucketIdx & (numStripes - 1)
}
