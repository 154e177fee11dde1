// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/dagsnest/cuckootable/internal/workersem"
	"github.com/dagsnest/cuckootable/logger"
)

// Table is a concurrent map from K to V backed by a bucketized cuckoo hash
// table. The zero value is not usable; construct one with New.
//
// Every exported method is safe for concurrent use by multiple goroutines.
// A Table grows automatically as it fills; see WithMaxHashpower and
// WithMinLoadFactor to bound that growth.
type Table[K comparable, V any] struct {
	hasher func(K) uint64
	equal  func(K, K) bool

	hp      atomic.Uint32
	buckets atomic.Pointer[[]bucket[K, V]]
	stripes *lazyArray[stripe]

	numStripesBits uint
	minLoadFactor  atomic.Uint64 // math.Float64bits
	maxHashpower   atomic.Uint32 // 0 == unbounded

	// expansionMu is the table's single expansion lock: only one resize may
	// be in flight at a time.
	expansionMu sync.Mutex

	workers *workersem.Pool
	logger  logger.Logger
	metrics *Metrics
}

// New constructs a Table using hasher to hash keys and equal to compare them
// for equality. hasher must be deterministic and equal must be a proper
// equivalence relation consistent with hasher: equal(a, b) implies
// hasher(a) == hasher(b).
func New[K comparable, V any](hasher func(K) uint64, equal func(K, K) bool, opts ...Option) *Table[K, V] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	hp := reserveHashpower(cfg.initialCapacity)
	if cfg.maxHashpower != noMaximumHashpower && hp > cfg.maxHashpower {
		hp = cfg.maxHashpower
	}

	t := &Table[K, V]{
		hasher:         hasher,
		equal:          equal,
		numStripesBits: cfg.numStripesBits,
		workers:        workersem.New(cfg.workerConcurrency),
		logger:         cfg.logger,
		metrics:        cfg.metrics,
	}
	t.hp.Store(hp)
	buckets := make([]bucket[K, V], bucketCount(hp))
	t.buckets.Store(&buckets)
	t.minLoadFactor.Store(math.Float64bits(cfg.minLoadFactor))
	t.maxHashpower.Store(cfg.maxHashpower)

	t.stripes = newLazyArray[stripe](cfg.numStripesBits)
	t.stripes.allocate(t.numStripesFor(hp))

	return t
}

// numStripesFor returns how many stripes are needed to cover a table at the
// given hashpower: every bucket gets its own stripe until the stripe array's
// configured virtual capacity is exhausted, after which stripes are shared.
func (t *Table[K, V]) numStripesFor(hashpower uint32) uint64 {
	n := bucketCount(hashpower)
	max := uint64(1) << t.numStripesBits
	if n < max {
		return n
	}
	return max
}

func (t *Table[K, V]) numStripes() uint64 {
	return t.numStripesFor(t.hp.Load())
}

func (t *Table[K, V]) stripeAt(idx uint64) *stripe {
	return t.stripes.at(idx)
}

func (t *Table[K, V]) stripeIndexForBucket(b uint64) uint64 {
	return stripeIndex(b, t.numStripes())
}

func (t *Table[K, V]) bucketsSnapshot() []bucket[K, V] {
	return *t.buckets.Load()
}

// Hashpower reports the table's current hashpower; the bucket array holds
// 2^Hashpower() buckets.
func (t *Table[K, V]) Hashpower() uint32 { return t.hp.Load() }

// BucketCount reports the table's current number of buckets.
func (t *Table[K, V]) BucketCount() uint64 { return bucketCount(t.hp.Load()) }

// Capacity reports the number of elements the table can hold at its current
// hashpower before it must grow.
func (t *Table[K, V]) Capacity() uint64 { return t.BucketCount() * slotsPerBucket }

// Size returns the approximate number of elements in the table. It sums
// per-stripe counters without locking any of them, so a concurrent
// Insert/Erase may or may not be reflected; the value converges to exact
// once the table is quiescent.
func (t *Table[K, V]) Size() uint64 {
	n := t.stripes.allocatedSize()
	var total int64
	for i := uint64(0); i < n; i++ {
		total += t.stripeAt(i).count.Load()
	}
	if total < 0 {
		return 0
	}
	return uint64(total)
}

// Empty reports whether Size() == 0.
func (t *Table[K, V]) Empty() bool { return t.Size() == 0 }

// LoadFactor returns Size() / Capacity().
func (t *Table[K, V]) LoadFactor() float64 {
	cap := t.Capacity()
	if cap == 0 {
		return 0
	}
	return float64(t.Size()) / float64(cap)
}

// MinimumLoadFactor returns the load factor below which automatic growth is
// refused.
func (t *Table[K, V]) MinimumLoadFactor() float64 {
	return math.Float64frombits(t.minLoadFactor.Load())
}

// SetMinimumLoadFactor updates the minimum load factor. f must be in [0,1].
func (t *Table[K, V]) SetMinimumLoadFactor(f float64) error {
	if f < 0 || f > 1 {
		return ErrInvalidArgument
	}
	t.minLoadFactor.Store(math.Float64bits(f))
	return nil
}

// MaximumHashpower returns the configured upper bound on hashpower, or 0 if
// unbounded.
func (t *Table[K, V]) MaximumHashpower() uint32 { return t.maxHashpower.Load() }

// SetMaximumHashpower updates the upper bound on hashpower. 0 means
// unbounded. It does not affect a hashpower the table has already reached.
func (t *Table[K, V]) SetMaximumHashpower(p uint32) {
	t.maxHashpower.Store(p)
}

// HashFunction returns the hash function the table was constructed with.
func (t *Table[K, V]) HashFunction() func(K) uint64 { return t.hasher }

// KeyEq returns the equality function the table was constructed with.
func (t *Table[K, V]) KeyEq() func(K, K) bool { return t.equal }

func (t *Table[K, V]) reportSize() {
	if t.metrics == nil {
		return
	}
	t.metrics.observeSize(t.Size(), t.LoadFactor(), t.Hashpower())
}
