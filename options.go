// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import "github.com/dagsnest/cuckootable/logger"

// defaultMinLoadFactor is the minimum load factor below which automatic
// growth is refused, absent WithMinLoadFactor.
const defaultMinLoadFactor = 0.05

// noMaximumHashpower is the sentinel maxHashpower value meaning unbounded
// growth.
const noMaximumHashpower = 0

// defaultNumStripesBits sizes the lock-striping array's virtual capacity at
// 2^16 stripes, absent a smaller value forced by withNumStripesBits.
const defaultNumStripesBits = 16

// defaultWorkerConcurrency bounds how many goroutines a resize may use to
// move buckets in parallel when the caller hasn't set WithResizeWorkers.
const defaultWorkerConcurrency = 8

type config struct {
	initialCapacity   uint64
	minLoadFactor     float64
	maxHashpower      uint32
	numStripesBits    uint
	workerConcurrency int64
	logger            logger.Logger
	metrics           *Metrics
}

func defaultConfig() config {
	return config{
		minLoadFactor:     defaultMinLoadFactor,
		maxHashpower:      noMaximumHashpower,
		numStripesBits:    defaultNumStripesBits,
		workerConcurrency: defaultWorkerConcurrency,
		logger:            nil,
	}
}

// Option configures a Table at construction time.
type Option func(*config)

// WithInitialCapacity reserves enough buckets up front to hold n elements
// without triggering an automatic resize.
func WithInitialCapacity(n uint64) Option {
	return func(c *config) { c.initialCapacity = n }
}

// WithMinLoadFactor sets the minimum load factor below which Insert refuses
// to grow the table automatically, returning ErrLoadFactorTooLow instead.
// f must be in [0, 1]; values outside that range are clamped.
func WithMinLoadFactor(f float64) Option {
	return func(c *config) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.minLoadFactor = f
	}
}

// WithMaxHashpower caps automatic growth at the given hashpower. Zero (the
// default) means unbounded.
func WithMaxHashpower(p uint32) Option {
	return func(c *config) { c.maxHashpower = p }
}

// WithLogger attaches a logger that records each completed resize.
// Without this option the table logs nothing.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics attaches a Metrics collector. See metrics.go.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithResizeWorkers bounds the number of goroutines a single resize may use
// to move buckets concurrently.
func WithResizeWorkers(n int64) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.workerConcurrency = n
	}
}

// withNumStripesBits is unexported: it exists so tests can force a small
// stripe array and exercise striping collisions without allocating 2^16
// stripes.
func withNumStripesBits(bits uint) Option {
	return func(c *config) { c.numStripesBits = bits }
}
