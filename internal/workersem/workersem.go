// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package workersem bounds how many resize workers may move buckets at the
// same time. Workers beyond the bound still exist as goroutines; they block
// in Acquire until a slot is free.
package workersem

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool is a wrapper around a weighted semaphore that tracks the number of
// resize-worker slots currently in use.
type Pool struct {
	sem       *semaphore.Weighted
	capacity  int64
	inUse     int64
	mu        sync.Mutex
}

// New initializes a worker pool with the given number of slots.
func New(capacity int64) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
	}
}

// Acquire blocks until a worker slot is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.mu.Lock()
	p.inUse++
	p.mu.Unlock()
	return nil
}

// Release returns a worker slot to the pool.
func (p *Pool) Release() {
	p.mu.Lock()
	p.inUse--
	p.mu.Unlock()
	p.sem.Release(1)
}

// InUse returns the number of worker slots currently checked out.
func (p *Pool) InUse() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Capacity returns the total number of worker slots in the pool.
func (p *Pool) Capacity() int64 {
	return p.capacity
}
