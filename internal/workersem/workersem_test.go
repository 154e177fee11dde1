// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package workersem

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2)
	var active, maxActive int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			if err := p.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer p.Release()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxActive > 2 {
		t.Fatalf("observed %d concurrent acquisitions, pool capacity was 2", maxActive)
	}
	if p.InUse() != 0 {
		t.Fatalf("InUse() = %d after all goroutines released, want 0", p.InUse())
	}
}

func TestPoolCapacityClampedToOne(t *testing.T) {
	p := New(0)
	if p.Capacity() != 1 {
		t.Fatalf("Capacity() = %d, want 1 for a requested capacity of 0", p.Capacity())
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := New(1)
	ctx := context.Background()
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer p.Release()

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := p.Acquire(cancelCtx); err == nil {
		t.Fatal("Acquire should fail once the context is cancelled while waiting")
	}
}
