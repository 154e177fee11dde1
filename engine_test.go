// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestInsertFindErase(t *testing.T) {
	tbl := newIntTable()
	ok, err := tbl.Insert(1, 100)
	if err != nil || !ok {
		t.Fatalf("Insert(1, 100) = (%v, %v), want (true, nil)", ok, err)
	}
	if v, ok := tbl.Find(1); !ok || v != 100 {
		t.Fatalf("Find(1) = (%d, %v), want (100, true)", v, ok)
	}
	if !tbl.Contains(1) {
		t.Fatal("Contains(1) should be true")
	}
	if !tbl.Erase(1) {
		t.Fatal("Erase(1) should report true")
	}
	if tbl.Contains(1) {
		t.Fatal("Contains(1) should be false after erase")
	}
	if tbl.Erase(1) {
		t.Fatal("Erase(1) on an already-erased key should report false")
	}
}

func TestInsertDuplicateDoesNotOverwrite(t *testing.T) {
	tbl := newIntTable()
	if _, err := tbl.Insert(5, 1); err != nil {
		t.Fatal(err)
	}
	ok, err := tbl.Insert(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("second Insert of the same key should report false")
	}
	if v, _ := tbl.Find(5); v != 1 {
		t.Fatalf("Find(5) = %d, want 1 (unchanged by duplicate insert)", v)
	}
}

func TestGetReturnsErrNotFoundOnMiss(t *testing.T) {
	tbl := newIntTable()
	if _, err := tbl.Get(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on an absent key = %v, want ErrNotFound", err)
	}
	tbl.Insert(1, 42)
	v, err := tbl.Get(1)
	if err != nil || v != 42 {
		t.Fatalf("Get(1) = (%d, %v), want (42, nil)", v, err)
	}
}

func TestUpdateAndUpdateFn(t *testing.T) {
	tbl := newIntTable()
	if tbl.Update(1, 10) {
		t.Fatal("Update on an absent key should report false")
	}
	tbl.Insert(1, 10)
	if !tbl.Update(1, 20) {
		t.Fatal("Update on a present key should report true")
	}
	if v, _ := tbl.Find(1); v != 20 {
		t.Fatalf("Find(1) = %d, want 20", v)
	}
	if !tbl.UpdateFn(1, func(v *int) { *v += 5 }) {
		t.Fatal("UpdateFn on a present key should report true")
	}
	if v, _ := tbl.Find(1); v != 25 {
		t.Fatalf("Find(1) = %d, want 25", v)
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	tbl := newIntTable()
	v, err := tbl.Upsert(1, func(old int, found bool) int {
		if found {
			t.Fatal("key should not be found on first upsert")
		}
		return 1
	})
	if err != nil || v != 1 {
		t.Fatalf("first Upsert = (%d, %v), want (1, nil)", v, err)
	}
	v, err = tbl.Upsert(1, func(old int, found bool) int {
		if !found {
			t.Fatal("key should be found on second upsert")
		}
		return old + 1
	})
	if err != nil || v != 2 {
		t.Fatalf("second Upsert = (%d, %v), want (2, nil)", v, err)
	}
}

func TestUpsertCountingWorkload(t *testing.T) {
	tbl := New[string, int](fnv64, func(a, b string) bool { return a == b })
	words := []string{"a", "b", "a", "c", "b", "a"}
	for _, w := range words {
		tbl.Upsert(w, func(old int, found bool) int { return old + 1 })
	}
	want := map[string]int{"a": 3, "b": 2, "c": 1}
	for w, n := range want {
		v, ok := tbl.Find(w)
		if !ok || v != n {
			t.Errorf("Find(%q) = (%d, %v), want (%d, true)", w, v, ok, n)
		}
	}
}

func TestForcedResizeCascade(t *testing.T) {
	tbl := newIntTable(WithInitialCapacity(slotsPerBucket))
	n := 5000
	for i := 0; i < n; i++ {
		if _, err := tbl.Insert(i, i*i); err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
	}
	if tbl.Size() != uint64(n) {
		t.Fatalf("Size() = %d, want %d", tbl.Size(), n)
	}
	for i := 0; i < n; i++ {
		v, ok := tbl.Find(i)
		if !ok || v != i*i {
			t.Fatalf("Find(%d) = (%d, %v), want (%d, true)", i, v, ok, i*i)
		}
	}
	if tbl.Hashpower() <= 1 {
		t.Fatal("table should have grown beyond its initial hashpower")
	}
}

func TestConcurrentInsertFindErase(t *testing.T) {
	tbl := newIntTable(WithInitialCapacity(slotsPerBucket))
	const workers = 16
	const perWorker = 2000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := base*perWorker + i
				if _, err := tbl.Insert(key, key); err != nil {
					t.Errorf("Insert(%d) failed: %v", key, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if got, want := tbl.Size(), uint64(workers*perWorker); got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}

	wg = sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := base*perWorker + i
				if v, ok := tbl.Find(key); !ok || v != key {
					t.Errorf("Find(%d) = (%d, %v), want (%d, true)", key, v, ok, key)
				}
			}
		}(w)
	}
	wg.Wait()

	wg = sync.WaitGroup{}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := base*perWorker + i
				if !tbl.Erase(key) {
					t.Errorf("Erase(%d) reported false", key)
				}
			}
		}(w)
	}
	wg.Wait()

	if tbl.Size() != 0 {
		t.Fatalf("Size() = %d after erasing everything, want 0", tbl.Size())
	}
}

func TestClearResetsSizeButKeepsCapacity(t *testing.T) {
	tbl := newIntTable()
	for i := 0; i < 50; i++ {
		tbl.Insert(i, i)
	}
	capBefore := tbl.Capacity()
	tbl.Clear()
	if tbl.Size() != 0 {
		t.Fatalf("Size() = %d after Clear, want 0", tbl.Size())
	}
	if tbl.Capacity() != capBefore {
		t.Fatalf("Capacity() changed across Clear: before=%d after=%d", capBefore, tbl.Capacity())
	}
	if _, ok := tbl.Find(0); ok {
		t.Fatal("Find should fail for any key after Clear")
	}
}

func TestInsertRespectsMaxHashpower(t *testing.T) {
	tbl := newIntTable(WithInitialCapacity(slotsPerBucket), WithMaxHashpower(1))
	inserted := 0
	var lastErr error
	for i := 0; i < 10000; i++ {
		ok, err := tbl.Insert(i, i)
		if err != nil {
			lastErr = err
			break
		}
		if ok {
			inserted++
		}
	}
	if lastErr == nil {
		t.Fatal("expected Insert to eventually fail once the table can't grow past its max hashpower")
	}
	var target *maxHashpowerExceededError
	if !asMaxHashpowerExceeded(lastErr, &target) {
		t.Fatalf("expected a max-hashpower error, got %v", lastErr)
	}
}

// asMaxHashpowerExceeded reports whether err is itself a
// *maxHashpowerExceededError, by plain type assertion (no unwrapping).
func asMaxHashpowerExceeded(err error, target **maxHashpowerExceededError) bool {
	e, ok := err.(*maxHashpowerExceededError)
	if ok {
		*target = e
	}
	return ok
}

func TestStringKeys(t *testing.T) {
	tbl := New[string, int](fnv64, func(a, b string) bool { return a == b })
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("key-%d", i)
		if _, err := tbl.Insert(k, i); err != nil {
			t.Fatalf("Insert(%q) failed: %v", k, err)
		}
	}
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("key-%d", i)
		if v, ok := tbl.Find(k); !ok || v != i {
			t.Fatalf("Find(%q) = (%d, %v), want (%d, true)", k, v, ok, i)
		}
	}
}
