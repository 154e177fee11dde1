// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import "testing"

func TestRehashGrowsAndPreservesContents(t *testing.T) {
	tbl := newIntTable(WithInitialCapacity(slotsPerBucket))
	for i := 0; i < 100; i++ {
		if _, err := tbl.Insert(i, i*2); err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
	}
	if err := tbl.Rehash(10); err != nil {
		t.Fatalf("Rehash(10) failed: %v", err)
	}
	if tbl.Hashpower() != 10 {
		t.Fatalf("Hashpower() = %d, want 10", tbl.Hashpower())
	}
	for i := 0; i < 100; i++ {
		if v, ok := tbl.Find(i); !ok || v != i*2 {
			t.Fatalf("Find(%d) = (%d, %v), want (%d, true) after Rehash", i, v, ok, i*2)
		}
	}
}

func TestRehashIsNoopAtSameHashpower(t *testing.T) {
	tbl := newIntTable()
	hp := tbl.Hashpower()
	if err := tbl.Rehash(hp); err != nil {
		t.Fatalf("Rehash(current hashpower) failed: %v", err)
	}
	if tbl.Hashpower() != hp {
		t.Fatalf("Hashpower() changed from a no-op Rehash: %d != %d", tbl.Hashpower(), hp)
	}
}

func TestReserveShrinksEmptyTableButNotBelowCurrentSize(t *testing.T) {
	tbl := newIntTable(WithInitialCapacity(10000))
	capBefore := tbl.Capacity()
	if err := tbl.Reserve(4); err != nil {
		t.Fatalf("Reserve(4) failed: %v", err)
	}
	if tbl.Capacity() >= capBefore {
		t.Fatalf("Reserve(4) on an empty table should shrink capacity below %d, got %d", capBefore, tbl.Capacity())
	}

	for i := 0; i < 500; i++ {
		if _, err := tbl.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
	}
	if err := tbl.Reserve(1); err != nil {
		t.Fatalf("Reserve(1) failed: %v", err)
	}
	if tbl.Capacity() < 500 {
		t.Fatalf("Reserve(1) should not shrink below what the table's 500 elements need, got capacity %d", tbl.Capacity())
	}
	for i := 0; i < 500; i++ {
		if v, ok := tbl.Find(i); !ok || v != i {
			t.Fatalf("Find(%d) = (%d, %v), want (%d, true) after Reserve shrink", i, v, ok, i)
		}
	}

	if err := tbl.Reserve(100000); err != nil {
		t.Fatalf("Reserve(100000) failed: %v", err)
	}
	if tbl.Capacity() < 100000 {
		t.Fatalf("Capacity() = %d, want at least 100000", tbl.Capacity())
	}
}

func TestDoubleInPlacePreservesAllKeys(t *testing.T) {
	tbl := newIntTable(WithInitialCapacity(slotsPerBucket * 4))
	n := 1000
	for i := 0; i < n; i++ {
		if _, err := tbl.Insert(i, -i); err != nil {
			t.Fatalf("Insert(%d) failed: %v", i, err)
		}
	}
	hpBefore := tbl.Hashpower()
	if err := tbl.growForFullTable(hpBefore); err != nil {
		t.Fatalf("growForFullTable failed: %v", err)
	}
	if tbl.Hashpower() != hpBefore+1 {
		t.Fatalf("Hashpower() = %d, want %d", tbl.Hashpower(), hpBefore+1)
	}
	for i := 0; i < n; i++ {
		if v, ok := tbl.Find(i); !ok || v != -i {
			t.Fatalf("Find(%d) = (%d, %v), want (%d, true) after doubling", i, v, ok, -i)
		}
	}
}
