// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key is absent. Find, Erase, Update
// and UpdateFn report a missing key as a false result instead.
var ErrNotFound = errors.New("cuckoo: key not found")

// ErrInvalidArgument is returned when a policy setter is given a value
// outside its documented domain (e.g. a minimum load factor outside [0,1]).
var ErrInvalidArgument = errors.New("cuckoo: invalid argument")

// ErrLoadFactorTooLow is returned by Insert/Upsert when the table is full,
// automatic growth is needed, and the resulting load factor would fall below
// the configured minimum load factor.
var ErrLoadFactorTooLow = errors.New("cuckoo: load factor too low to grow automatically")

// ErrMaxHashpowerExceeded is returned when a grow operation would need to
// raise the hashpower beyond the configured maximum.
var ErrMaxHashpowerExceeded = errors.New("cuckoo: maximum hashpower exceeded")

// ErrTableInvalidated is returned by LockedTable iterator operations once
// the parent LockedTable has been released.
var ErrTableInvalidated = errors.New("cuckoo: locked table has been released")

// ErrTableFull is returned by LockedTable.Insert when both candidate
// buckets and every bucket reachable by eviction are full. A LockedTable
// cannot trigger a resize itself, since that would require re-acquiring
// locks it already holds; callers should Unlock, call Reserve or Rehash on
// the underlying Table, then lock again.
var ErrTableFull = errors.New("cuckoo: table full, cannot grow while locked")

// hashpowerChangedError is an internal error value naming a hashpower change
// observed mid-operation. No code path returns it: snapshotAndLock retries in
// place and cuckoopathMove reports false when it sees the hashpower change.
type hashpowerChangedError struct{}

func (hashpowerChangedError) Error() string { return "cuckoo: hashpower changed during operation" }

var errHashpowerChanged = hashpowerChangedError{}

// maxHashpowerExceededError carries the attempted hashpower for a clearer
// message than the bare sentinel.
type maxHashpowerExceededError struct {
	attempted, max uint32
}

func (e *maxHashpowerExceededError) Error() string {
	return fmt.Sprintf("cuckoo: hashpower %d exceeds configured maximum %d", e.attempted, e.max)
}

func (e *maxHashpowerExceededError) Unwrap() error { return ErrMaxHashpowerExceeded }

func newMaxHashpowerExceeded(attempted, max uint32) error {
	return &maxHashpowerExceededError{attempted: attempted, max: max}
}
