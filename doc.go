// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package cuckoo implements a concurrent, resizable bucketized cuckoo hash
// table. Any number of goroutines may call Find, Insert, Erase, Update,
// UpdateFn and Upsert on the same Table concurrently; a LockedTable mode
// gives a single goroutine exclusive, iteration-capable access.
//
// The table places each key in one of two candidate buckets (its primary and
// alternate bucket), computed from the key's hash and an 8-bit tag. When both
// candidate buckets are full, the table searches for a short chain of
// evictions (a cuckoo path) that frees a slot, and grows the bucket array
// when no such chain exists. Concurrency is achieved by striping a fixed
// array of mutexes over the bucket array; point operations acquire at most
// two or three stripes at a time, and a table resize acquires all of them.
package cuckoo
