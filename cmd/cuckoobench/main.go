// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Command cuckoobench drives a mixed read/write workload against a
// cuckoo.Table and reports throughput, to sanity-check resize behavior
// under concurrent load.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dagsnest/cuckootable"
	"github.com/dagsnest/cuckootable/glog"
)

func main() {
	var (
		goroutines     = flag.Int("goroutines", runtime.GOMAXPROCS(0), "number of concurrent workers")
		opsPerWorker   = flag.Int("ops", 200000, "operations per worker")
		keySpace       = flag.Int("keyspace", 1 << 20, "number of distinct keys cycled through")
		initialCap     = flag.Uint64("initial-capacity", 1024, "initial table capacity")
		insertFraction = flag.Float64("insert-fraction", 0.2, "fraction of ops that are inserts")
		eraseFraction  = flag.Float64("erase-fraction", 0.1, "fraction of ops that are erases")
	)
	flag.Parse()

	table := cuckoo.New[int, int64](
		func(k int) uint64 { return uint64(k) * 0x9e3779b97f4a7c15 },
		func(a, b int) bool { return a == b },
		cuckoo.WithInitialCapacity(*initialCap),
		cuckoo.WithLogger(&glog.Glog{}),
	)

	var inserts, erases, finds, hits int64
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < *goroutines; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < *opsPerWorker; i++ {
				key := rng.Intn(*keySpace)
				roll := rng.Float64()
				switch {
				case roll < *insertFraction:
					if _, err := table.Insert(key, int64(i)); err == nil {
						atomic.AddInt64(&inserts, 1)
					}
				case roll < *insertFraction+*eraseFraction:
					if table.Erase(key) {
						atomic.AddInt64(&erases, 1)
					}
				default:
					atomic.AddInt64(&finds, 1)
					if _, ok := table.Find(key); ok {
						atomic.AddInt64(&hits, 1)
					}
				}
			}
		}(int64(w) + 1)
	}
	wg.Wait()
	elapsed := time.Since(start)

	totalOps := *goroutines * *opsPerWorker
	fmt.Fprintf(os.Stdout, "workers=%d ops=%d elapsed=%s ops/sec=%.0f\n",
		*goroutines, totalOps, elapsed, float64(totalOps)/elapsed.Seconds())
	fmt.Fprintf(os.Stdout, "inserts=%d erases=%d finds=%d hits=%d\n", inserts, erases, finds, hits)
	fmt.Fprintf(os.Stdout, "final size=%d hashpower=%d load_factor=%.4f\n",
		table.Size(), table.Hashpower(), table.LoadFactor())
}
