// Copyright (c) 2024 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cuckoo

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional set of Prometheus collectors a Table reports to.
// Construct one with NewMetrics, register it with a prometheus.Registerer,
// and pass it to New via WithMetrics. A nil *Metrics is safe to use: every
// method is a no-op, so instrumentation stays opt-in, following the pattern
// of wiring hand-built collectors into a caller-supplied registry rather
// than using the default global one.
type Metrics struct {
	size          prometheus.Gauge
	loadFactor    prometheus.Gauge
	hashpower     prometheus.Gauge
	inserts       prometheus.Counter
	erases        prometheus.Counter
	resizes       *prometheus.CounterVec
	bfsExhausted  prometheus.Counter
}

// NewMetrics constructs a Metrics set with the given namespace, for the
// caller to register with a prometheus.Registerer.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_size",
			Help:      "Approximate number of elements currently stored in the table.",
		}),
		loadFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_load_factor",
			Help:      "Approximate fraction of slots currently occupied.",
		}),
		hashpower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_hashpower",
			Help:      "Current hashpower (log2 of the bucket count).",
		}),
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_inserts_total",
			Help:      "Number of new entries added by Insert/Upsert calls.",
		}),
		erases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_erases_total",
			Help:      "Number of successful Erase calls.",
		}),
		resizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_resizes_total",
			Help:      "Number of completed resizes, by strategy.",
		}, []string{"strategy"}),
		bfsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cuckoo_table_bfs_path_exhausted_total",
			Help:      "Number of inserts that exhausted the eviction search and forced a resize.",
		}),
	}
}

// Collectors returns every collector in the set, for bulk registration:
// for _, c := range m.Collectors() { registerer.MustRegister(c) }
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.size, m.loadFactor, m.hashpower, m.inserts, m.erases, m.resizes, m.bfsExhausted,
	}
}

func (m *Metrics) observeSize(size uint64, load float64, hashpower uint32) {
	if m == nil {
		return
	}
	m.size.Set(float64(size))
	m.loadFactor.Set(load)
	m.hashpower.Set(float64(hashpower))
}

func (m *Metrics) incInserts() {
	if m == nil {
		return
	}
	m.inserts.Inc()
}

func (m *Metrics) incErases() {
	if m == nil {
		return
	}
	m.erases.Inc()
}

func (m *Metrics) incResize(strategy string) {
	if m == nil {
		return
	}
	m.resizes.WithLabelValues(strategy).Inc()
}

func (m *Metrics) incBFSExhausted() {
	if m == nil {
		return
	}
	m.bfsExhausted.Inc()
}
