package sidx

import (
	"github.com/prometheus/client_golang/prometheus"
)

var WriteCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sidx",
	Subsystem: "table",
	Name:      "writes",
	Help:      "Put and Delete calls by result.",
}, []string{"table", "op", "result"})

var QueryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sidx",
	Subsystem: "index",
	Name:      "queries",
	Help:      "Index lookups.",
}, []string{"table", "index"})

var QueryResultSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sidx",
	Subsystem: "index",
	Name:      "query_result_size",
	Help:      "Records returned per lookup.",
	Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000},
}, []string{"table", "index"})

var StaleEntryCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sidx",
	Subsystem: "index",
	Name:      "stale_entries",
	Help:      "Index entries whose record was missing at fetch time.",
}, []string{"table", "index"})

var ReindexDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sidx",
	Subsystem: "index",
	Name:      "reindex_duration",
	Help:      "Seconds spent rebuilding an index.",
	Buckets:   []float64{0, 0.001, 0.01, 0.1, 1, 5, 10, 60, 300},
}, []string{"table", "index"})

// Collectors returns all metrics of this package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		WriteCount,
		QueryCount,
		QueryResultSize,
		StaleEntryCount,
		ReindexDuration,
	}
}

const (
	resultOK    = "ok"
	resultNoop  = "noop"
	resultError = "error"
)

func writeResult(err error, noop bool) string {
	switch {
	case err != nil:
		return resultError
	case noop:
		return resultNoop
	default:
		return resultOK
	}
}
