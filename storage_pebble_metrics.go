package sidx

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

type pebbleCollector struct {
	pdb *pebble.DB

	compactions    *prometheus.Desc
	compactionDebt *prometheus.Desc
	memtableSize   *prometheus.Desc
	memtableCount  *prometheus.Desc
	walFiles       *prometheus.Desc
	walSize        *prometheus.Desc
}

// NewPebbleCollector exports engine metrics of a Storage opened with
// OpenPebble or NewPebbleStorage. Returns nil for other backends.
func NewPebbleCollector(st Storage) prometheus.Collector {
	s, ok := st.(*pebbleStorage)
	if !ok {
		return nil
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("sidx", "pebble", name), help, nil, nil)
	}
	return &pebbleCollector{
		pdb:            s.pdb,
		compactions:    desc("compactions_total", "Compactions performed."),
		compactionDebt: desc("compaction_debt_bytes", "Estimated bytes to compact to reach a stable state."),
		memtableSize:   desc("memtable_size_bytes", "Current memtable size."),
		memtableCount:  desc("memtables", "Current memtable count."),
		walFiles:       desc("wal_files", "Live WAL files."),
		walSize:        desc("wal_size_bytes", "Live WAL data size."),
	}
}

func (pc *pebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.compactions
	ch <- pc.compactionDebt
	ch <- pc.memtableSize
	ch <- pc.memtableCount
	ch <- pc.walFiles
	ch <- pc.walSize
}

func (pc *pebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m := pc.pdb.Metrics()
	ch <- prometheus.MustNewConstMetric(pc.compactions, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(pc.compactionDebt, prometheus.GaugeValue, float64(m.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(pc.memtableSize, prometheus.GaugeValue, float64(m.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(pc.memtableCount, prometheus.GaugeValue, float64(m.MemTable.Count))
	ch <- prometheus.MustNewConstMetric(pc.walFiles, prometheus.GaugeValue, float64(m.WAL.Files))
	ch <- prometheus.MustNewConstMetric(pc.walSize, prometheus.GaugeValue, float64(m.WAL.Size))
}
