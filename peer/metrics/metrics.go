// Package metrics is the peer-side metrics collector described in spec
// §2/§5: it accumulates search durations and transfer byte
// counts/durations/throughputs, recorded concurrently by independent
// workers, and summarized under a brief exclusion. The buffered
// CSV-record-file design is grounded on the teacher's
// scheduler/storage/storage.go.
package metrics

import (
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// TransferRecord is one completed obtain/replicate transfer, in the
// shape gocsv marshals to/from a CSV row.
type TransferRecord struct {
	FileName    string    `csv:"file_name"`
	Operation   string    `csv:"operation"` // "obtain" or "replicate"
	Bytes       int64     `csv:"bytes"`
	DurationMS  int64     `csv:"duration_ms"`
	CompletedAt time.Time `csv:"completed_at"`
}

// Speed returns the transfer's throughput in bytes/second.
func (r TransferRecord) Speed() float64 {
	seconds := float64(r.DurationMS) / 1000.0
	if seconds <= 0 {
		return 0
	}
	return float64(r.Bytes) / seconds
}

// Collector accumulates search and transfer metrics for one peer
// process. Writes are safe for concurrent use by independent client
// workers; reads take a brief exclusion to produce a consistent
// snapshot, per spec §5. Registry carries the same counters/histograms
// in Prometheus exposition form, for the peer's read-only status
// endpoint, mirroring directory/metrics's private-registry pattern.
type Collector struct {
	Registry *prometheus.Registry

	searchesTotal    prometheus.Counter
	searchDuration   prometheus.Histogram
	transferBytes    prometheus.Counter
	transferDuration prometheus.Histogram

	searchCount atomic.Int64
	searchTotal atomic.Int64 // nanoseconds, summed

	mu      sync.RWMutex
	records []TransferRecord

	searchDurations []time.Duration // guarded by mu
}

// New returns an empty Collector with its own private Prometheus
// registry, so multiple Collectors in the same process (e.g. under
// test) never collide on the default global registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry: reg,
		searchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "p2p_peer",
			Name:      "searches_total",
			Help:      "Total number of search() calls issued by this peer.",
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "p2p_peer",
			Name:      "search_duration_seconds",
			Help:      "Client-observed round-trip time of a search() call.",
			Buckets:   prometheus.DefBuckets,
		}),
		transferBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "p2p_peer",
			Name:      "transfer_bytes_total",
			Help:      "Total bytes moved by completed obtain/replicate transfers.",
		}),
		transferDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "p2p_peer",
			Name:      "transfer_duration_seconds",
			Help:      "Duration of completed obtain/replicate transfers.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(c.searchesTotal, c.searchDuration, c.transferBytes, c.transferDuration)
	return c
}

// RecordSearch records one search() call's elapsed wall time.
func (c *Collector) RecordSearch(d time.Duration) {
	c.searchCount.Inc()
	c.searchTotal.Add(d.Nanoseconds())
	c.searchesTotal.Inc()
	c.searchDuration.Observe(d.Seconds())

	c.mu.Lock()
	c.searchDurations = append(c.searchDurations, d)
	c.mu.Unlock()
}

// RecordTransfer records one completed obtain/replicate transfer.
func (c *Collector) RecordTransfer(fileName, operation string, bytesWritten int64, d time.Duration) {
	c.transferBytes.Add(float64(bytesWritten))
	c.transferDuration.Observe(d.Seconds())

	c.mu.Lock()
	c.records = append(c.records, TransferRecord{
		FileName:    fileName,
		Operation:   operation,
		Bytes:       bytesWritten,
		DurationMS:  d.Milliseconds(),
		CompletedAt: time.Now(),
	})
	c.mu.Unlock()
}

// Snapshot is a point-in-time summary of accumulated metrics.
type Snapshot struct {
	SearchCount       int64
	MeanSearchLatency time.Duration
	P95SearchLatency  time.Duration

	TransferCount   int
	TotalBytes      int64
	MeanThroughput  float64 // bytes/second
	HumanThroughput string
}

// Snapshot takes a brief read-lock and returns a consistent summary,
// computing p95 search latency and mean throughput with
// montanaflynn/stats.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		SearchCount: c.searchCount.Load(),
	}
	if snap.SearchCount > 0 {
		snap.MeanSearchLatency = time.Duration(c.searchTotal.Load() / snap.SearchCount)
	}
	if len(c.searchDurations) > 0 {
		durs := make([]float64, len(c.searchDurations))
		for i, d := range c.searchDurations {
			durs[i] = float64(d)
		}
		if p95, err := stats.Percentile(durs, 95); err == nil {
			snap.P95SearchLatency = time.Duration(p95)
		}
	}

	var totalBytes int64
	var speeds []float64
	for _, r := range c.records {
		totalBytes += r.Bytes
		speeds = append(speeds, r.Speed())
	}
	snap.TransferCount = len(c.records)
	snap.TotalBytes = totalBytes
	if mean, err := stats.Mean(speeds); err == nil {
		snap.MeanThroughput = mean
	}
	snap.HumanThroughput = humanize.Bytes(uint64(snap.MeanThroughput)) + "/s"

	return snap
}

// ExportCSV writes every accumulated transfer record to path as
// headerless CSV rows, matching scheduler/storage/storage.go's
// create()/MarshalWithoutHeaders convention, so an external reporting
// harness (out of scope per spec §1) has something real to read.
func (c *Collector) ExportCSV(path string) error {
	c.mu.RLock()
	records := make([]TransferRecord, len(c.records))
	copy(records, c.records)
	c.mu.RUnlock()

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	return gocsv.MarshalWithoutHeaders(records, file)
}
