package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics
	NodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "almanac_nodes_total",
			Help: "Total number of MST node blobs in the backend",
		},
	)

	KeysTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "almanac_keys_total",
			Help: "Total number of keys reachable from the working ref",
		},
	)

	NodeBytesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "almanac_node_bytes_total",
			Help: "Estimated total compressed bytes across all stored node blobs, from size-bucket midpoints",
		},
	)

	WorkingCommittedDiverged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "almanac_working_committed_diverged",
			Help: "Whether working and committed point at different roots (1 = diverged, 0 = equal)",
		},
	)

	// Write metrics
	WritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_writes_total",
			Help: "Total number of record writes accepted",
		},
	)

	RemovesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_removes_total",
			Help: "Total number of record removals accepted",
		},
	)

	WriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "almanac_write_duration_seconds",
			Help:    "Time taken to upsert one key into the working tree",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Commit/abandon metrics
	CommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_commits_total",
			Help: "Total number of commits (working advanced to committed)",
		},
	)

	AbandonsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_abandons_total",
			Help: "Total number of abandons (working reset to committed)",
		},
	)

	IndexReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "almanac_index_replay_duration_seconds",
			Help:    "Time taken to replay a diff into the secondary index",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GC metrics
	GCRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_gc_runs_total",
			Help: "Total number of GC passes run",
		},
	)

	GCNodesDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_gc_nodes_deleted_total",
			Help: "Total number of unreachable node blobs deleted by GC",
		},
	)

	GCDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "almanac_gc_duration_seconds",
			Help:    "Time taken for a GC pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Sync metrics
	SyncPeersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "almanac_sync_peers_total",
			Help: "Total number of peers discovered via mDNS",
		},
	)

	SyncPullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "almanac_sync_pulls_total",
			Help: "Total number of pull attempts by outcome",
		},
		[]string{"outcome"},
	)

	SyncPullDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "almanac_sync_pull_duration_seconds",
			Help:    "Time taken for a full pull against a remote peer",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncNodesFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "almanac_sync_nodes_fetched_total",
			Help: "Total number of node blobs fetched from remote peers during pull",
		},
	)

	SyncServerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "almanac_sync_server_requests_total",
			Help: "Total number of sync requests served, by operation and status",
		},
		[]string{"op", "status"},
	)

	SyncServerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "almanac_sync_server_request_duration_seconds",
			Help:    "Sync request duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(KeysTotal)
	prometheus.MustRegister(NodeBytesTotal)
	prometheus.MustRegister(WorkingCommittedDiverged)

	prometheus.MustRegister(WritesTotal)
	prometheus.MustRegister(RemovesTotal)
	prometheus.MustRegister(WriteDuration)

	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(AbandonsTotal)
	prometheus.MustRegister(IndexReplayDuration)

	prometheus.MustRegister(GCRunsTotal)
	prometheus.MustRegister(GCNodesDeletedTotal)
	prometheus.MustRegister(GCDuration)

	prometheus.MustRegister(SyncPeersTotal)
	prometheus.MustRegister(SyncPullsTotal)
	prometheus.MustRegister(SyncPullDuration)
	prometheus.MustRegister(SyncNodesFetchedTotal)
	prometheus.MustRegister(SyncServerRequestsTotal)
	prometheus.MustRegister(SyncServerRequestDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time on a plain histogram.
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time on a histogram vector.
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labelValues ...string) {
	h.WithLabelValues(labelValues...).Observe(time.Since(t.start).Seconds())
}
