/*
Package metrics provides Prometheus metrics collection and exposition for
almanac.

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│  Store gauges   ── node/key counts, divergence           │
	│  Write/commit   ── counters + duration histograms        │
	│  GC             ── run count, nodes deleted, duration    │
	│  Sync           ── peers, pull outcomes, server requests  │
	│                     │                                     │
	│  Collector polls StatsSource on an interval, republishes  │
	│  as gauges — the rest are updated inline by their callers │
	│                     │                                     │
	│  promhttp.Handler() on /metrics; HealthHandler/ReadyHandler│
	│  /LivenessHandler for liveness probes                     │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

almanac_nodes_total, almanac_keys_total, almanac_node_bytes_total,
almanac_working_committed_diverged: Gauges, refreshed by Collector from
a StatsSource (pkg/store's *Store).

almanac_writes_total, almanac_removes_total, almanac_write_duration_seconds:
updated inline by pkg/store on each write/remove.

almanac_commits_total, almanac_abandons_total: updated inline by
pkg/store on commit/abandon.

almanac_index_replay_duration_seconds: observed by pkg/record around the
index replay that abandon and pull trigger.

almanac_gc_runs_total, almanac_gc_nodes_deleted_total,
almanac_gc_duration_seconds: updated inline by pkg/store's GC.

almanac_sync_peers_total, almanac_sync_pulls_total{outcome},
almanac_sync_pull_duration_seconds, almanac_sync_nodes_fetched_total,
almanac_sync_server_requests_total{op,status},
almanac_sync_server_request_duration_seconds{op}: updated inline by
pkg/syncproto's client and server.

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.WriteDuration)

	metrics.SyncPullsTotal.WithLabelValues("ok").Inc()

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
*/
package metrics
