package metrics

import (
	"context"
	"time"
)

// StoreStats is the subset of store.Stats the collector needs. Defined
// here (rather than importing pkg/store) to keep this package
// dependency-free of the store layer; pkg/store's (*Store).Stats builds
// one from its own snapshot.
type StoreStats struct {
	NodeCount     int
	NodeBytes     int64
	KeyCount      int
	WorkingHash   string
	CommittedHash string
}

// StatsSource produces a current StoreStats snapshot, satisfied by
// *store.Store.
type StatsSource interface {
	Stats(ctx context.Context) (StoreStats, error)
}

// Collector polls a StatsSource on an interval and republishes it as
// gauges, the same periodic-sampling pattern as the teacher's cluster
// collector.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a metrics collector over source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every interval, collecting once
// immediately.
func (c *Collector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats, err := c.source.Stats(context.Background())
	if err != nil {
		return
	}

	NodesTotal.Set(float64(stats.NodeCount))
	NodeBytesTotal.Set(float64(stats.NodeBytes))
	KeysTotal.Set(float64(stats.KeyCount))

	diverged := 0.0
	if stats.WorkingHash != stats.CommittedHash {
		diverged = 1.0
	}
	WorkingCommittedDiverged.Set(diverged)
}
