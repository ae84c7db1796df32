package obs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from index build/insert/
// search paths. Implement this to integrate with an external monitoring
// system; NoopMetricsCollector is the default when none is configured.
type MetricsCollector interface {
	RecordInsert(duration time.Duration, err error)
	RecordBuild(tuples int64, duration time.Duration, err error)
	RecordSearch(k int, duration time.Duration, err error)
}

// NoopMetricsCollector discards every recorded metric.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)       {}
func (NoopMetricsCollector) RecordBuild(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)  {}

// BasicMetricsCollector accumulates simple atomic counters, useful for
// local debugging without an external monitoring system.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	BuildCount       atomic.Int64
	BuildTuples      atomic.Int64
	SearchCount      atomic.Int64
	SearchTotalNanos atomic.Int64
}

func (c *BasicMetricsCollector) RecordInsert(d time.Duration, err error) {
	c.InsertCount.Add(1)
	c.InsertTotalNanos.Add(d.Nanoseconds())
	if err != nil {
		c.InsertErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordBuild(tuples int64, d time.Duration, err error) {
	c.BuildCount.Add(1)
	c.BuildTuples.Add(tuples)
}

func (c *BasicMetricsCollector) RecordSearch(k int, d time.Duration, err error) {
	c.SearchCount.Add(1)
	c.SearchTotalNanos.Add(d.Nanoseconds())
}
