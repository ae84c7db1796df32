package obs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetricsCollectorAcceptsEverything(t *testing.T) {
	var c MetricsCollector = NoopMetricsCollector{}
	assert.NotPanics(t, func() {
		c.RecordInsert(time.Millisecond, nil)
		c.RecordBuild(100, time.Second, nil)
		c.RecordSearch(10, time.Microsecond, errors.New("boom"))
	})
}

func TestBasicMetricsCollectorAccumulates(t *testing.T) {
	c := &BasicMetricsCollector{}

	c.RecordInsert(10*time.Millisecond, nil)
	c.RecordInsert(5*time.Millisecond, errors.New("dimension mismatch"))
	c.RecordBuild(1000, time.Second, nil)
	c.RecordSearch(10, time.Millisecond, nil)

	assert.Equal(t, int64(2), c.InsertCount.Load())
	assert.Equal(t, int64(1), c.InsertErrors.Load())
	assert.Equal(t, int64(15*time.Millisecond), c.InsertTotalNanos.Load())
	assert.Equal(t, int64(1), c.BuildCount.Load())
	assert.Equal(t, int64(1000), c.BuildTuples.Load())
	assert.Equal(t, int64(1), c.SearchCount.Load())
}
