package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, c *Collector) []*dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for m := range ch {
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		out = append(out, &pb)
	}
	return out
}

func TestCollector_DescribeEmitsAllDescriptors(t *testing.T) {
	c := New()
	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	assert.Equal(t, 5, count)
}

func TestCollector_ObserveSegmentPrepareFeedsQuantiles(t *testing.T) {
	c := New()
	for i := 1; i <= 20; i++ {
		c.ObserveSegmentPrepare(time.Duration(i) * time.Microsecond)
	}
	metrics := collect(t, c)
	require.NotEmpty(t, metrics)

	var sawP50 bool
	for _, m := range metrics {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "quantile" && lp.GetValue() == "0.5" {
				sawP50 = true
			}
		}
	}
	assert.True(t, sawP50)
}

func TestCollector_UpdateQueueDepthTracksMaxAndEMA(t *testing.T) {
	c := New()
	c.UpdateQueueDepth(2)
	c.UpdateQueueDepth(5)
	c.UpdateQueueDepth(1)
	assert.Equal(t, 1, c.queue.current)
	assert.Equal(t, 5, c.queue.max)
	assert.InDelta(t, 0.9*(0.9*2+0.1*5)+0.1*1, c.queue.avg, 1e-9)
}

func TestCollector_RecordFeedholdEngagementIncrementsCounter(t *testing.T) {
	c := New()
	c.RecordFeedholdEngagement()
	c.RecordFeedholdEngagement()
	assert.Equal(t, uint64(2), c.holdEngagements)
}
