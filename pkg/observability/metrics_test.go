package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}
	m.Counter(MetricNodesAdded, 1)
	m.Gauge(MetricOutboxLag, 1.5)
	m.Histogram(MetricSubtreeSize, 3)
	m.Timing(MetricHTTPDuration, time.Millisecond)
}

func TestInMemoryMetrics(t *testing.T) {
	t.Run("counter by tag", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Counter(MetricCapacityRejections, 1, T("kind", "task"))
		m.Counter(MetricCapacityRejections, 1, T("kind", "sub_milestone"))
		m.Counter(MetricCapacityRejections, 1, T("kind", "task"))

		assert.Equal(t, int64(2), m.GetCounter(MetricCapacityRejections, T("kind", "task")))
		assert.Equal(t, int64(1), m.GetCounter(MetricCapacityRejections, T("kind", "sub_milestone")))
		assert.Zero(t, m.GetCounter(MetricCapacityRejections))
	})

	t.Run("gauge keeps last value", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Gauge(MetricOutboxLag, 12)
		m.Gauge(MetricOutboxLag, 3)
		assert.Equal(t, 3.0, m.GetGauge(MetricOutboxLag))
	})

	t.Run("histogram and timings are copies", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Histogram(MetricSubtreeSize, 1)
		m.Histogram(MetricSubtreeSize, 4)
		m.Timing(MetricHTTPDuration, time.Second)

		values := m.GetHistogram(MetricSubtreeSize)
		assert.Equal(t, []float64{1, 4}, values)
		values[0] = 99
		assert.Equal(t, []float64{1, 4}, m.GetHistogram(MetricSubtreeSize))
		assert.Equal(t, []time.Duration{time.Second}, m.GetTimings(MetricHTTPDuration))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		m := NewInMemoryMetrics()
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Counter(MetricNodesAdded, 1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int64(50), m.GetCounter(MetricNodesAdded))
	})
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "keel.http.requests", formatKey(MetricHTTPRequests, nil))
	assert.Equal(t,
		"keel.http.requests:method=GET:status=200",
		formatKey(MetricHTTPRequests, []Tag{T("status", "200"), T("method", "GET")}),
	)
}
