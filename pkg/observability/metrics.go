package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag labels a metric.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics keeps every sample in memory. The container uses it by
// default; tests read it back through the Get methods.
type InMemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
	timings    map[string][]time.Duration
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	m.counters[formatKey(name, tags)] += value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	m.gauges[formatKey(name, tags)] = value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	key := formatKey(name, tags)
	m.histograms[key] = append(m.histograms[key], value)
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.mu.Lock()
	key := formatKey(name, tags)
	m.timings[key] = append(m.timings[key], duration)
	m.mu.Unlock()
}

// GetCounter returns the counter total for name and tags.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[formatKey(name, tags)]
}

// GetGauge returns the last gauge value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[formatKey(name, tags)]
}

// GetHistogram returns a copy of the recorded values.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.histograms[formatKey(name, tags)]...)
}

// GetTimings returns a copy of the recorded durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Duration(nil), m.timings[formatKey(name, tags)]...)
}

// formatKey renders name:k=v:k=v with tags sorted by key, so lookups do not
// depend on the order tags were passed in.
func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	var b strings.Builder
	b.WriteString(name)
	for _, t := range sorted {
		b.WriteString(":" + t.Key + "=" + t.Value)
	}
	return b.String()
}

// Metric names recorded by keel.
const (
	MetricOperationTotal    = "keel.operation.total"
	MetricOperationDuration = "keel.operation.duration"
	MetricOperationErrors   = "keel.operation.errors"

	MetricMilestonesCreated     = "keel.milestones.created"
	MetricNodesAdded            = "keel.nodes.added"
	MetricNodesRemoved          = "keel.nodes.removed"
	MetricSubtreeSize           = "keel.nodes.removed_subtree_size"
	MetricCapacityRejections    = "keel.capacity.rejections"
	MetricTasksCompleted        = "keel.tasks.completed"
	MetricContributionsRecorded = "keel.kpi.contributions"

	MetricHTTPRequests = "keel.http.requests"
	MetricHTTPDuration = "keel.http.duration"

	MetricCacheHits   = "keel.cache.hits"
	MetricCacheMisses = "keel.cache.misses"

	MetricKPIDirectoryCalls = "keel.kpi_directory.calls"

	MetricEventsPublished = "keel.events.published"
	MetricEventsConsumed  = "keel.events.consumed"
	MetricOutboxLag       = "keel.outbox.lag_seconds"
	MetricOutboxMessages  = "keel.outbox.messages"
)
