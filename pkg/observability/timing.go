package observability

import (
	"context"
	"log/slog"
	"time"
)

// Timer records how long one operation took. A Timer without metrics or
// logger only measures.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

// StartTimer starts timing operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// WithLogger logs failures and, at debug level, completions.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics records duration, count and errors under the operation tag.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// WithTags adds metric tags.
func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records the elapsed time; a non-nil err is counted as a failure.
func (t *Timer) Stop(ctx context.Context, err error) time.Duration {
	d := time.Since(t.start)

	if t.metrics != nil {
		tags := append(append([]Tag(nil), t.tags...), T(OperationKey, t.operation))
		t.metrics.Timing(MetricOperationDuration, d, tags...)
		t.metrics.Counter(MetricOperationTotal, 1, tags...)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tags...)
		}
	}

	if t.logger != nil {
		if err != nil {
			t.logger.WarnContext(ctx, "operation failed", OperationKey, t.operation, DurationKey, d.Milliseconds(), ErrorKey, err)
		} else {
			t.logger.DebugContext(ctx, "operation completed", OperationKey, t.operation, DurationKey, d.Milliseconds())
		}
	}
	return d
}

// TimeOperation times fn.
func TimeOperation[T any](ctx context.Context, metrics Metrics, operation string, fn func() (T, error)) (T, error) {
	timer := StartTimer(operation).WithMetrics(metrics)
	v, err := fn()
	timer.Stop(ctx, err)
	return v, err
}
