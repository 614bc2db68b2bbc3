package gc

import (
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds GC-related OpenTelemetry metric instruments.
type Metrics struct {
	runsTotal         metric.Int64Counter
	runDuration       metric.Float64Histogram
	packagesExpired   metric.Int64Counter
	componentsRemoved metric.Int64Counter
	mediaRemoved      metric.Int64Counter
	errorsTotal       metric.Int64Counter
	lastRunTimestamp  metric.Float64Gauge
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runsTotal, err := meter.Int64Counter(
		"metagen_gc_runs_total",
		metric.WithDescription("Total number of GC runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"metagen_gc_run_duration_seconds",
		metric.WithDescription("GC run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	packagesExpired, err := meter.Int64Counter(
		"metagen_gc_packages_expired_total",
		metric.WithDescription("Total number of stale packages expired from the cache"),
		metric.WithUnit("{package}"),
	)
	if err != nil {
		return nil, err
	}

	componentsRemoved, err := meter.Int64Counter(
		"metagen_gc_components_removed_total",
		metric.WithDescription("Total number of orphaned component records removed"),
		metric.WithUnit("{component}"),
	)
	if err != nil {
		return nil, err
	}

	mediaRemoved, err := meter.Int64Counter(
		"metagen_gc_media_removed_total",
		metric.WithDescription("Total number of cached media directories removed"),
		metric.WithUnit("{directory}"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"metagen_gc_errors_total",
		metric.WithDescription("Total number of GC errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	lastRunTimestamp, err := meter.Float64Gauge(
		"metagen_gc_last_run_timestamp_seconds",
		metric.WithDescription("Unix timestamp of last GC run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runsTotal:         runsTotal,
		runDuration:       runDuration,
		packagesExpired:   packagesExpired,
		componentsRemoved: componentsRemoved,
		mediaRemoved:      mediaRemoved,
		errorsTotal:       errorsTotal,
		lastRunTimestamp:  lastRunTimestamp,
	}, nil
}
