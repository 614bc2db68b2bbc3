// Package gc implements the garbage-collection sweeps that keep the
// metadata cache and the cached-media tree consistent with the current
// archive snapshot: expiring vanished packages, dropping unreferenced
// component metadata, and pruning on-disk media with no database record.
package gc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	metagen "github.com/appstream-tools/metagen"
	"github.com/appstream-tools/metagen/media"
	"github.com/appstream-tools/metagen/store/cachedb"
)

// Result contains the results of a GC run.
type Result struct {
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	PackagesExpired   int           `json:"packages_expired"`
	ComponentsRemoved int           `json:"components_removed"`
	MediaRemoved      int           `json:"media_removed"`
	Errors            []string      `json:"errors,omitempty"`
}

// Sweeper runs the GC sweeps against one cache and media tree. Sweeps are
// idempotent and individually re-runnable; they must never run
// concurrently with extraction workers, which the driver enforces by
// phase separation.
type Sweeper struct {
	cache   *cachedb.Cache
	media   *media.Dir
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger for the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithMetrics registers GC metric instruments on the given meter.
func WithMetrics(meter metric.Meter) Option {
	return func(s *Sweeper) {
		metrics, err := NewMetrics(meter)
		if err != nil {
			s.logger.Error("failed to create gc metrics", "error", err)
			return
		}
		s.metrics = metrics
	}
}

// New creates a Sweeper. The media tree may be nil, in which case media
// deletion is skipped and only database records are swept.
func New(cache *cachedb.Cache, mediaDir *media.Dir, opts ...Option) *Sweeper {
	s := &Sweeper{
		cache:  cache,
		media:  mediaDir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes all three sweeps in order against the given snapshot of
// currently valid package ids and returns the combined result. A sweep
// logging localized failures does not stop the following sweeps.
func (s *Sweeper) Run(ctx context.Context, current map[metagen.PackageID]struct{}) *Result {
	result := &Result{StartedAt: time.Now()}

	s.logger.Info("starting gc run")

	s.ExpirePackages(ctx, current, result)
	s.RemoveOrphanedComponents(ctx, result)
	s.RemoveOrphanedMedia(ctx, result)

	result.Duration = time.Since(result.StartedAt)
	s.recordMetrics(ctx, result)

	s.logger.Info("gc run completed",
		"duration", result.Duration,
		"packages_expired", result.PackagesExpired,
		"components_removed", result.ComponentsRemoved,
		"media_removed", result.MediaRemoved,
		"errors", len(result.Errors),
	)
	return result
}

func (s *Sweeper) recordMetrics(ctx context.Context, result *Result) {
	if s.metrics == nil {
		return
	}
	s.metrics.runsTotal.Add(ctx, 1)
	s.metrics.runDuration.Record(ctx, result.Duration.Seconds())
	s.metrics.packagesExpired.Add(ctx, int64(result.PackagesExpired))
	s.metrics.componentsRemoved.Add(ctx, int64(result.ComponentsRemoved))
	s.metrics.mediaRemoved.Add(ctx, int64(result.MediaRemoved))
	s.metrics.errorsTotal.Add(ctx, int64(len(result.Errors)))
	s.metrics.lastRunTimestamp.Record(ctx, float64(result.StartedAt.Unix()))
}
