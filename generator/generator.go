// Package generator drives the metadata extraction pipeline: it walks
// archive snapshots, fans package extraction out over a worker pool,
// records results in the persistent cache, writes the export tree and
// runs the garbage-collection sweeps.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	metagen "github.com/appstream-tools/metagen"
	"github.com/appstream-tools/metagen/media"
	"github.com/appstream-tools/metagen/store/cachedb"
	"github.com/appstream-tools/metagen/store/gc"
)

var (
	// ErrUnknownSuite is returned when a named suite is not configured.
	ErrUnknownSuite = errors.New("generator: unknown suite")

	// ErrWorkerFailed wraps the first fatal error raised by an
	// extraction worker. The run terminates; nothing is retried.
	ErrWorkerFailed = errors.New("generator: worker task failed")

	// ErrNoContentsProvider is returned by Prepopulate when no contents
	// provider was configured.
	ErrNoContentsProvider = errors.New("generator: no contents provider configured")
)

// Generator is the pipeline driver.
type Generator struct {
	cfg       Config
	cache     *cachedb.Cache
	media     *media.Dir
	provider  metagen.SnapshotProvider
	extractor metagen.Extractor
	contents  metagen.ContentsProvider
	sweeper   *gc.Sweeper
	gcOpts    []gc.Option
	logger    *slog.Logger
	now       func() time.Time
	workers   int
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithContentsProvider enables the prepopulation heuristic with the given
// provider.
func WithContentsProvider(p metagen.ContentsProvider) Option {
	return func(g *Generator) {
		g.contents = p
	}
}

// WithMeter registers GC metric instruments on the given meter.
func WithMeter(meter metric.Meter) Option {
	return func(g *Generator) {
		g.gcOpts = append(g.gcOpts, gc.WithMetrics(meter))
	}
}

// WithNow sets the time function for testing.
func WithNow(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// New creates a Generator over an opened cache and media tree.
func New(cfg Config, cache *cachedb.Cache, mediaDir *media.Dir, provider metagen.SnapshotProvider, extractor metagen.Extractor, opts ...Option) *Generator {
	g := &Generator{
		cfg:       cfg,
		cache:     cache,
		media:     mediaDir,
		provider:  provider,
		extractor: extractor,
		logger:    slog.Default(),
		now:       time.Now,
		workers:   cfg.Workers,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.workers <= 0 {
		g.workers = runtime.NumCPU()
	}
	g.sweeper = gc.New(cache, mediaDir, append(g.gcOpts, gc.WithLogger(g.logger))...)
	return g
}

// ExpireCache removes cache and media records for packages no longer in
// any configured suite, then runs the orphan sweeps. The sweeps log
// localized failures and keep going; the combined result reports them.
func (g *Generator) ExpireCache(ctx context.Context) (*gc.Result, error) {
	suiteNames := make([]string, 0, len(g.cfg.Suites))
	for name := range g.cfg.Suites {
		suiteNames = append(suiteNames, name)
	}
	snap, err := BuildSnapshot(g.provider, g.cfg, suiteNames...)
	if err != nil {
		return nil, err
	}
	return g.sweeper.Run(ctx, snap.PackageIDs()), nil
}

// RemoveProcessed clears the processing records of a suite so its packages
// are reprocessed on the next run, then drops the orphaned components and
// media that leaves behind. Ignored packages keep their record.
func (g *Generator) RemoveProcessed(ctx context.Context, suiteName string) (*gc.Result, error) {
	suite, ok := g.cfg.Suites[suiteName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSuite, suiteName)
	}

	snap, err := BuildSnapshot(g.provider, g.cfg, suiteName)
	if err != nil {
		return nil, err
	}

	for _, section := range suite.Sections {
		for _, arch := range suite.Architectures {
			for _, pkg := range snap.Packages(suiteName, section, arch) {
				pkid := pkg.ID()

				ignored, err := g.cache.IsIgnored(ctx, pkid)
				if err != nil {
					return nil, err
				}
				if ignored {
					continue
				}
				exists, err := g.cache.PackageExists(ctx, pkid)
				if err != nil {
					return nil, err
				}
				if !exists {
					continue
				}

				if err := g.cache.RemovePackage(ctx, pkid); err != nil {
					return nil, err
				}
			}
		}
	}

	result := &gc.Result{}
	g.sweeper.RemoveOrphanedComponents(ctx, result)
	g.sweeper.RemoveOrphanedMedia(ctx, result)
	return result, nil
}

// Forget deletes all cache records for one package. An argument containing
// a slash is treated as a full package id; a bare name removes every
// version and architecture of that package. Orphaned components left
// behind are swept afterwards.
func (g *Generator) Forget(ctx context.Context, pkidOrName string) error {
	if isPackageID(pkidOrName) {
		pkid := metagen.PackageID(pkidOrName)
		exists, err := g.cache.PackageExists(ctx, pkid)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("package with id %q does not exist", pkidOrName)
		}
		if err := g.cache.RemovePackage(ctx, pkid); err != nil {
			return err
		}
	} else {
		g.logger.Info("removing all packages with name", "name", pkidOrName)
		removed, err := g.cache.DeletePackageByName(ctx, pkidOrName)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no packages matching name %q", pkidOrName)
		}
	}

	result := &gc.Result{}
	g.sweeper.RemoveOrphanedComponents(ctx, result)
	return nil
}

// Info writes a diagnostic report of everything the cache knows about a
// package name.
func (g *Generator) Info(ctx context.Context, name string, w io.Writer) error {
	rows, err := g.cache.Info(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s:\n", name)
	for suffix, lines := range rows {
		fmt.Fprintf(w, " %s\n", suffix)
		for _, line := range lines {
			fmt.Fprintf(w, "  | -> %s\n", line)
		}
	}
	return nil
}

// Prepopulate marks packages of a suite as ignored when their shipped file
// lists show they cannot contain interesting metadata. Useful when
// bootstrapping new suites or architectures. Packages that already have a
// cache record are never overridden.
func (g *Generator) Prepopulate(ctx context.Context, suiteName string) error {
	if g.contents == nil {
		return ErrNoContentsProvider
	}
	suite, ok := g.cfg.Suites[suiteName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSuite, suiteName)
	}

	for _, section := range suite.Sections {
		for _, arch := range suite.Architectures {
			lists, err := g.contents.FileLists(suiteName, section, arch)
			if err != nil {
				return fmt.Errorf("listing contents for %s/%s/%s: %w", suiteName, section, arch, err)
			}

			for pkid, files := range lists {
				if hasInterestingFiles(files) {
					continue
				}

				ignored, err := g.cache.IsIgnored(ctx, pkid)
				if err != nil {
					return err
				}
				if ignored {
					g.logger.Debug("package already ignored", "pkid", pkid)
					continue
				}
				exists, err := g.cache.PackageExists(ctx, pkid)
				if err != nil {
					return err
				}
				if exists {
					g.logger.Warn("not ignoring package which already has cache data", "pkid", pkid)
					continue
				}

				g.logger.Info("ignoring package", "pkid", pkid)
				if err := g.cache.SetPackageIgnore(ctx, pkid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// hasInterestingFiles reports whether a package's file list contains
// anything the extractor could produce metadata from.
func hasInterestingFiles(files []string) bool {
	for _, f := range files {
		if strings.Contains(f, "usr/share/applications/") ||
			strings.Contains(f, "usr/share/appdata/") ||
			strings.Contains(f, "usr/share/metainfo/") ||
			strings.Contains(f, "/pkgconfig/") {
			return true
		}
	}
	return false
}

// isPackageID reports whether the argument looks like a full composite
// package id rather than a bare package name.
func isPackageID(s string) bool {
	return strings.Contains(s, "/")
}
