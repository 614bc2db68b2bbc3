package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	metagen "github.com/appstream-tools/metagen"
	"github.com/appstream-tools/metagen/export"
	"github.com/appstream-tools/metagen/store/cachedb"
)

// ProcessSuite extracts metadata for every not-yet-processed package of a
// suite, records the results in the cache and writes the export tree for
// each section and architecture. The first worker error aborts the whole
// run (wrapped in ErrWorkerFailed); partial per-package records cannot
// corrupt the cache, so a rerun after a clean restart picks up exactly the
// packages still lacking a record.
func (g *Generator) ProcessSuite(ctx context.Context, suiteName string) error {
	suite, ok := g.cfg.Suites[suiteName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSuite, suiteName)
	}

	suiteNames := []string{suiteName}
	if suite.BaseSuite != "" {
		suiteNames = append(suiteNames, suite.BaseSuite)
	}
	snap, err := BuildSnapshot(g.provider, g.cfg, suiteNames...)
	if err != nil {
		return err
	}

	started := g.now()
	var totalProcessed, totalKept int

	for _, section := range suite.Sections {
		for _, arch := range suite.Architectures {
			pkglist := snap.Packages(suiteName, section, arch)

			processed, kept, err := g.processPackages(ctx, suiteName, section, arch, pkglist)
			if err != nil {
				return err
			}
			totalProcessed += processed
			totalKept += kept

			if err := g.writeExports(ctx, suiteName, section, arch, suite, pkglist, kept > 0); err != nil {
				return err
			}
		}
		g.logger.Info("completed metadata extraction", "suite", suiteName, "section", section)
	}

	return g.cache.SetStats(ctx, g.now(), cachedb.RunStats{
		RunID:             uuid.NewString(),
		Suite:             suiteName,
		PackagesProcessed: totalProcessed,
		ComponentsKept:    totalKept,
		DurationSeconds:   time.Since(started).Seconds(),
	})
}

// processPackages runs the extraction worker pool over the packages of one
// suite/section/arch that have no cache record yet. Returns how many
// packages were processed and how many yielded at least one kept
// component.
func (g *Generator) processPackages(ctx context.Context, suiteName, section, arch string, pkglist []metagen.PackageInfo) (int, int, error) {
	todo := make([]metagen.PackageInfo, 0, len(pkglist))
	for _, pkg := range pkglist {
		exists, err := g.cache.PackageExists(ctx, pkg.ID())
		if err != nil {
			return 0, 0, err
		}
		if exists {
			continue
		}
		if pkg.Filename != "" {
			path := filepath.Join(g.cfg.ArchiveRoot, pkg.Filename)
			if _, err := os.Stat(path); err != nil {
				g.logger.Warn("package file not found", "path", path)
				continue
			}
		}
		todo = append(todo, pkg)
	}

	if len(todo) == 0 {
		g.logger.Info("no new packages to process", "suite", suiteName, "section", section, "arch", arch)
		return 0, 0, nil
	}

	g.logger.Info("processing packages",
		"count", len(todo), "suite", suiteName, "section", section, "arch", arch)

	var processed, kept atomic.Int64
	pool, poolCtx := errgroup.WithContext(ctx)
	pool.SetLimit(g.workers)

	for _, pkg := range todo {
		pool.Go(func() error {
			cpts, err := g.extractor.Process(poolCtx, pkg)
			if err != nil {
				return fmt.Errorf("extracting %s: %w", pkg.ID(), err)
			}
			if err := g.cache.SetComponents(poolCtx, pkg.ID(), cpts); err != nil {
				return fmt.Errorf("recording %s: %w", pkg.ID(), err)
			}

			n := processed.Add(1)
			anyKept := false
			for _, cpt := range cpts {
				if !cpt.Ignored() {
					anyKept = true
					break
				}
			}
			if anyKept {
				kept.Add(1)
			}
			g.logger.Info("processed package",
				"pkid", pkg.ID(), "suite", suiteName, "arch", arch,
				"components", len(cpts), "progress", fmt.Sprintf("%d/%d", n, len(todo)))
			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return int(processed.Load()), int(kept.Load()), fmt.Errorf("%w: %v", ErrWorkerFailed, err)
	}

	for _, pkg := range todo {
		if err := g.cache.AddPackageToSuite(ctx, pkg.ID(), suiteName); err != nil {
			return int(processed.Load()), int(kept.Load()), err
		}
	}

	return int(processed.Load()), int(kept.Load()), nil
}

// writeExports writes the hints file and, when any new components were
// found, the metadata file for one suite/section/arch.
func (g *Generator) writeExports(ctx context.Context, suiteName, section, arch string, suite SuiteConfig, pkglist []metagen.PackageInfo, newComponents bool) error {
	hintsPath := filepath.Join(g.cfg.ExportDir, "hints", suiteName, section,
		fmt.Sprintf("DEP11Hints_%s.yml.gz", arch))
	hintsW, err := export.NewWriter(hintsPath)
	if err != nil {
		return err
	}
	defer hintsW.Abort()

	var dataW *export.Writer
	if newComponents {
		dataPath := filepath.Join(g.cfg.ExportDir, "data", suiteName, section,
			fmt.Sprintf("Components-%s.yml.gz", arch))
		dataW, err = export.NewWriter(dataPath)
		if err != nil {
			return err
		}
		defer dataW.Abort()

		header, err := export.HeaderDocument(g.cfg.RepositoryName, suiteName, section,
			g.cfg.MediaBaseURL+"/"+section, suite.DataPriority)
		if err != nil {
			return err
		}
		if _, err := dataW.WriteString(header); err != nil {
			return err
		}
	} else {
		g.logger.Info("no components in any new package, skipping data export",
			"suite", suiteName, "section", section, "arch", arch)
	}

	for _, pkg := range pkglist {
		pkid := pkg.ID()
		if dataW != nil {
			data, err := g.cache.GetMetadataForPackage(ctx, pkid)
			if err != nil {
				return err
			}
			if data != "" {
				if _, err := dataW.WriteString(data); err != nil {
					return err
				}
			}
		}

		hints, err := g.cache.GetHints(ctx, pkid)
		if err != nil && !errors.Is(err, cachedb.ErrNotFound) {
			return err
		}
		if hints != "" {
			if _, err := hintsW.WriteString(hints); err != nil {
				return err
			}
		}
	}

	if dataW != nil {
		if err := dataW.Close(); err != nil {
			return err
		}
	}
	return hintsW.Close()
}
