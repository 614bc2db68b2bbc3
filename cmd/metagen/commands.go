package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/appstream-tools/metagen/archive"
	"github.com/appstream-tools/metagen/generator"
	"github.com/appstream-tools/metagen/media"
	"github.com/appstream-tools/metagen/store/cachedb"
	"github.com/appstream-tools/metagen/telemetry"
)

// runContext is passed into every subcommand Run method.
type runContext struct {
	ctx    context.Context
	logger *slog.Logger
}

// setup builds the pipeline from the data directory: config, media tree,
// cache environment and the manifest-backed archive providers. Any failure
// here maps to the init exit status.
func setup(rc *runContext, dir string) (*generator.Generator, *cachedb.Cache, error) {
	cfg, err := generator.LoadConfig(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errInit, err)
	}

	mediaDir, err := media.New(cfg.MediaDir())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errInit, err)
	}

	cache := cachedb.New(cachedb.WithLogger(rc.logger))
	if err := cache.Open(cfg.CacheDir); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errInit, err)
	}

	provider := archive.NewManifestProvider(cfg.ArchiveRoot)
	gen := generator.New(cfg, cache, mediaDir, provider, provider,
		generator.WithLogger(rc.logger),
		generator.WithContentsProvider(provider),
		generator.WithMeter(telemetry.Meter()),
	)
	return gen, cache, nil
}

type processCmd struct {
	Dir   string `arg:"" help:"Generator data directory."`
	Suite string `arg:"" help:"Suite to process."`
}

func (c *processCmd) Run(rc *runContext) error {
	gen, cache, err := setup(rc, c.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	return gen.ProcessSuite(rc.ctx, c.Suite)
}

type cleanupCmd struct {
	Dir string `arg:"" help:"Generator data directory."`
}

func (c *cleanupCmd) Run(rc *runContext) error {
	gen, cache, err := setup(rc, c.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	result, err := gen.ExpireCache(rc.ctx)
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		rc.logger.Warn("cleanup finished with errors", "errors", len(result.Errors))
	}
	return nil
}

type removeProcessedCmd struct {
	Dir   string `arg:"" help:"Generator data directory."`
	Suite string `arg:"" help:"Suite whose processing records should be cleared."`
}

func (c *removeProcessedCmd) Run(rc *runContext) error {
	gen, cache, err := setup(rc, c.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	_, err = gen.RemoveProcessed(rc.ctx, c.Suite)
	return err
}

type forgetCmd struct {
	Dir     string `arg:"" help:"Generator data directory."`
	Package string `arg:"" help:"Package id (name/version/arch) or bare package name."`
}

func (c *forgetCmd) Run(rc *runContext) error {
	gen, cache, err := setup(rc, c.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	return gen.Forget(rc.ctx, c.Package)
}

type infoCmd struct {
	Dir  string `arg:"" help:"Generator data directory."`
	Name string `arg:"" help:"Package name to report on."`
}

func (c *infoCmd) Run(rc *runContext) error {
	gen, cache, err := setup(rc, c.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	return gen.Info(rc.ctx, c.Name, os.Stdout)
}

type prepopulateCmd struct {
	Dir   string `arg:"" help:"Generator data directory."`
	Suite string `arg:"" help:"Suite to prepopulate ignore records for."`
}

func (c *prepopulateCmd) Run(rc *runContext) error {
	gen, cache, err := setup(rc, c.Dir)
	if err != nil {
		return err
	}
	defer cache.Close()

	return gen.Prepopulate(rc.ctx, c.Suite)
}
