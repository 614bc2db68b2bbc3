// Package cachedb implements the persistent metadata cache backing the
// generator: an embedded bbolt environment with five logical tables
// (packages, hints, metadata, statistics, suites) tracking which metadata
// and media artifacts each archive package produced.
package cachedb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("cachedb: not found")

	// ErrAlreadyOpen is returned by Open when the environment is open.
	ErrAlreadyOpen = errors.New("cachedb: environment already open")

	// ErrClosed is returned by table operations invoked while the
	// environment is not open.
	ErrClosed = errors.New("cachedb: environment not open")
)

// initialMmapSize is the initial mmap size for the environment. Sized once,
// generously, so the map never needs to grow during a run.
const initialMmapSize = 1 << 31 // 2 GiB

// Cache is the embedded metadata cache. A Cache is safe for concurrent use
// by multiple goroutines within one process; bbolt serializes writers.
type Cache struct {
	db     *bbolt.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
	noSync bool
}

// Option configures a Cache instance.
type Option func(*Cache)

// WithLogger sets the logger for the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithNow sets the time function for testing.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithNoSync disables fsync per transaction.
// WARNING: This improves write performance but risks data loss on crash.
// Use only for testing or benchmarking, never in production.
func WithNoSync(noSync bool) Option {
	return func(c *Cache) {
		c.noSync = noSync
	}
}

// New creates a new Cache with options. The environment is not opened
// until Open is called.
func New(opts ...Option) *Cache {
	c := &Cache{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates or opens the cache environment in the given directory.
// It fails with ErrAlreadyOpen if the environment is already open.
func (c *Cache) Open(dir string) error {
	if c.db != nil {
		return ErrAlreadyOpen
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cachedb: creating environment directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, "cache.db"), 0o600, &bbolt.Options{
		Timeout:         1 * time.Second,
		InitialMmapSize: initialMmapSize,
		NoSync:          c.noSync,
	})
	if err != nil {
		return fmt.Errorf("cachedb: opening environment: %w", err)
	}
	c.db = db
	c.path = dir

	if err := c.createBuckets(); err != nil {
		_ = db.Close()
		c.db = nil
		return fmt.Errorf("cachedb: opening environment: %w", err)
	}

	c.logger.Debug("opened cache", "dir", dir, "noSync", c.noSync)
	return nil
}

func (c *Cache) createBuckets() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{
			bucketPackages,
			bucketHints,
			bucketMetadata,
			bucketStatistics,
			bucketSuites,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close releases the environment handle. Calling Close on a cache that is
// not open is a no-op.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	c.logger.Debug("closing cache")
	err := c.db.Close()
	c.db = nil
	return err
}

// Reopen re-opens the environment at the previously recorded directory.
// It is a no-op when the environment is already open. The handle cannot be
// inherited across a process fork, so embedders that fork must close
// beforehand and have each child reopen its own handle first thing.
func (c *Cache) Reopen() error {
	if c.db != nil {
		return nil
	}
	if c.path == "" {
		return ErrClosed
	}
	return c.Open(c.path)
}

// Path returns the environment directory, or "" before the first Open.
func (c *Cache) Path() string {
	return c.path
}

// view runs a read transaction, failing with ErrClosed when not open.
func (c *Cache) view(fn func(tx *bbolt.Tx) error) error {
	if c.db == nil {
		return ErrClosed
	}
	return c.db.View(fn)
}

// update runs a write transaction, failing with ErrClosed when not open.
func (c *Cache) update(fn func(tx *bbolt.Tx) error) error {
	if c.db == nil {
		return ErrClosed
	}
	return c.db.Update(fn)
}
