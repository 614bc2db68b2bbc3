// Package media manages the cached-media filesystem tree. Media for one
// component lives under <root>/<section>/<global id>, where the global id
// itself spans a fixed number of path segments. The tree is written by the
// extraction side and reconciled against the metadata table by the GC
// sweeps.
package media

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	metagen "github.com/appstream-tools/metagen"
)

// componentDirDepth is the directory depth, relative to the media root, at
// which a complete component media directory sits: one section segment
// plus the global-id segments.
const componentDirDepth = 1 + metagen.GlobalIDPathDepth

// cleanupLevels bounds how far up empty ancestor directories are removed
// after deleting a component directory.
const cleanupLevels = 3

// Dir is a media tree rooted at a fixed directory.
type Dir struct {
	root string
}

// New creates a media tree rooted at the given path. The directory is
// created if it does not exist.
func New(root string) (*Dir, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating media root: %w", err)
	}
	return &Dir{root: absRoot}, nil
}

// Root returns the media root directory path.
func (d *Dir) Root() string {
	return d.root
}

// ComponentPath returns the media directory for a component within a
// section.
func (d *Dir) ComponentPath(section string, gid metagen.GlobalID) string {
	return filepath.Join(d.root, section, string(gid))
}

// IconDir returns the icon directory for a component at a given size
// (e.g. "64x64").
func (d *Dir) IconDir(section string, gid metagen.GlobalID, size string) string {
	return filepath.Join(d.ComponentPath(section, gid), "icons", size)
}

// RemoveComponent deletes the media directories for a global id in every
// section, then prunes now-empty ancestor directories a bounded number of
// levels up. Returns whether anything was removed; a missing directory is
// an acceptable end state, not an error.
func (d *Dir) RemoveComponent(gid metagen.GlobalID) (bool, error) {
	if gid == "" {
		return false, nil
	}
	matches, err := filepath.Glob(filepath.Join(d.root, "*", string(gid)))
	if err != nil {
		return false, fmt.Errorf("matching media for %s: %w", gid, err)
	}

	removed := false
	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("removing media %s: %w", dir, err)
		}
		removed = true
		d.cleanupEmptyDirs(dir)
	}
	return removed, nil
}

// cleanupEmptyDirs removes empty ancestors of the given path, walking at
// most cleanupLevels levels up so shared parents above the per-section
// subtree are never touched.
func (d *Dir) cleanupEmptyDirs(path string) {
	parent := path
	for range cleanupLevels {
		parent = filepath.Dir(parent)
		if parent == d.root || len(parent) <= len(d.root) {
			return
		}
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(parent); err != nil {
			return
		}
	}
}

// WalkComponentIDs walks the media tree at the fixed component-id depth
// and calls fn for every global id found on disk, independent of what the
// database knows about. Subtrees below a component directory are not
// descended into.
func (d *Dir) WalkComponentIDs(fn func(gid metagen.GlobalID) error) error {
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !entry.IsDir() || path == d.root {
			return nil
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < componentDirDepth {
			return nil
		}

		// First segment is the section; the rest is the global id.
		gid := metagen.GlobalID(strings.Join(parts[1:], "/"))
		if err := fn(gid); err != nil {
			return err
		}
		return fs.SkipDir
	})
}
