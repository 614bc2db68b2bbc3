// Package metagen contains the shared domain types for the metadata
// generator: package and component identifiers, the extraction collaborator
// contracts, and the global-id layout used by both the cache and the
// on-disk media tree.
package metagen

import (
	"context"
	"fmt"
	"strings"
)

// PackageID is the composite identifier of one archive package entry,
// in the form "name/version/arch".
type PackageID string

// MakePackageID builds a PackageID from its three parts.
func MakePackageID(name, version, arch string) PackageID {
	return PackageID(name + "/" + version + "/" + arch)
}

// Name returns the package name portion of the id.
func (p PackageID) Name() string {
	name, _, _ := strings.Cut(string(p), "/")
	return name
}

// Split returns the name, version and architecture parts.
func (p PackageID) Split() (name, version, arch string, err error) {
	parts := strings.SplitN(string(p), "/", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid package id %q", string(p))
	}
	return parts[0], parts[1], parts[2], nil
}

// HasName reports whether the id belongs to the given package name.
func (p PackageID) HasName(name string) bool {
	return strings.HasPrefix(string(p), name+"/")
}

// GlobalIDPathDepth is the number of path segments a global id occupies
// under a section directory in the media tree.
const GlobalIDPathDepth = 4

// GlobalID is the stable identifier of one extracted component. It doubles
// as a relative filesystem path of exactly GlobalIDPathDepth segments
// (pool prefix, package name, component id, content hash).
type GlobalID string

// Valid reports whether the id has the expected segment count with no
// empty segments.
func (g GlobalID) Valid() bool {
	parts := strings.Split(string(g), "/")
	if len(parts) != GlobalIDPathDepth {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// PackageInfo describes one package entry of an archive snapshot.
type PackageInfo struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Arch     string `yaml:"arch"`
	Filename string `yaml:"filename,omitempty"`
}

// ID returns the composite package id for this entry.
func (p PackageInfo) ID() PackageID {
	return MakePackageID(p.Name, p.Version, p.Arch)
}

// Component is one extracted component record as produced by the
// extraction collaborator. The cache never looks past these methods.
type Component interface {
	// GlobalID returns the component's stable global id.
	GlobalID() GlobalID

	// Ignored reports whether the component carries a disqualifying
	// ignore-reason. Document generation can newly set one, so callers
	// re-check after calling Document.
	Ignored() bool

	// Document renders the component to its serialized metadata document.
	Document() (string, error)

	// Hints renders the component's diagnostic hints, or "" when none.
	Hints() string
}

// Extractor produces component records for one package.
type Extractor interface {
	Process(ctx context.Context, pkg PackageInfo) ([]Component, error)
}

// SnapshotProvider supplies the current list of valid packages per
// suite/section/architecture.
type SnapshotProvider interface {
	Packages(suite, section, arch string) ([]PackageInfo, error)
}

// ContentsProvider supplies per-package shipped-file lists, used by the
// cache prepopulation heuristic.
type ContentsProvider interface {
	FileLists(suite, section, arch string) (map[PackageID][]string, error)
}
