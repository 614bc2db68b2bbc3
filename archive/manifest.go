// Package archive provides snapshot providers backed by a pre-built
// archive manifest. Parsing native archive index formats is out of scope
// here; the manifest is expected to be produced by the archive-side
// tooling that already understands them.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	metagen "github.com/appstream-tools/metagen"
)

// manifestFileName is the manifest file expected under the archive root.
const manifestFileName = "manifest.yml"

type packageEntry struct {
	metagen.PackageInfo `yaml:",inline"`
	Files               []string         `yaml:"files,omitempty"`
	Components          []componentEntry `yaml:"components,omitempty"`
}

// manifest maps suite -> section -> arch -> package entries.
type manifest struct {
	Suites map[string]map[string]map[string][]packageEntry `yaml:"suites"`
}

// ManifestProvider implements metagen.SnapshotProvider and
// metagen.ContentsProvider from a YAML manifest under the archive root.
// The manifest is loaded once, on first use.
type ManifestProvider struct {
	root string

	once sync.Once
	m    *manifest
	err  error
}

// NewManifestProvider creates a provider reading from the given archive
// root directory.
func NewManifestProvider(root string) *ManifestProvider {
	return &ManifestProvider{root: root}
}

func (p *ManifestProvider) load() (*manifest, error) {
	p.once.Do(func() {
		raw, err := os.ReadFile(filepath.Join(p.root, manifestFileName))
		if err != nil {
			p.err = fmt.Errorf("reading archive manifest: %w", err)
			return
		}
		var m manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			p.err = fmt.Errorf("parsing archive manifest: %w", err)
			return
		}
		p.m = &m
	})
	return p.m, p.err
}

// Packages returns the package entries for one suite/section/architecture.
// An unknown combination yields an empty list, not an error, so sweeps see
// removed architectures as empty.
func (p *ManifestProvider) Packages(suite, section, arch string) ([]metagen.PackageInfo, error) {
	m, err := p.load()
	if err != nil {
		return nil, err
	}
	entries := m.Suites[suite][section][arch]
	pkgs := make([]metagen.PackageInfo, 0, len(entries))
	for _, e := range entries {
		pkgs = append(pkgs, e.PackageInfo)
	}
	return pkgs, nil
}

// FileLists returns the shipped-file lists per package id for one
// suite/section/architecture. Entries without a file list are omitted.
func (p *ManifestProvider) FileLists(suite, section, arch string) (map[metagen.PackageID][]string, error) {
	m, err := p.load()
	if err != nil {
		return nil, err
	}
	lists := make(map[metagen.PackageID][]string)
	for _, e := range m.Suites[suite][section][arch] {
		if len(e.Files) == 0 {
			continue
		}
		lists[e.ID()] = append(lists[e.ID()], e.Files...)
	}
	return lists, nil
}
