package generator

import (
	"fmt"

	metagen "github.com/appstream-tools/metagen"
)

// Snapshot is an immutable view of the archive contents for a set of
// suites, built once per run and passed into each stage.
type Snapshot struct {
	pkgs map[string]map[string]map[string][]metagen.PackageInfo
}

// BuildSnapshot queries the provider for every suite/section/architecture
// combination of the named suites and returns the assembled snapshot.
func BuildSnapshot(provider metagen.SnapshotProvider, cfg Config, suiteNames ...string) (*Snapshot, error) {
	snap := &Snapshot{
		pkgs: make(map[string]map[string]map[string][]metagen.PackageInfo),
	}

	for _, name := range suiteNames {
		suite, ok := cfg.Suites[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSuite, name)
		}
		bySection := make(map[string]map[string][]metagen.PackageInfo)
		for _, section := range suite.Sections {
			byArch := make(map[string][]metagen.PackageInfo)
			for _, arch := range suite.Architectures {
				pkgs, err := provider.Packages(name, section, arch)
				if err != nil {
					return nil, fmt.Errorf("listing packages for %s/%s/%s: %w", name, section, arch, err)
				}
				byArch[arch] = pkgs
			}
			bySection[section] = byArch
		}
		snap.pkgs[name] = bySection
	}

	return snap, nil
}

// Packages returns the package list for one suite/section/architecture,
// or nil when the combination is not part of the snapshot.
func (s *Snapshot) Packages(suite, section, arch string) []metagen.PackageInfo {
	return s.pkgs[suite][section][arch]
}

// PackageIDs returns the set of every package id in the snapshot, used as
// the "current set" by the expiry sweep.
func (s *Snapshot) PackageIDs() map[metagen.PackageID]struct{} {
	ids := make(map[metagen.PackageID]struct{})
	for _, bySection := range s.pkgs {
		for _, byArch := range bySection {
			for _, pkgs := range byArch {
				for _, pkg := range pkgs {
					ids[pkg.ID()] = struct{}{}
				}
			}
		}
	}
	return ids
}
