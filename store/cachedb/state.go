package cachedb

import (
	"strings"

	metagen "github.com/appstream-tools/metagen"
)

// StateKind discriminates the three mutually exclusive states a processed
// package can be recorded in.
type StateKind int

const (
	// StateIgnored marks a package that produced no components and will
	// never be reconsidered unless explicitly forgotten.
	StateIgnored StateKind = iota

	// StateSeen marks a package that was processed, kept no metadata,
	// but produced diagnostics that must not be rediscovered as
	// unprocessed.
	StateSeen

	// StateComponents marks a package with at least one kept component.
	StateComponents
)

// On-disk sentinel values in the packages table. Kept as the literal
// strings the cache has always stored so existing environments decode
// unchanged.
const (
	sentinelIgnore = "ignore"
	sentinelSeen   = "seen"
)

// PackageState is the tagged value stored per package id: ignored, seen
// without metadata, or a list of component global ids.
type PackageState struct {
	Kind       StateKind
	Components []metagen.GlobalID
}

// IgnoredState returns the ignore sentinel state.
func IgnoredState() PackageState {
	return PackageState{Kind: StateIgnored}
}

// SeenState returns the seen-without-metadata sentinel state.
func SeenState() PackageState {
	return PackageState{Kind: StateSeen}
}

// ComponentsState returns a state holding the given global ids.
func ComponentsState(gids []metagen.GlobalID) PackageState {
	return PackageState{Kind: StateComponents, Components: gids}
}

// encode serializes the state to its table value: a sentinel literal or
// the newline-joined global id list.
func (s PackageState) encode() []byte {
	switch s.Kind {
	case StateIgnored:
		return []byte(sentinelIgnore)
	case StateSeen:
		return []byte(sentinelSeen)
	default:
		parts := make([]string, len(s.Components))
		for i, gid := range s.Components {
			parts[i] = string(gid)
		}
		return []byte(strings.Join(parts, "\n"))
	}
}

// decodeState parses a packages table value. A value equal to a sentinel
// literal decodes to that sentinel; anything else is a newline-joined id
// list.
func decodeState(v []byte) PackageState {
	switch string(v) {
	case sentinelIgnore:
		return PackageState{Kind: StateIgnored}
	case sentinelSeen:
		return PackageState{Kind: StateSeen}
	}
	lines := strings.Split(string(v), "\n")
	gids := make([]metagen.GlobalID, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		gids = append(gids, metagen.GlobalID(line))
	}
	return PackageState{Kind: StateComponents, Components: gids}
}
