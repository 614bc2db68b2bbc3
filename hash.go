package metagen

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// gidHashLen is the number of hex characters of the BLAKE3 digest kept in
// the last global-id segment.
const gidHashLen = 16

// MakeGlobalID builds the global id for a component extracted from the
// given package, keyed by a BLAKE3 digest of the component's source data so
// that the same component rebuilt unchanged yields the same id across
// packages and suites.
func MakeGlobalID(pkgName, componentID string, data []byte) GlobalID {
	sum := blake3.Sum256(data)
	digest := hex.EncodeToString(sum[:])[:gidHashLen]
	return GlobalID(poolPrefix(pkgName) + "/" + pkgName + "/" + sanitizeSegment(componentID) + "/" + digest)
}

// poolPrefix returns the sharding prefix for a package name, following the
// archive pool convention: "lib" packages shard by their first four
// characters, everything else by the first character.
func poolPrefix(name string) string {
	if strings.HasPrefix(name, "lib") && len(name) > 3 {
		return name[:4]
	}
	if name == "" {
		return "_"
	}
	return name[:1]
}

// sanitizeSegment makes a component id safe to use as a single path
// segment.
func sanitizeSegment(s string) string {
	if s == "" {
		return "_"
	}
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "." || s == ".." {
		return "_"
	}
	return s
}
