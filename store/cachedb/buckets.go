package cachedb

import (
	"encoding/binary"
	"time"
)

// Bucket names for the five logical tables.
var (
	bucketPackages   = []byte("packages")   // package id -> PackageState encoding
	bucketHints      = []byte("hints")      // package id -> serialized hint records
	bucketMetadata   = []byte("metadata")   // component global id -> serialized document
	bucketStatistics = []byte("statistics") // big-endian timestamp -> serialized run stats
	bucketSuites     = []byte("suites")     // package id -> serialized suite name set
)

// encodeTimestamp converts a time.Time to a fixed-width big-endian byte
// slice so statistics keys sort chronologically. An offset shifts the
// signed nanosecond range into unsigned space to keep pre-1970 ordering
// correct.
func encodeTimestamp(t time.Time) []byte {
	buf := make([]byte, 8)
	ns := t.UnixNano()
	binary.BigEndian.PutUint64(buf, uint64(ns-(-1<<63))) //nolint:gosec // intentional signed->unsigned shift
	return buf
}

// decodeTimestamp converts a big-endian byte slice back to time.Time.
func decodeTimestamp(b []byte) time.Time {
	if len(b) < 8 {
		return time.Time{}
	}
	u := binary.BigEndian.Uint64(b[:8])
	ns := int64(u) + (-1 << 63) //nolint:gosec // intentional unsigned->signed shift
	return time.Unix(0, ns).UTC()
}
