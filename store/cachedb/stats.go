package cachedb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"
)

// RunStats is one statistics record of a generator run.
type RunStats struct {
	RunID             string  `yaml:"runId"`
	Suite             string  `yaml:"suite"`
	Section           string  `yaml:"section,omitempty"`
	Arch              string  `yaml:"arch,omitempty"`
	PackagesProcessed int     `yaml:"packagesProcessed"`
	ComponentsKept    int     `yaml:"componentsKept"`
	PackagesIgnored   int     `yaml:"packagesIgnored,omitempty"`
	ProcessingErrors  int     `yaml:"processingErrors,omitempty"`
	DurationSeconds   float64 `yaml:"durationSeconds,omitempty"`
}

// StatsEntry is one stored statistics record with its timestamp key.
type StatsEntry struct {
	Timestamp time.Time
	Stats     RunStats
}

// SetStats appends a statistics record keyed by the given timestamp.
func (c *Cache) SetStats(_ context.Context, ts time.Time, stats RunStats) error {
	v, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding run stats: %w", err)
	}
	return c.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStatistics).Put(encodeTimestamp(ts), v)
	})
}

// GetStats returns all statistics records in timestamp order.
func (c *Cache) GetStats(_ context.Context) ([]StatsEntry, error) {
	var entries []StatsEntry
	err := c.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStatistics).ForEach(func(k, v []byte) error {
			if len(v) == 0 {
				return nil
			}
			var stats RunStats
			if err := yaml.Unmarshal(v, &stats); err != nil {
				return fmt.Errorf("decoding run stats: %w", err)
			}
			entries = append(entries, StatsEntry{
				Timestamp: decodeTimestamp(k),
				Stats:     stats,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
