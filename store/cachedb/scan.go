package cachedb

import (
	"bytes"
	"context"
	"iter"
	"strings"

	"go.etcd.io/bbolt"

	metagen "github.com/appstream-tools/metagen"
)

// PackagesNotInSet scans the packages table and returns every id that is
// not in the given set. Used by the expiry sweep to find packages that
// vanished from the archive snapshot.
func (c *Cache) PackagesNotInSet(_ context.Context, current map[metagen.PackageID]struct{}) (map[metagen.PackageID]struct{}, error) {
	stale := make(map[metagen.PackageID]struct{})
	err := c.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPackages).ForEach(func(k, _ []byte) error {
			pkid := metagen.PackageID(k)
			if _, ok := current[pkid]; !ok {
				stale[pkid] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// RemovePackage deletes the package's rows from the packages, hints and
// suites tables. Metadata and media are left for the orphan sweep.
func (c *Cache) RemovePackage(_ context.Context, pkid metagen.PackageID) error {
	c.logger.Debug("dropping package", "pkid", pkid)
	return c.update(func(tx *bbolt.Tx) error {
		key := []byte(pkid)
		if err := tx.Bucket(bucketPackages).Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHints).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketSuites).Delete(key)
	})
}

// DeletePackageByName deletes every row whose package id starts with
// "<name>/" across the packages, hints and suites tables, covering all
// versions and architectures of the package. Returns whether anything was
// removed.
func (c *Cache) DeletePackageByName(_ context.Context, name string) (bool, error) {
	prefix := []byte(name + "/")
	var removed bool
	err := c.update(func(tx *bbolt.Tx) error {
		for _, bucketName := range [][]byte{bucketPackages, bucketHints, bucketSuites} {
			cursor := tx.Bucket(bucketName).Cursor()
			for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
				if err := cursor.Delete(); err != nil {
					return err
				}
				removed = true
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ComponentReferences scans the packages table, skipping sentinel rows,
// and returns the reverse index from global id to the package ids that
// reference it.
func (c *Cache) ComponentReferences(_ context.Context) (map[metagen.GlobalID][]metagen.PackageID, error) {
	refs := make(map[metagen.GlobalID][]metagen.PackageID)
	err := c.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPackages).ForEach(func(k, v []byte) error {
			state := decodeState(v)
			if state.Kind != StateComponents {
				return nil
			}
			pkid := metagen.PackageID(k)
			for _, gid := range state.Components {
				refs[gid] = append(refs[gid], pkid)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Info returns a sequence over the packages-table rows matching the given
// package name, yielding for each one the id remainder after the name
// prefix and the stored value split into lines. The scan runs inside one
// read transaction per invocation of the sequence; it is finite and
// restartable only by calling Info again.
func (c *Cache) Info(_ context.Context, name string) (iter.Seq2[string, []string], error) {
	if c.db == nil {
		return nil, ErrClosed
	}
	prefix := []byte(name + "/")
	db := c.db
	return func(yield func(string, []string) bool) {
		_ = db.View(func(tx *bbolt.Tx) error {
			cursor := tx.Bucket(bucketPackages).Cursor()
			for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
				suffix := string(k[len(prefix):])
				if !yield(suffix, strings.Split(string(v), "\n")) {
					return nil
				}
			}
			return nil
		})
	}, nil
}
