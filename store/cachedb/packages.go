package cachedb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	metagen "github.com/appstream-tools/metagen"
)

// SetComponents records the outcome of processing one package. An empty
// component set marks the package as permanently ignored. Otherwise every
// component without an ignore-reason is written to the metadata table;
// generating a document can itself disqualify a component, so the
// ignore-reason is checked again after generation and disqualified
// documents are not kept. Hints are persisted regardless. The package row
// ends up as the kept id list, the seen sentinel when only hints were
// produced, or stays unset when neither exists.
func (c *Cache) SetComponents(ctx context.Context, pkid metagen.PackageID, cpts []metagen.Component) error {
	if len(cpts) == 0 {
		return c.SetPackageIgnore(ctx, pkid)
	}

	var gids []metagen.GlobalID
	var hints strings.Builder
	for _, cpt := range cpts {
		if !cpt.Ignored() {
			gid := cpt.GlobalID()
			exists, err := c.MetadataExists(ctx, gid)
			if err != nil {
				return err
			}
			if exists {
				gids = append(gids, gid)
			} else {
				doc, err := cpt.Document()
				if err != nil {
					c.logger.Warn("document generation failed", "pkid", pkid, "gid", gid, "error", err)
				} else if !cpt.Ignored() {
					if err := c.SetMetadata(ctx, gid, doc); err != nil {
						return err
					}
					gids = append(gids, gid)
				}
			}
		}

		hints.WriteString(cpt.Hints())
	}

	if err := c.SetHints(ctx, pkid, hints.String()); err != nil {
		return err
	}

	if len(gids) > 0 {
		return c.setPackageState(pkid, ComponentsState(gids))
	}
	if hints.Len() > 0 {
		// Mark the package as seen so the next run does not treat it
		// as unprocessed and rediscover the same diagnostics.
		return c.setPackageState(pkid, SeenState())
	}
	return nil
}

func (c *Cache) setPackageState(pkid metagen.PackageID, state PackageState) error {
	return c.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPackages).Put([]byte(pkid), state.encode())
	})
}

// GetPackageState returns the stored state for the package id, or
// ErrNotFound.
func (c *Cache) GetPackageState(_ context.Context, pkid metagen.PackageID) (PackageState, error) {
	var state PackageState
	err := c.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketPackages).Get([]byte(pkid))
		if v == nil {
			return ErrNotFound
		}
		state = decodeState(v)
		return nil
	})
	return state, err
}

// GetComponentIDs returns the package's component global ids, or nil when
// the package is absent or recorded with a sentinel value.
func (c *Cache) GetComponentIDs(ctx context.Context, pkid metagen.PackageID) ([]metagen.GlobalID, error) {
	state, err := c.GetPackageState(ctx, pkid)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if state.Kind != StateComponents {
		return nil, nil
	}
	return state.Components, nil
}

// PackageExists reports whether any record is stored for the package id.
func (c *Cache) PackageExists(_ context.Context, pkid metagen.PackageID) (bool, error) {
	var exists bool
	err := c.view(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketPackages).Get([]byte(pkid)) != nil
		return nil
	})
	return exists, err
}

// IsIgnored reports whether the package is recorded with the ignore
// sentinel.
func (c *Cache) IsIgnored(ctx context.Context, pkid metagen.PackageID) (bool, error) {
	state, err := c.GetPackageState(ctx, pkid)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state.Kind == StateIgnored, nil
}

// SetPackageIgnore force-sets the ignore sentinel for the package. Used by
// prepopulation heuristics that classify a package as uninteresting
// without running extraction.
func (c *Cache) SetPackageIgnore(_ context.Context, pkid metagen.PackageID) error {
	return c.setPackageState(pkid, IgnoredState())
}

// GetHints returns the stored hints document for the package, or
// ErrNotFound.
func (c *Cache) GetHints(_ context.Context, pkid metagen.PackageID) (string, error) {
	var hints string
	err := c.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketHints).Get([]byte(pkid))
		if v == nil {
			return ErrNotFound
		}
		hints = string(v)
		return nil
	})
	return hints, err
}

// SetHints stores the hints document for the package.
func (c *Cache) SetHints(_ context.Context, pkid metagen.PackageID, hints string) error {
	return c.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketHints).Put([]byte(pkid), []byte(hints))
	})
}

// PackageInSuite reports whether the package's suite set contains the
// given suite. An absent row reads as the empty set.
func (c *Cache) PackageInSuite(_ context.Context, pkid metagen.PackageID, suite string) (bool, error) {
	var found bool
	err := c.view(func(tx *bbolt.Tx) error {
		suites, err := decodeSuiteSet(tx.Bucket(bucketSuites).Get([]byte(pkid)))
		if err != nil {
			return err
		}
		found = slices.Contains(suites, suite)
		return nil
	})
	return found, err
}

// AddPackageToSuite adds the suite to the package's suite set.
func (c *Cache) AddPackageToSuite(_ context.Context, pkid metagen.PackageID, suite string) error {
	return c.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSuites)
		suites, err := decodeSuiteSet(bucket.Get([]byte(pkid)))
		if err != nil {
			return err
		}
		if slices.Contains(suites, suite) {
			return nil
		}
		suites = append(suites, suite)
		slices.Sort(suites)
		v, err := encodeSuiteSet(suites)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(pkid), v)
	})
}

// RemovePackageFromSuite removes the suite from the package's suite set.
// Removing the last member stores an empty serialized set rather than
// deleting the row; callers relying on suite membership treat both the
// same way.
func (c *Cache) RemovePackageFromSuite(_ context.Context, pkid metagen.PackageID, suite string) error {
	return c.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSuites)
		v := bucket.Get([]byte(pkid))
		if v == nil {
			return nil
		}
		suites, err := decodeSuiteSet(v)
		if err != nil {
			return err
		}
		idx := slices.Index(suites, suite)
		if idx < 0 {
			return nil
		}
		suites = slices.Delete(suites, idx, idx+1)
		out, err := encodeSuiteSet(suites)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(pkid), out)
	})
}

func encodeSuiteSet(suites []string) ([]byte, error) {
	if suites == nil {
		suites = []string{}
	}
	v, err := yaml.Marshal(suites)
	if err != nil {
		return nil, fmt.Errorf("encoding suite set: %w", err)
	}
	return v, nil
}

func decodeSuiteSet(v []byte) ([]string, error) {
	if len(v) == 0 {
		return nil, nil
	}
	var suites []string
	if err := yaml.Unmarshal(v, &suites); err != nil {
		return nil, fmt.Errorf("decoding suite set: %w", err)
	}
	return suites, nil
}
