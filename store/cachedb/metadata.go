package cachedb

import (
	"context"
	"strings"

	"go.etcd.io/bbolt"

	metagen "github.com/appstream-tools/metagen"
)

// MetadataExists checks whether a document is stored for the global id,
// without copying the value out.
func (c *Cache) MetadataExists(_ context.Context, gid metagen.GlobalID) (bool, error) {
	var exists bool
	err := c.view(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketMetadata).Get([]byte(gid)) != nil
		return nil
	})
	return exists, err
}

// GetMetadata returns the stored document for the global id, or
// ErrNotFound.
func (c *Cache) GetMetadata(_ context.Context, gid metagen.GlobalID) (string, error) {
	var doc string
	err := c.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMetadata).Get([]byte(gid))
		if v == nil {
			return ErrNotFound
		}
		doc = string(v)
		return nil
	})
	return doc, err
}

// SetMetadata stores the document under the global id. Unconditional
// upsert, last writer wins.
func (c *Cache) SetMetadata(_ context.Context, gid metagen.GlobalID, doc string) error {
	return c.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(gid), []byte(doc))
	})
}

// DeleteMetadata removes the document for the global id. Removing an
// absent id is a no-op.
func (c *Cache) DeleteMetadata(_ context.Context, gid metagen.GlobalID) error {
	return c.update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Delete([]byte(gid))
	})
}

// GetMetadataForPackage resolves the package's global-id list and
// concatenates each referenced document in list order. Ids with no stored
// document are skipped, tolerating partial writes from a prior failed run.
// Returns "" when the package has no component list.
func (c *Cache) GetMetadataForPackage(ctx context.Context, pkid metagen.PackageID) (string, error) {
	gids, err := c.GetComponentIDs(ctx, pkid)
	if err != nil {
		return "", err
	}
	if len(gids) == 0 {
		return "", nil
	}

	var sb strings.Builder
	err = c.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		for _, gid := range gids {
			if v := bucket.Get([]byte(gid)); v != nil {
				sb.Write(v)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// MetadataIDs returns every global id in the metadata table. Used by the
// orphan sweep.
func (c *Cache) MetadataIDs(_ context.Context) ([]metagen.GlobalID, error) {
	var gids []metagen.GlobalID
	err := c.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).ForEach(func(k, _ []byte) error {
			gids = append(gids, metagen.GlobalID(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return gids, nil
}
