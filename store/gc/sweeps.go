package gc

import (
	"context"
	"fmt"

	metagen "github.com/appstream-tools/metagen"
)

// ExpirePackages removes the packages, hints and suites rows of every
// cached package that is no longer in the current archive snapshot. The
// metadata and media the expired packages referenced are left for the
// orphan sweeps.
func (s *Sweeper) ExpirePackages(ctx context.Context, current map[metagen.PackageID]struct{}, result *Result) {
	s.logger.Debug("sweep: expire stale packages")

	stale, err := s.cache.PackagesNotInSet(ctx, current)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scan stale packages: %v", err))
		s.logger.Error("failed to scan for stale packages", "error", err)
		return
	}

	for pkid := range stale {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.cache.RemovePackage(ctx, pkid); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("remove package %s: %v", pkid, err))
			s.logger.Error("failed to remove stale package", "pkid", pkid, "error", err)
			continue
		}
		result.PackagesExpired++
	}
}

// RemoveOrphanedComponents deletes metadata records, and their cached
// media, for every global id no surviving package references. A component
// referenced by at least one package is never touched.
func (s *Sweeper) RemoveOrphanedComponents(ctx context.Context, result *Result) {
	s.logger.Debug("sweep: orphaned components")

	refs, err := s.cache.ComponentReferences(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("build reverse index: %v", err))
		s.logger.Error("failed to build component reverse index", "error", err)
		return
	}

	gids, err := s.cache.MetadataIDs(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scan metadata: %v", err))
		s.logger.Error("failed to scan metadata table", "error", err)
		return
	}

	for _, gid := range gids {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if len(refs[gid]) > 0 {
			continue
		}

		s.removeMedia(gid, result)

		if err := s.cache.DeleteMetadata(ctx, gid); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete metadata %s: %v", gid, err))
			s.logger.Error("failed to delete orphaned metadata", "gid", gid, "error", err)
			continue
		}
		result.ComponentsRemoved++
	}
}

// RemoveOrphanedMedia walks the media tree, independent of the database's
// view, and removes every component directory whose global id has no
// metadata record.
func (s *Sweeper) RemoveOrphanedMedia(ctx context.Context, result *Result) {
	if s.media == nil {
		return
	}
	s.logger.Debug("sweep: orphaned media")

	var orphans []metagen.GlobalID
	err := s.media.WalkComponentIDs(func(gid metagen.GlobalID) error {
		exists, err := s.cache.MetadataExists(ctx, gid)
		if err != nil {
			return err
		}
		if !exists {
			orphans = append(orphans, gid)
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("walk media tree: %v", err))
		s.logger.Error("failed to walk media tree", "error", err)
		return
	}

	for _, gid := range orphans {
		select {
		case <-ctx.Done():
			return
		default:
		}

		removed, err := s.media.RemoveComponent(gid)
		if err != nil {
			// Filesystem errors here are non-fatal to the sweep;
			// a missing directory is an acceptable end state.
			result.Errors = append(result.Errors, fmt.Sprintf("remove media %s: %v", gid, err))
			s.logger.Warn("failed to remove orphaned media", "gid", gid, "error", err)
			continue
		}
		if removed {
			s.logger.Info("removed orphaned media", "gid", gid)
			result.MediaRemoved++
		}
	}
}

// removeMedia drops the cached media for a global id, logging failures
// without aborting the sweep.
func (s *Sweeper) removeMedia(gid metagen.GlobalID, result *Result) {
	if s.media == nil {
		return
	}
	removed, err := s.media.RemoveComponent(gid)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("remove media %s: %v", gid, err))
		s.logger.Warn("failed to remove media", "gid", gid, "error", err)
		return
	}
	if removed {
		s.logger.Info("expired media", "gid", gid)
		result.MediaRemoved++
	}
}
