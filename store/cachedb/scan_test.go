package cachedb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metagen "github.com/appstream-tools/metagen"
)

func TestPackagesNotInSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	a := metagen.PackageID("a/1.0/amd64")
	b := metagen.PackageID("b/1.0/amd64")
	d := metagen.PackageID("d/1.0/amd64")
	for _, pkid := range []metagen.PackageID{a, b, d} {
		require.NoError(t, c.SetPackageIgnore(ctx, pkid))
	}

	stale, err := c.PackagesNotInSet(ctx, map[metagen.PackageID]struct{}{
		a: {},
		d: {},
	})
	require.NoError(t, err)
	assert.Equal(t, map[metagen.PackageID]struct{}{b: {}}, stale)

	t.Run("empty current set returns everything", func(t *testing.T) {
		stale, err := c.PackagesNotInSet(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, stale, 3)
	})
}

func TestRemovePackage(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	pkid := metagen.MakePackageID("app", "1.0", "amd64")
	require.NoError(t, c.SetComponents(ctx, pkid, []metagen.Component{
		&fakeComponent{gid: "a/app/one.desktop/aaaaaaaaaaaaaaaa", doc: "doc\n", hints: "hint\n"},
	}))
	require.NoError(t, c.AddPackageToSuite(ctx, pkid, "stable"))

	require.NoError(t, c.RemovePackage(ctx, pkid))

	exists, err := c.PackageExists(ctx, pkid)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.GetHints(ctx, pkid)
	require.ErrorIs(t, err, ErrNotFound)

	in, err := c.PackageInSuite(ctx, pkid, "stable")
	require.NoError(t, err)
	assert.False(t, in)

	// Metadata survives until the orphan sweep.
	md, err := c.MetadataExists(ctx, "a/app/one.desktop/aaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.True(t, md)
}

func TestDeletePackageByName(t *testing.T) {
	ctx := context.Background()

	t.Run("removes all and only matching ids across tables", func(t *testing.T) {
		c := newTestCache(t)

		foo1 := metagen.PackageID("foo/1.0/amd64")
		foo2 := metagen.PackageID("foo/2.0/arm64")
		foobar := metagen.PackageID("foobar/1.0/amd64")
		for _, pkid := range []metagen.PackageID{foo1, foo2, foobar} {
			require.NoError(t, c.SetPackageIgnore(ctx, pkid))
			require.NoError(t, c.SetHints(ctx, pkid, "hint\n"))
			require.NoError(t, c.AddPackageToSuite(ctx, pkid, "stable"))
		}

		removed, err := c.DeletePackageByName(ctx, "foo")
		require.NoError(t, err)
		assert.True(t, removed)

		for _, pkid := range []metagen.PackageID{foo1, foo2} {
			exists, err := c.PackageExists(ctx, pkid)
			require.NoError(t, err)
			assert.False(t, exists, pkid)

			_, err = c.GetHints(ctx, pkid)
			require.ErrorIs(t, err, ErrNotFound)

			in, err := c.PackageInSuite(ctx, pkid, "stable")
			require.NoError(t, err)
			assert.False(t, in)
		}

		// A longer name sharing the prefix is untouched.
		exists, err := c.PackageExists(ctx, foobar)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("returns false when nothing matched", func(t *testing.T) {
		c := newTestCache(t)
		removed, err := c.DeletePackageByName(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestComponentReferences(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	shared := metagen.GlobalID("s/shared/app.desktop/0000000000000000")
	only := metagen.GlobalID("o/only/app.desktop/1111111111111111")

	p1 := metagen.PackageID("shared/1.0/amd64")
	p2 := metagen.PackageID("shared/1.0/arm64")
	require.NoError(t, c.setPackageState(p1, ComponentsState([]metagen.GlobalID{shared, only})))
	require.NoError(t, c.setPackageState(p2, ComponentsState([]metagen.GlobalID{shared})))
	require.NoError(t, c.SetPackageIgnore(ctx, "ig/1.0/amd64"))
	require.NoError(t, c.setPackageState("seen/1.0/amd64", SeenState()))

	refs, err := c.ComponentReferences(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.ElementsMatch(t, []metagen.PackageID{p1, p2}, refs[shared])
	assert.Equal(t, []metagen.PackageID{p1}, refs[only])
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.setPackageState("foo/1.0/amd64",
		ComponentsState([]metagen.GlobalID{"f/foo/a.desktop/1", "f/foo/b.desktop/2"})))
	require.NoError(t, c.SetPackageIgnore(ctx, "foo/2.0/amd64"))
	require.NoError(t, c.SetPackageIgnore(ctx, "other/1.0/amd64"))

	rows, err := c.Info(ctx, "foo")
	require.NoError(t, err)

	got := map[string][]string{}
	for suffix, lines := range rows {
		got[suffix] = lines
	}
	assert.Equal(t, map[string][]string{
		"1.0/amd64": {"f/foo/a.desktop/1", "f/foo/b.desktop/2"},
		"2.0/amd64": {"ignore"},
	}, got)

	t.Run("early break stops the scan", func(t *testing.T) {
		rows, err := c.Info(ctx, "foo")
		require.NoError(t, err)
		count := 0
		for range rows {
			count++
			break
		}
		assert.Equal(t, 1, count)
	})

	t.Run("fails with ErrClosed when not open", func(t *testing.T) {
		closed := New()
		_, err := closed.Info(ctx, "foo")
		require.ErrorIs(t, err, ErrClosed)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Insert out of order; reads must come back chronological.
	require.NoError(t, c.SetStats(ctx, base.Add(2*time.Hour), newRunStats("run-c", 3)))
	require.NoError(t, c.SetStats(ctx, base, newRunStats("run-a", 1)))
	require.NoError(t, c.SetStats(ctx, base.Add(time.Hour), newRunStats("run-b", 2)))

	entries, err := c.GetStats(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "run-a", entries[0].Stats.RunID)
	assert.Equal(t, "run-b", entries[1].Stats.RunID)
	assert.Equal(t, "run-c", entries[2].Stats.RunID)
	assert.Equal(t, base, entries[0].Timestamp)
	assert.Equal(t, 2, entries[1].Stats.PackagesProcessed)
}

func newRunStats(runID string, processed int) RunStats {
	return RunStats{RunID: runID, Suite: "stable", PackagesProcessed: processed}
}

func TestTimestampEncoding(t *testing.T) {
	times := []time.Time{
		time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Unix(0, 0).UTC(),
		time.Date(2026, 8, 30, 10, 30, 0, 123456789, time.UTC),
	}
	for i, ts := range times {
		assert.Equal(t, ts, decodeTimestamp(encodeTimestamp(ts)))
		if i > 0 {
			prev := encodeTimestamp(times[i-1])
			cur := encodeTimestamp(ts)
			assert.Equal(t, -1, compareBytes(prev, cur), "keys must sort chronologically")
		}
	}
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
