package gc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metagen "github.com/appstream-tools/metagen"
	"github.com/appstream-tools/metagen/media"
	"github.com/appstream-tools/metagen/store/cachedb"
)

type stubComponent struct {
	gid metagen.GlobalID
}

func (c *stubComponent) GlobalID() metagen.GlobalID { return c.gid }
func (c *stubComponent) Ignored() bool              { return false }
func (c *stubComponent) Document() (string, error)  { return "Type: desktop-application\n", nil }
func (c *stubComponent) Hints() string              { return "" }

func newTestEnv(t *testing.T) (*cachedb.Cache, *media.Dir) {
	t.Helper()
	c := cachedb.New()
	require.NoError(t, c.Open(t.TempDir()))
	t.Cleanup(func() { _ = c.Close() })

	m, err := media.New(t.TempDir())
	require.NoError(t, err)
	return c, m
}

func gidFor(name, component string) metagen.GlobalID {
	return metagen.GlobalID("p/" + name + "/" + component + "/0123456789abcdef")
}

// seedPackage records a processed package with the given components and
// writes a media file for each one.
func seedPackage(t *testing.T, c *cachedb.Cache, m *media.Dir, pkid metagen.PackageID, gids ...metagen.GlobalID) {
	t.Helper()
	comps := make([]metagen.Component, 0, len(gids))
	for _, gid := range gids {
		comps = append(comps, &stubComponent{gid: gid})
	}
	require.NoError(t, c.SetComponents(context.Background(), pkid, comps))
	for _, gid := range gids {
		seedMedia(t, m, "main", gid)
	}
}

func seedMedia(t *testing.T, m *media.Dir, section string, gid metagen.GlobalID) {
	t.Helper()
	dir := m.ComponentPath(section, gid)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.png"), []byte("png"), 0o644))
}

func TestRunExpiresStalePackages(t *testing.T) {
	ctx := context.Background()
	c, m := newTestEnv(t)

	a := metagen.MakePackageID("alpha", "1.0", "amd64")
	b := metagen.MakePackageID("beta", "1.0", "amd64")
	d := metagen.MakePackageID("delta", "1.0", "amd64")
	gidA := gidFor("alpha", "alpha.desktop")
	gidB := gidFor("beta", "beta.desktop")
	gidD := gidFor("delta", "delta.desktop")
	seedPackage(t, c, m, a, gidA)
	seedPackage(t, c, m, b, gidB)
	seedPackage(t, c, m, d, gidD)

	result := New(c, m).Run(ctx, map[metagen.PackageID]struct{}{
		a: {},
		d: {},
	})

	assert.Equal(t, 1, result.PackagesExpired)
	assert.Equal(t, 1, result.ComponentsRemoved)
	assert.Empty(t, result.Errors)

	exists, err := c.PackageExists(ctx, b)
	require.NoError(t, err)
	assert.False(t, exists)

	md, err := c.MetadataExists(ctx, gidB)
	require.NoError(t, err)
	assert.False(t, md, "expired package's metadata must be swept")
	assert.NoDirExists(t, m.ComponentPath("main", gidB))

	for _, gid := range []metagen.GlobalID{gidA, gidD} {
		md, err := c.MetadataExists(ctx, gid)
		require.NoError(t, err)
		assert.True(t, md)
		assert.DirExists(t, m.ComponentPath("main", gid))
	}
}

func TestRunKeepsSharedComponents(t *testing.T) {
	ctx := context.Background()
	c, m := newTestEnv(t)

	shared := gidFor("app", "app.desktop")
	only := gidFor("app", "extra.desktop")
	p1 := metagen.MakePackageID("app", "1.0", "amd64")
	p2 := metagen.MakePackageID("app", "1.0", "arm64")
	seedPackage(t, c, m, p1, shared)
	seedPackage(t, c, m, p2, shared, only)

	result := New(c, m).Run(ctx, map[metagen.PackageID]struct{}{p1: {}})

	assert.Equal(t, 1, result.PackagesExpired)
	assert.Equal(t, 1, result.ComponentsRemoved)

	md, err := c.MetadataExists(ctx, shared)
	require.NoError(t, err)
	assert.True(t, md, "a component still referenced must survive")
	assert.DirExists(t, m.ComponentPath("main", shared))

	md, err = c.MetadataExists(ctx, only)
	require.NoError(t, err)
	assert.False(t, md)
	assert.NoDirExists(t, m.ComponentPath("main", only))
}

func TestRemoveOrphanedMedia(t *testing.T) {
	ctx := context.Background()
	c, m := newTestEnv(t)

	kept := gidFor("kept", "kept.desktop")
	p := metagen.MakePackageID("kept", "1.0", "amd64")
	seedPackage(t, c, m, p, kept)

	// On disk but unknown to the database, e.g. left behind by a crash.
	orphan := gidFor("ghost", "ghost.desktop")
	seedMedia(t, m, "contrib", orphan)

	result := New(c, m).Run(ctx, map[metagen.PackageID]struct{}{p: {}})

	assert.Equal(t, 1, result.MediaRemoved)
	assert.Empty(t, result.Errors)
	assert.NoDirExists(t, m.ComponentPath("contrib", orphan))
	assert.DirExists(t, m.ComponentPath("main", kept))

	// Emptied ancestors inside the section are pruned.
	assert.NoDirExists(t, filepath.Join(m.Root(), "contrib", "p", "ghost"))
}

func TestRunWithoutMediaTree(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestEnv(t)

	p := metagen.MakePackageID("app", "1.0", "amd64")
	gid := gidFor("app", "app.desktop")
	require.NoError(t, c.SetComponents(ctx, p, []metagen.Component{&stubComponent{gid: gid}}))

	result := New(c, nil).Run(ctx, map[metagen.PackageID]struct{}{})

	assert.Equal(t, 1, result.PackagesExpired)
	assert.Equal(t, 1, result.ComponentsRemoved)
	assert.Equal(t, 0, result.MediaRemoved)
	assert.Empty(t, result.Errors)
}

func TestSweepsAreRerunnable(t *testing.T) {
	ctx := context.Background()
	c, m := newTestEnv(t)

	p := metagen.MakePackageID("app", "1.0", "amd64")
	seedPackage(t, c, m, p, gidFor("app", "app.desktop"))

	s := New(c, m)
	first := s.Run(ctx, nil)
	assert.Equal(t, 1, first.PackagesExpired)

	second := s.Run(ctx, nil)
	assert.Equal(t, 0, second.PackagesExpired)
	assert.Equal(t, 0, second.ComponentsRemoved)
	assert.Equal(t, 0, second.MediaRemoved)
	assert.Empty(t, second.Errors)
}
