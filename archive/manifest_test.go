package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metagen "github.com/appstream-tools/metagen"
)

const testManifest = `suites:
  stable:
    main:
      amd64:
        - name: inkscape
          version: "1.3-1"
          arch: amd64
          filename: pool/main/i/inkscape_1.3-1_amd64.deb
          files:
            - usr/share/applications/inkscape.desktop
            - usr/bin/inkscape
          components:
            - id: org.inkscape.Inkscape
              document: |
                Type: desktop-application
                ID: org.inkscape.Inkscape
        - name: libpng
          version: "1.6-2"
          arch: amd64
          filename: pool/main/libp/libpng_1.6-2_amd64.deb
      arm64:
        - name: inkscape
          version: "1.3-1"
          arch: arm64
          filename: pool/main/i/inkscape_1.3-1_arm64.deb
`

func newTestProvider(t *testing.T) *ManifestProvider {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, manifestFileName), []byte(testManifest), 0o644))
	return NewManifestProvider(root)
}

func TestManifestPackages(t *testing.T) {
	p := newTestProvider(t)

	pkgs, err := p.Packages("stable", "main", "amd64")
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, metagen.PackageInfo{
		Name:     "inkscape",
		Version:  "1.3-1",
		Arch:     "amd64",
		Filename: "pool/main/i/inkscape_1.3-1_amd64.deb",
	}, pkgs[0])

	t.Run("unknown combination yields an empty list", func(t *testing.T) {
		pkgs, err := p.Packages("stable", "main", "riscv64")
		require.NoError(t, err)
		assert.Empty(t, pkgs)

		pkgs, err = p.Packages("unstable", "main", "amd64")
		require.NoError(t, err)
		assert.Empty(t, pkgs)
	})

	t.Run("missing manifest file fails", func(t *testing.T) {
		p := NewManifestProvider(t.TempDir())
		_, err := p.Packages("stable", "main", "amd64")
		require.Error(t, err)
	})

	t.Run("malformed manifest fails", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, manifestFileName), []byte("suites: ["), 0o644))
		p := NewManifestProvider(root)
		_, err := p.Packages("stable", "main", "amd64")
		require.Error(t, err)
	})
}

func TestManifestFileLists(t *testing.T) {
	p := newTestProvider(t)

	lists, err := p.FileLists("stable", "main", "amd64")
	require.NoError(t, err)

	// libpng carries no file list and is omitted.
	require.Len(t, lists, 1)
	assert.Equal(t, []string{
		"usr/share/applications/inkscape.desktop",
		"usr/bin/inkscape",
	}, lists[metagen.MakePackageID("inkscape", "1.3-1", "amd64")])
}

func TestManifestProcess(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)

	t.Run("returns pre-extracted components", func(t *testing.T) {
		cpts, err := p.Process(ctx, metagen.PackageInfo{Name: "inkscape", Version: "1.3-1", Arch: "amd64"})
		require.NoError(t, err)
		require.Len(t, cpts, 1)

		c := cpts[0]
		assert.True(t, c.GlobalID().Valid())
		assert.True(t, strings.HasPrefix(string(c.GlobalID()), "i/inkscape/org.inkscape.Inkscape/"))
		assert.False(t, c.Ignored())

		doc, err := c.Document()
		require.NoError(t, err)
		assert.Contains(t, doc, "ID: org.inkscape.Inkscape")
		assert.Empty(t, c.Hints())
	})

	t.Run("package without components yields none", func(t *testing.T) {
		cpts, err := p.Process(ctx, metagen.PackageInfo{Name: "libpng", Version: "1.6-2", Arch: "amd64"})
		require.NoError(t, err)
		assert.Empty(t, cpts)
	})

	t.Run("version mismatch yields none", func(t *testing.T) {
		cpts, err := p.Process(ctx, metagen.PackageInfo{Name: "inkscape", Version: "9.9-9", Arch: "amd64"})
		require.NoError(t, err)
		assert.Empty(t, cpts)
	})
}
