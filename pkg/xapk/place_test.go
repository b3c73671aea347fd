package xapk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/huanfeng/xapk-installer/internal/errors"
)

func writeAsset(t *testing.T, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "main.1.com.example.game.obb")
	require.NoError(t, os.WriteFile(p, content, 0644))
	return p
}

func TestPlacer_Target(t *testing.T) {
	p := NewPlacer("/sdcard/Android/obb", nil)

	target, err := p.Target("com.example.game", "main.1.com.example.game.obb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/sdcard/Android/obb", "com.example.game"), target.DestinationDirectory)
	assert.Equal(t, "main.1.com.example.game.obb", target.DestinationFileName)
	assert.Equal(t, filepath.Join("/sdcard/Android/obb", "com.example.game", "main.1.com.example.game.obb"), target.Path())

	_, err = p.Target("game", "main.obb")
	assert.Error(t, err)
	_, err = p.Target("com.example.game", "../main.obb")
	assert.Error(t, err)
	_, err = p.Target("com.example.game", "..")
	assert.Error(t, err)

	_, err = NewPlacer("", nil).Target("com.example.game", "main.obb")
	assert.Error(t, err)
}

func TestPlacer_Place(t *testing.T) {
	content := []byte("expansion file contents")
	src := writeAsset(t, content)
	root := filepath.Join(t.TempDir(), "obb")

	dest, err := NewPlacer(root, nil).Place(src, "com.example.game", "main.1.com.example.game.obb")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "com.example.game", "main.1.com.example.game.obb"), dest)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Source stays so placement can be retried.
	assert.FileExists(t, src)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestPlacer_PlaceIdempotent(t *testing.T) {
	content := []byte("v1 contents that are long enough")
	src := writeAsset(t, content)
	root := t.TempDir()
	p := NewPlacer(root, nil)

	first, err := p.Place(src, "com.example.game", "main.1.com.example.game.obb")
	require.NoError(t, err)
	second, err := p.Place(src, "com.example.game", "main.1.com.example.game.obb")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// No temporary files left behind.
	entries, err := os.ReadDir(filepath.Dir(second))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPlacer_PlaceReplacesLongerFile(t *testing.T) {
	root := t.TempDir()
	destDir := filepath.Join(root, "com.example.game")
	require.NoError(t, os.MkdirAll(destDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "main.1.com.example.game.obb"), []byte("a much longer stale file from before"), 0644))

	src := writeAsset(t, []byte("new"))
	dest, err := NewPlacer(root, nil).Place(src, "com.example.game", "main.1.com.example.game.obb")
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestPlacer_PlaceErrors(t *testing.T) {
	root := t.TempDir()

	_, err := NewPlacer(root, nil).Place(filepath.Join(root, "missing.obb"), "com.example.game", "missing.obb")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrPlacement)

	// OBB root is a file, so the package directory cannot be created.
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err = NewPlacer(blocker, nil).Place(writeAsset(t, []byte("x")), "com.example.game", "main.obb")
	require.Error(t, err)
	assert.Equal(t, xerrors.ErrorTypePlacement, xerrors.TypeOf(err))

	_, err = NewPlacer(root, nil).Place(writeAsset(t, []byte("x")), "bad", "main.obb")
	assert.ErrorIs(t, err, xerrors.ErrPlacement)
}
