package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/huanfeng/xapk-installer/internal/errors"
	"github.com/huanfeng/xapk-installer/pkg/models"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Installer.Kind)
	assert.Equal(t, "adb", cfg.Installer.ADBPath)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Placement.OBBRoot)
	assert.False(t, cfg.Extract.Keep)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xapk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract:
  dir: /tmp/xapk-work
  keep: true
placement:
  obb_root: /mnt/obb
installer:
  kind: adb
  device: emulator-5554
`), 0644))

	t.Setenv("XAPK_INSTALLER_DEVICE", "serial-from-env")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xapk-work", cfg.Extract.Dir)
	assert.True(t, cfg.Extract.Keep)
	assert.Equal(t, "/mnt/obb", cfg.Placement.OBBRoot)
	assert.Equal(t, "adb", cfg.Installer.Kind)
	assert.Equal(t, "serial-from-env", cfg.Installer.Device)
}

func TestLoad_SearchPath(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xapk.yaml"), []byte("placement:\n  obb_root: ./obb\n"), 0644))

	v := viper.New()
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "./obb", cfg.Placement.OBBRoot)
	assert.NotEmpty(t, UsedFile(v))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("installer:\n  kind: sideload\n"), 0644))
	_, err = Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideload")

	require.NoError(t, os.WriteFile(path, []byte("installer:\n  kind: command\n"), 0644))
	_, err = Load(viper.New(), path)
	assert.Error(t, err)
}

func TestSaveTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "xapk.yaml")
	require.NoError(t, SaveTemplate(path, false))

	// The template loads cleanly and matches the defaults.
	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, Default().Installer, cfg.Installer)

	err = SaveTemplate(path, false)
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))
	assert.NoError(t, SaveTemplate(path, true))
}

func TestMarshal(t *testing.T) {
	cfg := Default()
	cfg.Placement.OBBRoot = "/mnt/obb"

	out, err := Marshal(&cfg)
	require.NoError(t, err)

	var back models.Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "/mnt/obb", back.Placement.OBBRoot)
	assert.Contains(t, string(out), "obb_root: /mnt/obb")
}
