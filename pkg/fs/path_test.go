package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := GetUserPath()
	require.NoError(t, err)

	got, err := ExpandPath("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = ExpandPath("~/secretaria/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "secretaria", "data"), got)

	got, err = ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ExpandPath("relative")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	assert.False(t, FileExists(path))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(""))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, FileExists(path))
}

func TestExpandPath_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SECRETARIA_TEST_ROOT", dir)

	got, err := ExpandPath("$SECRETARIA_TEST_ROOT/db/app.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "db", "app.db"), got)

	got, err = ExpandPath("${SECRETARIA_TEST_ROOT}/keys")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "keys"), got)
}

func TestGetUserConfigPath(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG lookup applies to unix only")
	}
	home, err := GetUserPath()
	require.NoError(t, err)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	got, err := GetUserConfigPath("secretaria")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "secretaria"), got)

	// relative values are ignored
	t.Setenv("XDG_CONFIG_HOME", "relative/conf")
	got, err = GetUserConfigPath("secretaria")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "secretaria"), got)
}
