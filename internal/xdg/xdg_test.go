package xdg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/programme-lv/cptester/internal/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirsFromEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(root, "etc"))

	d := xdg.New(xdg.App)
	assert.Equal(t, filepath.Join(root, "config", "cptester"), d.ConfigDir())
	assert.Equal(t, filepath.Join(root, "state", "cptester", "results"), d.ResultsDir())
	assert.Equal(t, filepath.Join(root, "cache", "cptester"), d.CacheDir())
	assert.Equal(t, filepath.Join(root, "config", "cptester", "config.toml"), d.ConfigFile())

	system := filepath.Join(root, "etc", "cptester", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(system), 0755))
	require.NoError(t, os.WriteFile(system, nil, 0644))
	assert.Equal(t, system, d.ConfigFile())

	require.NoError(t, d.Ensure(d.ResultsDir()))
	assert.DirExists(t, d.ResultsDir())
}
