package xdg

import (
	"os"
	"path/filepath"
)

// App is the directory name used under every XDG base directory.
const App = "cptester"

// Dirs resolves the XDG base directories of one application.
type Dirs struct {
	app        string
	configHome string
	stateHome  string
	cacheHome  string
	runtimeDir string
	configDirs []string
}

// New reads the XDG_* environment variables, falling back to the
// XDG Base Directory defaults.
func New(app string) *Dirs {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
		if home == "" {
			home = os.TempDir()
		}
	}

	d := &Dirs{app: app}
	d.configHome = envOr("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	d.stateHome = envOr("XDG_STATE_HOME", filepath.Join(home, ".local", "state"))
	d.cacheHome = envOr("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	// no replacement is mandated; a per-user temp directory serves
	d.runtimeDir = envOr("XDG_RUNTIME_DIR", filepath.Join(os.TempDir(), app+"-runtime-"+os.Getenv("USER")))

	if dirs := os.Getenv("XDG_CONFIG_DIRS"); dirs != "" {
		d.configDirs = filepath.SplitList(dirs)
	} else {
		d.configDirs = []string{"/etc/xdg"}
	}
	return d
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (d *Dirs) ConfigDir() string  { return filepath.Join(d.configHome, d.app) }
func (d *Dirs) StateDir() string   { return filepath.Join(d.stateHome, d.app) }
func (d *Dirs) CacheDir() string   { return filepath.Join(d.cacheHome, d.app) }
func (d *Dirs) RuntimeDir() string { return filepath.Join(d.runtimeDir, d.app) }

// ResultsDir holds persisted run summaries.
func (d *Dirs) ResultsDir() string { return filepath.Join(d.StateDir(), "results") }

// ConfigFile returns the first existing config.toml in the user and
// system config directories, or the user path when none exists.
func (d *Dirs) ConfigFile() string {
	user := filepath.Join(d.ConfigDir(), "config.toml")
	candidates := []string{user}
	for _, dir := range d.configDirs {
		candidates = append(candidates, filepath.Join(dir, d.app, "config.toml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return user
}

// Ensure creates path with 0755, or 0700 for the runtime directory.
func (d *Dirs) Ensure(path string) error {
	if path == d.RuntimeDir() {
		return os.MkdirAll(path, 0700)
	}
	return os.MkdirAll(path, 0755)
}
