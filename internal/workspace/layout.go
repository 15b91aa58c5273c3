package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/lang"
)

const (
	inputsSubdir  = "inputs"
	outputsSubdir = "outputs"
)

// Layout resolves paths inside a workspace:
//
//	<root>/{comparator|validator|benchmarker}/
//	  {role}.{ext}
//	  inputs/input_{n}.txt
//	  outputs/{role}_output_{n}.txt
type Layout struct {
	Root string
}

// Abs returns the layout with its root resolved against the working
// directory. Validator argument paths and java class paths are only
// valid from any cwd when absolute.
func (l Layout) Abs() (Layout, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return l, fmt.Errorf("failed to resolve workspace %s: %w", l.Root, err)
	}
	return Layout{Root: root}, nil
}

func (l Layout) Dir(tt api.TestType) string {
	return filepath.Join(l.Root, string(tt))
}

func (l Layout) InputsDir(tt api.TestType) string {
	return filepath.Join(l.Dir(tt), inputsSubdir)
}

func (l Layout) OutputsDir(tt api.TestType) string {
	return filepath.Join(l.Dir(tt), outputsSubdir)
}

func (l Layout) InputPath(tt api.TestType, n int) string {
	return filepath.Join(l.InputsDir(tt), fmt.Sprintf("input_%d.txt", n))
}

func (l Layout) OutputPath(tt api.TestType, role api.Role, n int) string {
	return filepath.Join(l.OutputsDir(tt), fmt.Sprintf("%s_output_%d.txt", role, n))
}

func (l Layout) SourcePath(tt api.TestType, role api.Role, lg lang.Language) string {
	return filepath.Join(l.Dir(tt), string(role)+lg.Extension())
}

// Ensure creates the test type directory with its inputs and outputs.
func (l Layout) Ensure(tt api.TestType) error {
	for _, dir := range []string{l.InputsDir(tt), l.OutputsDir(tt)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSource stores code for a role and returns its path.
func (l Layout) WriteSource(tt api.TestType, role api.Role, lg lang.Language, code string) (string, error) {
	if err := os.MkdirAll(l.Dir(tt), 0755); err != nil {
		return "", err
	}
	path := l.SourcePath(tt, role, lg)
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s source: %w", role, err)
	}
	return path, nil
}

// Discover finds the source of every role the test type needs. When a
// role has sources in several languages the most recently modified wins.
func (l Layout) Discover(tt api.TestType) (map[api.Role]compile.SourceFile, error) {
	roles := l.roles(tt)
	found := make(map[api.Role]compile.SourceFile, len(roles))
	var missing []string
	for _, role := range roles {
		matches, err := filepath.Glob(filepath.Join(l.Dir(tt), string(role)+".*"))
		if err != nil {
			return nil, err
		}
		var best *compile.SourceFile
		for _, m := range matches {
			if lang.Detect(m) == lang.Unknown {
				continue
			}
			src, err := compile.NewSourceFile(role, m)
			if err != nil {
				continue
			}
			if best == nil || src.ModTime.After(best.ModTime) {
				best = &src
			}
		}
		if best == nil {
			missing = append(missing, string(role))
			continue
		}
		found[role] = *best
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing %s sources in %s: %s", tt, l.Dir(tt), strings.Join(missing, ", "))
	}
	return found, nil
}

func (l Layout) roles(tt api.TestType) []api.Role {
	roles := api.RolesFor(tt).ToSlice()
	slices.Sort(roles)
	return roles
}
