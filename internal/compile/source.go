package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/lang"
)

// SourceFile is a role's source code on disk
type SourceFile struct {
	Role     api.Role
	Language lang.Language
	Path     string
	ModTime  time.Time
}

// NewSourceFile stats the file and detects its language.
func NewSourceFile(role api.Role, path string) (SourceFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to stat source %s: %w", path, err)
	}
	l := lang.DetectFile(abs)
	if l == lang.Unknown {
		return SourceFile{}, fmt.Errorf("unsupported language of %s", filepath.Base(path))
	}
	return SourceFile{
		Role:     role,
		Language: l,
		Path:     abs,
		ModTime:  info.ModTime(),
	}, nil
}

func (s SourceFile) Name() string { return filepath.Base(s.Path) }

// Artifact is a cached executable or bytecode with its invocation
type Artifact struct {
	Role       api.Role      `json:"role"`
	Language   lang.Language `json:"language"`
	SourcePath string        `json:"source_path"`
	SourceHash string        `json:"source_sha256"`

	// Executable, class file or script that must exist for the artifact to be valid
	Path    string   `json:"path"`
	Command []string `json:"command"`
	Dir     string   `json:"dir,omitempty"`

	CompiledAt time.Time `json:"compiled_at"`
}

// Valid reports whether the artifact may be reused for src with the given content hash.
func (a *Artifact) Valid(src SourceFile, hash string) bool {
	if a == nil {
		return false
	}
	if _, err := os.Stat(a.Path); err != nil {
		return false
	}
	if src.ModTime.After(a.CompiledAt) {
		return false
	}
	return a.SourceHash == hash
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func manifestPath(outDir string, role api.Role) string {
	return filepath.Join(outDir, string(role)+".build.json")
}

func readManifest(outDir string, role api.Role) (*Artifact, error) {
	data, err := os.ReadFile(manifestPath(outDir, role))
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse build manifest: %w", err)
	}
	return &a, nil
}

func writeManifest(outDir string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal build manifest: %w", err)
	}
	return os.WriteFile(manifestPath(outDir, a.Role), data, 0644)
}
