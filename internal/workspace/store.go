package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/cptester/api"
)

const zstdExt = ".zst"

// Store persists per-test inputs and outputs of one test type.
// Files of different tests never collide, so it is safe for concurrent use.
type Store struct {
	layout   Layout
	tt       api.TestType
	compress bool

	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewStore(layout Layout, tt api.TestType, compress bool) (*Store, error) {
	if err := layout.Ensure(tt); err != nil {
		return nil, err
	}
	s := &Store{layout: layout, tt: tt, compress: compress}

	var err error
	s.dec, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	if compress {
		s.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Layout() Layout { return s.layout }

func (s *Store) SaveInput(n int, data []byte) error {
	return s.write(s.layout.InputPath(s.tt, n), data)
}

func (s *Store) SaveOutput(role api.Role, n int, data []byte) error {
	return s.write(s.layout.OutputPath(s.tt, role, n), data)
}

func (s *Store) ReadInput(n int) ([]byte, error) {
	return s.read(s.layout.InputPath(s.tt, n))
}

func (s *Store) ReadOutput(role api.Role, n int) ([]byte, error) {
	return s.read(s.layout.OutputPath(s.tt, role, n))
}

// Clear removes inputs and outputs left over from a previous run.
func (s *Store) Clear() error {
	for _, dir := range []string{s.layout.InputsDir(s.tt), s.layout.OutputsDir(s.tt)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !(strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".txt"+zstdExt)) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) Close() {
	if s.enc != nil {
		_ = s.enc.Close()
	}
	s.dec.Close()
}

func (s *Store) write(path string, data []byte) error {
	if s.compress {
		path += zstdExt
		data = s.enc.EncodeAll(data, nil)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *Store) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	compressed, zerr := os.ReadFile(path + zstdExt)
	if zerr != nil {
		return nil, err
	}
	return s.dec.DecodeAll(compressed, nil)
}
