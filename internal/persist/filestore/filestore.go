// Package filestore keeps run summaries as zstd compressed JSON files.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/cptester/api"
)

const ext = ".json.zst"

type FileStore struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Entry is the listing line of one stored run.
type Entry struct {
	RunUuid       string
	TestType      api.TestType
	Total         int
	Passed        int
	OverallPassed bool
	StartedAt     time.Time
}

func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &FileStore{dir: dir, enc: enc, dec: dec}, nil
}

func (fs *FileStore) Dir() string { return fs.dir }

func (fs *FileStore) Close() {
	fs.enc.Close()
	fs.dec.Close()
}

func (fs *FileStore) path(runUuid string) string {
	return filepath.Join(fs.dir, runUuid+ext)
}

// Save writes the summary atomically, replacing an earlier one with the
// same run uuid.
func (fs *FileStore) Save(_ context.Context, summary api.TestSummary) error {
	if _, err := uuid.Parse(summary.RunUuid); err != nil {
		return fmt.Errorf("invalid run uuid %q: %w", summary.RunUuid, err)
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tmp, err := os.CreateTemp(fs.dir, summary.RunUuid+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(fs.enc.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return os.Rename(tmp.Name(), fs.path(summary.RunUuid))
}

func (fs *FileStore) Load(runUuid string) (*api.TestSummary, error) {
	if _, err := uuid.Parse(runUuid); err != nil {
		return nil, fmt.Errorf("invalid run uuid %q: %w", runUuid, err)
	}
	raw, err := os.ReadFile(fs.path(runUuid))
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runUuid, err)
	}
	data, err := fs.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress run %s: %w", runUuid, err)
	}
	var s api.TestSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse run %s: %w", runUuid, err)
	}
	return &s, nil
}

// List returns the stored runs, newest first. Unreadable files are
// skipped.
func (fs *FileStore) List() ([]Entry, error) {
	files, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	var entries []Entry
	for _, f := range files {
		name, ok := strings.CutSuffix(f.Name(), ext)
		if !ok || f.IsDir() {
			continue
		}
		s, err := fs.Load(name)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			RunUuid:       s.RunUuid,
			TestType:      s.TestType,
			Total:         s.Total,
			Passed:        s.Passed,
			OverallPassed: s.OverallPassed,
			StartedAt:     s.StartedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})
	return entries, nil
}
