package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/persist/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(started time.Time, passed bool) api.TestSummary {
	return api.TestSummary{
		RunUuid:       uuid.NewString(),
		TestType:      api.Comparator,
		Total:         2,
		Passed:        1,
		Failed:        1,
		OverallPassed: passed,
		StartedAt:     started.UTC(),
		Tests: []api.TestCase{
			{TestNumber: 1, Passed: true, Verdict: api.VerdictMatch, Input: "5\n1 2 3 4 5\n"},
			{TestNumber: 2, Verdict: api.VerdictMismatch, ErrorDetail: `expected "6", got "7"`},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	s := summary(time.Now(), false)
	require.NoError(t, fs.Save(context.Background(), s))
	assert.FileExists(t, filepath.Join(fs.Dir(), s.RunUuid+".json.zst"))

	got, err := fs.Load(s.RunUuid)
	require.NoError(t, err)
	assert.Equal(t, s.Tests, got.Tests)
	assert.Equal(t, s.StartedAt, got.StartedAt)
}

func TestListNewestFirst(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	now := time.Now()
	older, newer := summary(now.Add(-time.Hour), true), summary(now, false)
	require.NoError(t, fs.Save(context.Background(), older))
	require.NoError(t, fs.Save(context.Background(), newer))
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "junk.json.zst"), []byte("junk"), 0644))

	entries, err := fs.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.RunUuid, entries[0].RunUuid)
	assert.Equal(t, older.RunUuid, entries[1].RunUuid)
	assert.True(t, entries[1].OverallPassed)
}

func TestRejectsInvalidUuid(t *testing.T) {
	fs, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	assert.Error(t, fs.Save(context.Background(), api.TestSummary{RunUuid: "../escape"}))
	_, err = fs.Load("../escape")
	assert.Error(t, err)
}
