package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/config"
	"github.com/programme-lv/cptester/internal/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[languages.cpp]
standard = "c++20"
flags = ["-Wall"]
compile_timeout_ms = 5000

[languages.py]
runtime = "pypy3"

[limits]
time_limit_ms = 2000
memory_limit_mb = 512

[run]
max_workers = 3
compare_mode = "tokens"

[run.fail_fast]
comparator = false
benchmarker = true
`

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
	assert.True(t, c.FailFastFor(api.Comparator))
	assert.False(t, c.FailFastFor(api.Validator))
	assert.False(t, c.FailFastFor(api.Benchmarker))
	assert.Equal(t, "lines", c.Run.CompareMode)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	c, err := config.Load(path)
	require.NoError(t, err)

	langs := c.LanguageConfigs()
	assert.Equal(t, "c++20", langs[lang.Cpp].Standard)
	assert.Equal(t, "g++", langs[lang.Cpp].Compiler)
	assert.Equal(t, []string{"-Wall"}, langs[lang.Cpp].Flags)
	assert.Equal(t, 5*time.Second, langs[lang.Cpp].CompileTimeout)
	assert.Equal(t, "pypy3", langs[lang.Python].Runtime)
	assert.Equal(t, lang.DefaultCompileTimeout, langs[lang.Java].CompileTimeout)

	limits := c.PipelineLimits()
	assert.Equal(t, 2*time.Second, limits.TimeLimit)
	assert.Equal(t, int64(512), limits.MemoryLimitMB)
	assert.Equal(t, 10*time.Second, limits.Generator)

	assert.Equal(t, 3, c.MaxWorkers(api.Benchmarker))
	assert.Equal(t, "tokens", c.Run.CompareMode)
	assert.False(t, c.FailFastFor(api.Comparator))
	assert.True(t, c.FailFastFor(api.Benchmarker))
}

func TestDecodeRejectsUnknownValues(t *testing.T) {
	assert.Error(t, config.Default().Decode([]byte("[languages.rust]\ncompiler = \"rustc\"\n")))
	assert.Error(t, config.Default().Decode([]byte("[run]\ncompare_mode = \"fuzzy\"\n")))
	assert.Error(t, config.Default().Decode([]byte("not toml = = 1")))
}

func TestDefaultMaxWorkers(t *testing.T) {
	assert.GreaterOrEqual(t, config.DefaultMaxWorkers(api.Comparator), 1)
	assert.LessOrEqual(t, config.DefaultMaxWorkers(api.Comparator), 8)
	assert.LessOrEqual(t, config.DefaultMaxWorkers(api.Benchmarker), 4)
}

func TestDecodeCompressIOLayers(t *testing.T) {
	c := config.Default()
	assert.False(t, c.CompressIOEnabled())

	require.NoError(t, c.Decode([]byte("[run]\ncompress_io = true\n")))
	assert.True(t, c.CompressIOEnabled())

	// a later file may switch compression back off
	require.NoError(t, c.Decode([]byte("[run]\ncompress_io = false\n")))
	assert.False(t, c.CompressIOEnabled())

	// and a file that does not mention it keeps the current value
	require.NoError(t, c.Decode([]byte("[run]\ncompress_io = true\n")))
	require.NoError(t, c.Decode([]byte("[run]\nmax_workers = 2\n")))
	assert.True(t, c.CompressIOEnabled())
}
