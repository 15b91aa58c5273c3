// Package config loads language and run settings from a TOML file over
// the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/lang"
	"github.com/programme-lv/cptester/internal/pipeline"
)

type Language struct {
	lang.Config
	CompileTimeoutMs int64 `toml:"compile_timeout_ms"`
}

type Limits struct {
	GeneratorMs   int64 `toml:"generator_ms"`
	CandidateMs   int64 `toml:"candidate_ms"`
	ValidatorMs   int64 `toml:"validator_ms"`
	TimeLimitMs   int64 `toml:"time_limit_ms"`
	MemoryLimitMB int64 `toml:"memory_limit_mb"`
}

type FailFast struct {
	Comparator  *bool `toml:"comparator"`
	Validator   *bool `toml:"validator"`
	Benchmarker *bool `toml:"benchmarker"`
}

type Run struct {
	// 0 selects DefaultMaxWorkers for the test type
	MaxWorkers  int      `toml:"max_workers"`
	CompareMode string   `toml:"compare_mode"`
	// nil leaves IO uncompressed
	CompressIO  *bool    `toml:"compress_io"`
	FailFast    FailFast `toml:"fail_fast"`
}

// Config is the configuration provider of the engine.
type Config struct {
	Languages map[string]Language `toml:"languages"`
	Limits    Limits              `toml:"limits"`
	Run       Run                 `toml:"run"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{Languages: make(map[string]Language)}
	for l, lc := range lang.DefaultConfigs() {
		c.Languages[string(l)] = Language{Config: lc, CompileTimeoutMs: lc.CompileTimeout.Milliseconds()}
	}
	d := pipeline.DefaultLimits()
	c.Limits = Limits{
		GeneratorMs:   d.Generator.Milliseconds(),
		CandidateMs:   d.Candidate.Milliseconds(),
		ValidatorMs:   d.Validator.Milliseconds(),
		TimeLimitMs:   d.TimeLimit.Milliseconds(),
		MemoryLimitMB: d.MemoryLimitMB,
	}
	c.Run.CompareMode = string(pipeline.CompareLines)
	return c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return c, c.Decode(data)
}

// Decode overlays TOML data onto c.
func (c *Config) Decode(data []byte) error {
	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	for name, fl := range file.Languages {
		l := lang.Parse(name)
		if l == lang.Unknown {
			return fmt.Errorf("config: unknown language %q", name)
		}
		cur := c.Languages[string(l)]
		fl.CompileTimeout = time.Duration(fl.CompileTimeoutMs) * time.Millisecond
		cur.Config = cur.Config.Merge(fl.Config)
		if fl.CompileTimeoutMs > 0 {
			cur.CompileTimeoutMs = fl.CompileTimeoutMs
		}
		c.Languages[string(l)] = cur
	}
	overlay(&c.Limits.GeneratorMs, file.Limits.GeneratorMs)
	overlay(&c.Limits.CandidateMs, file.Limits.CandidateMs)
	overlay(&c.Limits.ValidatorMs, file.Limits.ValidatorMs)
	overlay(&c.Limits.TimeLimitMs, file.Limits.TimeLimitMs)
	overlay(&c.Limits.MemoryLimitMB, file.Limits.MemoryLimitMB)
	if file.Run.MaxWorkers > 0 {
		c.Run.MaxWorkers = file.Run.MaxWorkers
	}
	if file.Run.CompareMode != "" {
		if _, err := pipeline.ParseCompareMode(file.Run.CompareMode); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		c.Run.CompareMode = file.Run.CompareMode
	}
	if file.Run.CompressIO != nil {
		c.Run.CompressIO = file.Run.CompressIO
	}
	if file.Run.FailFast.Comparator != nil {
		c.Run.FailFast.Comparator = file.Run.FailFast.Comparator
	}
	if file.Run.FailFast.Validator != nil {
		c.Run.FailFast.Validator = file.Run.FailFast.Validator
	}
	if file.Run.FailFast.Benchmarker != nil {
		c.Run.FailFast.Benchmarker = file.Run.FailFast.Benchmarker
	}
	return nil
}

func overlay(dst *int64, v int64) {
	if v > 0 {
		*dst = v
	}
}

// LanguageConfigs returns the per-language build settings.
func (c *Config) LanguageConfigs() map[lang.Language]lang.Config {
	out := make(map[lang.Language]lang.Config, len(c.Languages))
	for name, l := range c.Languages {
		lg := lang.Parse(name)
		if lg == lang.Unknown {
			continue
		}
		lc := l.Config
		lc.CompileTimeout = time.Duration(l.CompileTimeoutMs) * time.Millisecond
		out[lg] = lc
	}
	return out
}

func (c *Config) PipelineLimits() pipeline.Limits {
	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }
	return pipeline.Limits{
		Generator:     ms(c.Limits.GeneratorMs),
		Candidate:     ms(c.Limits.CandidateMs),
		Validator:     ms(c.Limits.ValidatorMs),
		TimeLimit:     ms(c.Limits.TimeLimitMs),
		MemoryLimitMB: c.Limits.MemoryLimitMB,
	}
}

// FailFastFor reports whether a run of tt stops at its first failure.
// The comparator stops by default, the other types run every test.
func (c *Config) FailFastFor(tt api.TestType) bool {
	var v *bool
	switch tt {
	case api.Comparator:
		v = c.Run.FailFast.Comparator
		if v == nil {
			return true
		}
	case api.Validator:
		v = c.Run.FailFast.Validator
	case api.Benchmarker:
		v = c.Run.FailFast.Benchmarker
	}
	return v != nil && *v
}

// CompressIOEnabled reports whether per-test files are stored zstd compressed.
func (c *Config) CompressIOEnabled() bool {
	return c.Run.CompressIO != nil && *c.Run.CompressIO
}

// MaxWorkers returns the configured worker bound or the default for tt.
func (c *Config) MaxWorkers(tt api.TestType) int {
	if c.Run.MaxWorkers > 0 {
		return c.Run.MaxWorkers
	}
	return DefaultMaxWorkers(tt)
}

// DefaultMaxWorkers leaves one core free and caps benchmarks lower so
// timings stay stable.
func DefaultMaxWorkers(tt api.TestType) int {
	ceiling := 8
	if tt == api.Benchmarker {
		ceiling = 4
	}
	return min(ceiling, max(1, runtime.NumCPU()-1))
}
