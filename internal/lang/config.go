package lang

import (
	"runtime"
	"time"
)

// Config holds build and run settings for one language
type Config struct {
	// Compiler binary (g++, javac); empty for interpreted languages
	Compiler string `toml:"compiler"`
	// Interpreter (python) or runtime (java) binary
	Runtime string `toml:"runtime"`

	Standard     string   `toml:"standard"`
	Optimization string   `toml:"optimization"`
	Flags        []string `toml:"flags"`

	CompileTimeout time.Duration `toml:"-"`
}

const DefaultCompileTimeout = 30 * time.Second

// DefaultConfigs returns a fresh copy of the built-in language settings.
func DefaultConfigs() map[Language]Config {
	python := "python3"
	if runtime.GOOS == "windows" {
		python = "python"
	}
	return map[Language]Config{
		Cpp: {
			Compiler:       "g++",
			Standard:       "c++17",
			Optimization:   "O2",
			Flags:          []string{"-march=native", "-mtune=native", "-pipe", "-Wall"},
			CompileTimeout: DefaultCompileTimeout,
		},
		Python: {
			Runtime:        python,
			Flags:          []string{"-u"},
			CompileTimeout: DefaultCompileTimeout,
		},
		Java: {
			Compiler:       "javac",
			Runtime:        "java",
			CompileTimeout: DefaultCompileTimeout,
		},
	}
}

// Merge overlays the non-zero fields of o onto c.
func (c Config) Merge(o Config) Config {
	if o.Compiler != "" {
		c.Compiler = o.Compiler
	}
	if o.Runtime != "" {
		c.Runtime = o.Runtime
	}
	if o.Standard != "" {
		c.Standard = o.Standard
	}
	if o.Optimization != "" {
		c.Optimization = o.Optimization
	}
	if o.Flags != nil {
		c.Flags = append([]string(nil), o.Flags...)
	}
	if o.CompileTimeout > 0 {
		c.CompileTimeout = o.CompileTimeout
	}
	return c
}
