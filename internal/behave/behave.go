package behave

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/config"
	"github.com/programme-lv/cptester/internal/lang"
	"github.com/programme-lv/cptester/internal/workspace"
)

// SpecLanguage is a [[languages]] registry entry: a language with build
// settings, referenced from sources by id.
type SpecLanguage struct {
	ID           string   `toml:"id"`
	Language     string   `toml:"language"`
	Compiler     string   `toml:"compiler"`
	Runtime      string   `toml:"runtime"`
	Standard     string   `toml:"standard"`
	Optimization string   `toml:"optimization"`
	Flags        []string `toml:"flags"`
}

// SpecSource is the code of one role. Lang names a registry id or a
// language; File names the source file, whose extension selects the
// language when Lang is empty.
type SpecSource struct {
	Role string `toml:"role"`
	Lang string `toml:"lang"`
	File string `toml:"file"`
	Code string `toml:"code"`
}

type SpecLimits struct {
	TimeLimitMs   int64 `toml:"time_limit_ms"`
	MemoryLimitMB int64 `toml:"memory_limit_mb"`
	GeneratorMs   int64 `toml:"generator_ms"`
	CandidateMs   int64 `toml:"candidate_ms"`
	ValidatorMs   int64 `toml:"validator_ms"`
}

// SpecExpect describes the expected outcome. Unset fields are not checked.
type SpecExpect struct {
	OverallPassed *bool `toml:"overall_passed"`
	// Verdict per test number, in order; "*" matches any verdict
	Verdicts []string `toml:"verdicts"`
	// Whether any test timed out
	TimedOut *bool `toml:"timed_out"`
	Passed   *int  `toml:"passed"`
}

type specScenario struct {
	Description string       `toml:"description"`
	TestType    string       `toml:"test_type"`
	Tests       int          `toml:"tests"`
	Workers     int          `toml:"workers"`
	FailFast    *bool        `toml:"fail_fast"`
	CompareMode string       `toml:"compare_mode"`
	Limits      SpecLimits   `toml:"limits"`
	Sources     []SpecSource `toml:"sources"`
	Expect      SpecExpect   `toml:"expect"`
}

type specRoot struct {
	Languages []SpecLanguage `toml:"languages"`
	Scenarios []specScenario `toml:"scenarios"`
}

// Source is a resolved role source ready to be written to a workspace.
type Source struct {
	Role     api.Role
	Language lang.Language
	FileName string
	Code     string
}

// Case is a runnable scenario converted from TOML
type Case struct {
	Name      string
	Request   api.RunReq
	Sources   []Source
	Languages map[lang.Language]lang.Config
	Limits    SpecLimits
	Expect    SpecExpect
}

// Parse reads a behaviour TOML file and converts it to runnable cases.
func Parse(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read behaviour file: %w", err)
	}
	return ParseBytes(data)
}

func ParseBytes(data []byte) ([]Case, error) {
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	registry := make(map[string]SpecLanguage)
	for _, l := range root.Languages {
		if l.ID == "" {
			continue
		}
		if lang.Parse(l.Language) == lang.Unknown {
			return nil, fmt.Errorf("language %q has unknown language %q", l.ID, l.Language)
		}
		registry[l.ID] = l
	}

	cases := make([]Case, 0, len(root.Scenarios))
	for i, sc := range root.Scenarios {
		name := sc.Description
		if name == "" {
			name = fmt.Sprintf("scenario %d", i+1)
		}
		c, err := convert(sc, registry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c.Name = name
		cases = append(cases, c)
	}
	return cases, nil
}

func convert(sc specScenario, registry map[string]SpecLanguage) (Case, error) {
	tt, err := api.ParseTestType(sc.TestType)
	if err != nil {
		return Case{}, err
	}
	if sc.Tests < 1 {
		return Case{}, fmt.Errorf("tests must be positive, got %d", sc.Tests)
	}
	if n := len(sc.Expect.Verdicts); n > 0 && n != sc.Tests {
		return Case{}, fmt.Errorf("expect.verdicts lists %d verdicts for %d tests", n, sc.Tests)
	}

	c := Case{
		Request: api.RunReq{
			TestType:      tt,
			Tests:         sc.Tests,
			Workers:       sc.Workers,
			FailFast:      sc.FailFast,
			TimeLimitMs:   sc.Limits.TimeLimitMs,
			MemoryLimitMB: sc.Limits.MemoryLimitMB,
			CompareMode:   sc.CompareMode,
		},
		Languages: make(map[lang.Language]lang.Config),
		Limits:    sc.Limits,
		Expect:    sc.Expect,
	}

	required := api.RolesFor(tt)
	seen := make(map[api.Role]bool)
	for _, s := range sc.Sources {
		role := api.Role(s.Role)
		if !required.Contains(role) {
			return Case{}, fmt.Errorf("role %q is not used by %s", s.Role, tt)
		}
		if seen[role] {
			return Case{}, fmt.Errorf("duplicate %s source", role)
		}
		seen[role] = true

		var lg lang.Language
		if reg, ok := registry[s.Lang]; ok {
			lg = lang.Parse(reg.Language)
			c.Languages[lg] = c.Languages[lg].Merge(lang.Config{
				Compiler:     reg.Compiler,
				Runtime:      reg.Runtime,
				Standard:     reg.Standard,
				Optimization: reg.Optimization,
				Flags:        reg.Flags,
			})
		} else if s.Lang != "" {
			lg = lang.Parse(s.Lang)
		} else {
			lg = lang.Detect(s.File)
		}
		if lg == lang.Unknown {
			return Case{}, fmt.Errorf("cannot tell the language of the %s source", role)
		}

		file := s.File
		if file == "" {
			file = string(role) + lg.Extension()
		}
		if strings.ContainsAny(file, `/\`) {
			return Case{}, fmt.Errorf("source file %q must be a plain name", file)
		}
		c.Sources = append(c.Sources, Source{Role: role, Language: lg, FileName: file, Code: s.Code})
	}
	for _, role := range required.ToSlice() {
		if !seen[role] {
			return Case{}, fmt.Errorf("missing %s source", role)
		}
	}
	return c, nil
}

// Materialize writes the sources into a fresh workspace under root.
func (c *Case) Materialize(root string) (workspace.Layout, map[api.Role]compile.SourceFile, error) {
	layout := workspace.Layout{Root: root}
	tt := c.Request.TestType
	if err := layout.Ensure(tt); err != nil {
		return layout, nil, err
	}
	files := make(map[api.Role]compile.SourceFile, len(c.Sources))
	for _, s := range c.Sources {
		path := filepath.Join(layout.Dir(tt), s.FileName)
		if err := os.WriteFile(path, []byte(s.Code), 0644); err != nil {
			return layout, nil, fmt.Errorf("failed to write %s source: %w", s.Role, err)
		}
		src, err := compile.NewSourceFile(s.Role, path)
		if err != nil {
			return layout, nil, err
		}
		files[s.Role] = src
	}
	return layout, files, nil
}

// Config overlays the scenario's language settings and stage limits on base.
func (c *Case) Config(base *config.Config) *config.Config {
	cfg := *base
	cfg.Languages = make(map[string]config.Language, len(base.Languages))
	for k, v := range base.Languages {
		cfg.Languages[k] = v
	}
	for lg, lc := range c.Languages {
		cur := cfg.Languages[string(lg)]
		cur.Config = cur.Config.Merge(lc)
		cfg.Languages[string(lg)] = cur
	}
	if c.Limits.GeneratorMs > 0 {
		cfg.Limits.GeneratorMs = c.Limits.GeneratorMs
	}
	if c.Limits.CandidateMs > 0 {
		cfg.Limits.CandidateMs = c.Limits.CandidateMs
	}
	if c.Limits.ValidatorMs > 0 {
		cfg.Limits.ValidatorMs = c.Limits.ValidatorMs
	}
	return &cfg
}

// Check compares a finished run with the expectation and returns one
// line per difference.
func (c *Case) Check(s *api.TestSummary) []string {
	var diffs []string
	e := c.Expect
	if e.OverallPassed != nil && s.OverallPassed != *e.OverallPassed {
		diffs = append(diffs, fmt.Sprintf("overall_passed: expected %t, got %t", *e.OverallPassed, s.OverallPassed))
	}
	if e.Passed != nil && s.Passed != *e.Passed {
		diffs = append(diffs, fmt.Sprintf("passed: expected %d, got %d", *e.Passed, s.Passed))
	}
	if e.TimedOut != nil {
		timedOut := false
		for _, tc := range s.Tests {
			timedOut = timedOut || tc.TimedOut
		}
		if timedOut != *e.TimedOut {
			diffs = append(diffs, fmt.Sprintf("timed_out: expected %t, got %t", *e.TimedOut, timedOut))
		}
	}
	for i, want := range e.Verdicts {
		if i >= len(s.Tests) {
			diffs = append(diffs, fmt.Sprintf("test %d: expected %s, got no result", i+1, want))
			continue
		}
		got := s.Tests[i].Verdict
		if want != "*" && !strings.EqualFold(want, string(got)) {
			diffs = append(diffs, fmt.Sprintf("test %d: expected %s, got %s", i+1, want, got))
		}
	}
	return diffs
}

// Timeout bounds a whole scenario run.
func (c *Case) Timeout() time.Duration {
	per := 30 * time.Second
	if c.Limits.TimeLimitMs > 0 {
		per = time.Duration(c.Limits.TimeLimitMs)*time.Millisecond + 20*time.Second
	}
	return time.Minute + per*time.Duration(c.Request.Tests)
}
