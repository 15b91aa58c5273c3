package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/execute"
	"github.com/programme-lv/cptester/internal/workspace"
)

// Kind selects one of the fixed pipeline shapes.
type Kind int

const (
	Comparison Kind = iota
	Validation
	Benchmark
)

func (k Kind) String() string {
	switch k {
	case Comparison:
		return "comparison"
	case Validation:
		return "validator"
	case Benchmark:
		return "benchmark"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func KindOf(tt api.TestType) (Kind, error) {
	switch tt {
	case api.Comparator:
		return Comparison, nil
	case api.Validator:
		return Validation, nil
	case api.Benchmarker:
		return Benchmark, nil
	}
	return 0, fmt.Errorf("no pipeline for test type %q", tt)
}

// Limits bounds every stage of a pipeline
type Limits struct {
	Generator time.Duration
	Candidate time.Duration
	Validator time.Duration

	// Benchmark limits for the test candidate
	TimeLimit     time.Duration
	MemoryLimitMB int64
}

func DefaultLimits() Limits {
	return Limits{
		Generator:     10 * time.Second,
		Candidate:     30 * time.Second,
		Validator:     10 * time.Second,
		TimeLimit:     time.Second,
		MemoryLimitMB: 256,
	}
}

type Config struct {
	Kind      Kind
	Artifacts map[api.Role]*compile.Artifact
	Runner    execute.Runner
	// Store may be nil, then test IO is not persisted
	Store       *workspace.Store
	Limits      Limits
	CompareMode CompareMode
	// Directory for validator argument files; os.TempDir when empty
	TempDir string
	Logger  *slog.Logger
}

// Pipeline runs the generator, candidate and check stages of one test.
// It is stateless between tests and safe for concurrent use.
type Pipeline struct {
	kind      Kind
	artifacts map[api.Role]*compile.Artifact
	runner    execute.Runner
	store     *workspace.Store
	limits    Limits
	compare   CompareMode
	tempDir   string
	logger    *slog.Logger
}

func requiredRoles(k Kind) []api.Role {
	switch k {
	case Comparison:
		return []api.Role{api.RoleGenerator, api.RoleTest, api.RoleCorrect}
	case Validation:
		return []api.Role{api.RoleGenerator, api.RoleTest, api.RoleValidator}
	}
	return []api.Role{api.RoleGenerator, api.RoleTest}
}

func New(cfg Config) (*Pipeline, error) {
	for _, role := range requiredRoles(cfg.Kind) {
		if a := cfg.Artifacts[role]; a == nil || len(a.Command) == 0 {
			return nil, fmt.Errorf("%s pipeline needs a compiled %s", cfg.Kind, role)
		}
	}
	if cfg.Runner == nil {
		cfg.Runner = execute.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CompareMode == "" {
		cfg.CompareMode = CompareLines
	}
	def := DefaultLimits()
	if cfg.Limits.Generator <= 0 {
		cfg.Limits.Generator = def.Generator
	}
	if cfg.Limits.Candidate <= 0 {
		cfg.Limits.Candidate = def.Candidate
	}
	if cfg.Limits.Validator <= 0 {
		cfg.Limits.Validator = def.Validator
	}
	if cfg.Limits.TimeLimit <= 0 {
		cfg.Limits.TimeLimit = def.TimeLimit
	}
	if cfg.Limits.MemoryLimitMB <= 0 {
		cfg.Limits.MemoryLimitMB = def.MemoryLimitMB
	}
	return &Pipeline{
		kind:      cfg.Kind,
		artifacts: cfg.Artifacts,
		runner:    cfg.Runner,
		store:     cfg.Store,
		limits:    cfg.Limits,
		compare:   cfg.CompareMode,
		tempDir:   cfg.TempDir,
		logger:    cfg.Logger,
	}, nil
}

func (p *Pipeline) Kind() Kind { return p.kind }

func (p *Pipeline) Limits() Limits { return p.limits }

// Run executes test number n. Failures of any stage are reported in the
// returned TestCase, never as an error.
func (p *Pipeline) Run(ctx context.Context, n int) api.TestCase {
	switch p.kind {
	case Comparison:
		return p.runComparison(ctx, n)
	case Validation:
		return p.runValidation(ctx, n)
	case Benchmark:
		return p.runBenchmark(ctx, n)
	}
	tc := newCase(n)
	tc.fail(api.VerdictFailed, fmt.Sprintf("unknown pipeline kind %s", p.kind))
	return tc.TestCase
}

// Cancelled returns the TestCase recorded for a test that never ran.
func Cancelled(n int) api.TestCase {
	tc := newCase(n)
	tc.fail(api.VerdictCancelled, "Cancelled before start")
	return tc.TestCase
}

var stageNames = map[api.Role]string{
	api.RoleGenerator: "Generator",
	api.RoleTest:      "Test solution",
	api.RoleCorrect:   "Correct solution",
	api.RoleValidator: "Validator",
}

type stageOpts struct {
	stdin          []byte
	extraArgs      []string
	timeout        time.Duration
	memoryLimitKiB int64
}

func (p *Pipeline) exec(ctx context.Context, role api.Role, o stageOpts) (*execute.Result, error) {
	art := p.artifacts[role]
	args := append(append([]string(nil), art.Command...), o.extraArgs...)
	stdin := o.stdin
	if stdin == nil {
		stdin = []byte{}
	}
	return p.runner.Run(ctx, execute.Cmd{
		Args:           args,
		Stdin:          stdin,
		Dir:            art.Dir,
		Timeout:        o.timeout,
		MemoryLimitKiB: o.memoryLimitKiB,
	})
}

func (p *Pipeline) saveInput(n int, data []byte) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveInput(n, data); err != nil {
		p.logger.Warn("failed to save test input", "test", n, "error", err)
	}
}

func (p *Pipeline) saveOutput(role api.Role, n int, data []byte) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveOutput(role, n, data); err != nil {
		p.logger.Warn("failed to save test output", "test", n, "role", role, "error", err)
	}
}

// testCase accumulates stage results into an api.TestCase.
type testCase struct {
	api.TestCase
}

func newCase(n int) *testCase {
	return &testCase{api.TestCase{
		TestNumber: n,
		Runs:       make(map[api.Role]*api.RuntimeData),
	}}
}

func (tc *testCase) fail(v api.Verdict, detail string) {
	tc.Passed = false
	tc.Verdict = v
	tc.ErrorDetail = detail
}

// failAt fails the test because the stage of role did not complete.
func (tc *testCase) failAt(role api.Role, v api.Verdict, detail string) {
	tc.fail(v, detail)
	tc.FailedRole = role
}

func (tc *testCase) record(role api.Role, res *execute.Result) {
	if res == nil {
		return
	}
	tc.Runs[role] = &api.RuntimeData{
		Stdout:         truncate(string(res.Stdout), api.MaxDisplayChars),
		Stderr:         truncate(string(res.Stderr), api.MaxDisplayChars),
		ExitCode:       res.ExitCode,
		WallMillis:     res.Elapsed.Milliseconds(),
		MemoryKiBytes:  res.PeakMemoryKiB,
		TimedOut:       res.TimedOut,
		MemoryExceeded: res.MemoryExceeded,
	}
	tc.ElapsedMillis += res.Elapsed.Milliseconds()
	tc.PeakMemoryKiB = max(tc.PeakMemoryKiB, res.PeakMemoryKiB)
	if res.TimedOut {
		tc.TimedOut = true
	}
	if res.MemoryExceeded {
		tc.MemoryExceeded = true
	}
}

// stageFailure describes why a stage did not complete normally, or
// returns "" when it exited with code 0.
func stageFailure(role api.Role, res *execute.Result, err error) (api.Verdict, string) {
	name := stageNames[role]
	if res == nil {
		res = &execute.Result{ExitCode: -1}
	}
	switch {
	case errors.Is(err, execute.ErrCancelled):
		return api.VerdictCancelled, "Cancelled"
	case errors.Is(err, execute.ErrTimeout):
		return api.VerdictTimeLimitExceeded, fmt.Sprintf("Timeout: %s exceeded %.2fs", strings.ToLower(name), res.Elapsed.Seconds())
	case errors.Is(err, execute.ErrMemoryLimit):
		return api.VerdictMemoryLimitExceeded, fmt.Sprintf("%s exceeded the memory limit (%.1fMB)", name, res.PeakMemoryMB())
	case err != nil:
		return api.VerdictFailed, fmt.Sprintf("%s failed: %s", name, execute.Describe(err))
	case res.ExitCode != 0:
		stderr := strings.TrimSpace(string(res.Stderr))
		if stderr == "" {
			return api.VerdictRuntimeError, fmt.Sprintf("%s failed with exit code %d", name, res.ExitCode)
		}
		return api.VerdictRuntimeError, fmt.Sprintf("%s failed with exit code %d: %s", name, res.ExitCode, truncate(stderr, api.MaxDisplayChars))
	}
	return "", ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
