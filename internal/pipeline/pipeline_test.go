//go:build unix

package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/pipeline"
	"github.com/programme-lv/cptester/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memHog keeps roughly 120MB in a shell variable, then idles.
const memHog = `x=$(head -c 120000000 /dev/zero | tr '\0' a)
sleep 5
echo ${#x}`

const sumScript = `read n
read line
s=0
for x in $line; do s=$((s + x)); done
echo $s`

// script writes an executable shell script and returns it as an artifact.
func script(t *testing.T, dir string, role api.Role, body string) *compile.Artifact {
	t.Helper()
	path := filepath.Join(dir, string(role)+".sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return &compile.Artifact{Role: role, Path: path, Command: []string{path}}
}

func newPipeline(t *testing.T, kind pipeline.Kind, tt api.TestType, scripts map[api.Role]string, limits pipeline.Limits) (*pipeline.Pipeline, *workspace.Store) {
	t.Helper()
	dir := t.TempDir()
	arts := make(map[api.Role]*compile.Artifact)
	for role, body := range scripts {
		arts[role] = script(t, dir, role, body)
	}
	store, err := workspace.NewStore(workspace.Layout{Root: filepath.Join(dir, "ws")}, tt, false)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	p, err := pipeline.New(pipeline.Config{
		Kind:      kind,
		Artifacts: arts,
		Store:     store,
		Limits:    limits,
		TempDir:   dir,
	})
	require.NoError(t, err)
	return p, store
}

func TestNewRequiresRoles(t *testing.T) {
	_, err := pipeline.New(pipeline.Config{Kind: pipeline.Validation, Artifacts: map[api.Role]*compile.Artifact{}})
	assert.Error(t, err)
}

func TestComparisonMatchingOutputs(t *testing.T) {
	p, store := newPipeline(t, pipeline.Comparison, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `printf '5\n1 2 3 4 5\n'`,
		api.RoleTest:      sumScript,
		api.RoleCorrect:   sumScript,
	}, pipeline.Limits{})

	tc := p.Run(context.Background(), 1)
	assert.True(t, tc.Passed, tc.ErrorDetail)
	assert.Equal(t, api.VerdictMatch, tc.Verdict)
	assert.Equal(t, "15\n", tc.Output(api.RoleTest))
	assert.Equal(t, "5\n1 2 3 4 5\n", tc.Input)

	in, err := store.ReadInput(1)
	require.NoError(t, err)
	assert.Equal(t, "5\n1 2 3 4 5\n", string(in))
	out, err := store.ReadOutput(api.RoleCorrect, 1)
	require.NoError(t, err)
	assert.Equal(t, "15\n", string(out))
}

func TestComparisonMismatch(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Comparison, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `printf '3\n1 2 3\n'`,
		api.RoleTest:      `echo 7`,
		api.RoleCorrect:   sumScript,
	}, pipeline.Limits{})

	tc := p.Run(context.Background(), 2)
	assert.False(t, tc.Passed)
	assert.Equal(t, api.VerdictMismatch, tc.Verdict)
	assert.Contains(t, tc.ErrorDetail, `expected "6", got "7"`)
}

func TestComparisonIgnoresTrailingWhitespace(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Comparison, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `printf '6   \r\n\n'`,
		api.RoleCorrect:   `echo 6`,
	}, pipeline.Limits{})

	tc := p.Run(context.Background(), 1)
	assert.True(t, tc.Passed, tc.ErrorDetail)
}

func TestComparisonCandidateTimeout(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Comparison, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `sleep 5`,
		api.RoleCorrect:   `echo 1`,
	}, pipeline.Limits{Candidate: 200 * time.Millisecond})

	tc := p.Run(context.Background(), 1)
	assert.False(t, tc.Passed)
	assert.True(t, tc.TimedOut)
	assert.Equal(t, api.VerdictTimeLimitExceeded, tc.Verdict)
	assert.Contains(t, tc.ErrorDetail, "Timeout")
}

func TestGeneratorFailure(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Comparison, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `echo broken >&2; exit 4`,
		api.RoleTest:      `echo 1`,
		api.RoleCorrect:   `echo 1`,
	}, pipeline.Limits{})

	tc := p.Run(context.Background(), 3)
	assert.False(t, tc.Passed)
	assert.Equal(t, api.VerdictFailed, tc.Verdict)
	assert.Contains(t, tc.ErrorDetail, "Generator failed with exit code 4: broken")
	assert.Equal(t, api.RoleGenerator, tc.FailedRole)
	assert.NotContains(t, tc.Runs, api.RoleTest)
}

const equalityValidator = `[ $# -eq 2 ] || exit 7
if [ "$(cat "$1")" = "$(cat "$2")" ]; then echo ok; exit 0; fi
echo "expected $(cat "$1")"; exit 1`

func TestValidatorVerdicts(t *testing.T) {
	tests := []struct {
		name      string
		generator string
		validator string
		verdict   api.Verdict
		passed    bool
		exitCode  int
	}{
		{"correct", `echo 1`, equalityValidator, api.VerdictCorrect, true, 0},
		{"wrong answer", `echo 2`, equalityValidator, api.VerdictWrongAnswer, false, 1},
		{"presentation error", `echo 1`, `exit 2`, api.VerdictPresentationError, false, 2},
		{"crash", `echo 1`, `echo oops >&2; exit 3`, api.VerdictValidatorError, false, 3},
		{"negative", `echo 1`, `kill -9 $$`, api.VerdictValidatorError, false, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPipeline(t, pipeline.Validation, api.Validator, map[api.Role]string{
				api.RoleGenerator: tt.generator,
				api.RoleTest:      `echo 1`,
				api.RoleValidator: tt.validator,
			}, pipeline.Limits{})

			tc := p.Run(context.Background(), 1)
			assert.Equal(t, tt.verdict, tc.Verdict, tc.ErrorDetail)
			assert.Equal(t, tt.passed, tc.Passed)
			require.NotNil(t, tc.ValidatorExitCode)
			assert.Equal(t, tt.exitCode, *tc.ValidatorExitCode)
		})
	}
}

func TestValidatorCrashDetail(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Validation, api.Validator, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `echo 1`,
		api.RoleValidator: `echo oops >&2; exit 3`,
	}, pipeline.Limits{})

	tc := p.Run(context.Background(), 1)
	assert.Equal(t, "Validator crashed with exit code 3: oops", tc.ErrorDetail)
}

func TestValidatorLaunchFailure(t *testing.T) {
	dir := t.TempDir()
	p, err := pipeline.New(pipeline.Config{
		Kind: pipeline.Validation,
		Artifacts: map[api.Role]*compile.Artifact{
			api.RoleGenerator: script(t, dir, api.RoleGenerator, `echo 1`),
			api.RoleTest:      script(t, dir, api.RoleTest, `echo 1`),
			api.RoleValidator: {Command: []string{filepath.Join(dir, "missing-validator")}},
		},
		TempDir: dir,
	})
	require.NoError(t, err)

	tc := p.Run(context.Background(), 1)
	assert.Equal(t, api.VerdictValidatorError, tc.Verdict)
	assert.NotEqual(t, api.VerdictWrongAnswer, tc.Verdict)
	assert.Equal(t, -1, *tc.ValidatorExitCode)
}

func TestBenchmarkAccepted(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Benchmark, api.Benchmarker, map[api.Role]string{
		api.RoleGenerator: `printf '3\n1 2 3\n'`,
		api.RoleTest:      sumScript,
	}, pipeline.Limits{TimeLimit: 5 * time.Second, MemoryLimitMB: 1024})

	tc := p.Run(context.Background(), 1)
	assert.True(t, tc.Passed, tc.ErrorDetail)
	assert.Equal(t, api.VerdictAccepted, tc.Verdict)
	assert.Equal(t, 2, tc.TestSize)
	assert.GreaterOrEqual(t, tc.TimePerElementUs, 0.0)
}

func TestBenchmarkTimeLimit(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Benchmark, api.Benchmarker, map[api.Role]string{
		api.RoleGenerator: `seq 1 1000`,
		api.RoleTest:      `sleep 3; echo done`,
	}, pipeline.Limits{TimeLimit: 200 * time.Millisecond})

	tc := p.Run(context.Background(), 1)
	assert.False(t, tc.Passed)
	assert.True(t, tc.TimedOut)
	assert.Equal(t, api.VerdictTimeLimitExceeded, tc.Verdict)
	assert.Contains(t, tc.ErrorDetail, "Time Limit Exceeded (")
	assert.Equal(t, 1000, tc.TestSize)
}

func TestBenchmarkMemoryLimit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("memory sampling is linux only")
	}
	p, _ := newPipeline(t, pipeline.Benchmark, api.Benchmarker, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      memHog,
	}, pipeline.Limits{TimeLimit: 20 * time.Second, MemoryLimitMB: 50})

	tc := p.Run(context.Background(), 1)
	assert.False(t, tc.Passed)
	assert.True(t, tc.MemoryExceeded)
	assert.False(t, tc.TimedOut)
	assert.Equal(t, api.VerdictMemoryLimitExceeded, tc.Verdict)
	assert.Contains(t, tc.ErrorDetail, "Memory Limit Exceeded (")
	assert.Greater(t, tc.PeakMemoryKiB, int64(50*1024))
	assert.Equal(t, api.RoleTest, tc.FailedRole)
}

func TestBenchmarkRuntimeError(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Benchmark, api.Benchmarker, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `exit 5`,
	}, pipeline.Limits{TimeLimit: 5 * time.Second})

	tc := p.Run(context.Background(), 1)
	assert.Equal(t, api.VerdictRuntimeError, tc.Verdict)
	assert.Equal(t, "Runtime Error (exit code 5)", tc.ErrorDetail)
}

func TestCancelledBeforeStart(t *testing.T) {
	p, _ := newPipeline(t, pipeline.Benchmark, api.Benchmarker, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `echo 1`,
	}, pipeline.Limits{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tc := p.Run(ctx, 9)
	assert.Equal(t, 9, tc.TestNumber)
	assert.Equal(t, api.VerdictCancelled, tc.Verdict)
	assert.False(t, tc.Passed)

	assert.Equal(t, api.VerdictCancelled, pipeline.Cancelled(4).Verdict)
}

func TestVerdictForExitCode(t *testing.T) {
	assert.Equal(t, api.VerdictCorrect, pipeline.VerdictForExitCode(0))
	assert.Equal(t, api.VerdictWrongAnswer, pipeline.VerdictForExitCode(1))
	assert.Equal(t, api.VerdictPresentationError, pipeline.VerdictForExitCode(2))
	for _, code := range []int{-1, -11, 3, 127, 255} {
		assert.Equal(t, api.VerdictValidatorError, pipeline.VerdictForExitCode(code))
	}
}
