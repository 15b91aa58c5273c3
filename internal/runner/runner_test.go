//go:build unix

package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/config"
	"github.com/programme-lv/cptester/internal/execute"
	"github.com/programme-lv/cptester/internal/runner"
	"github.com/programme-lv/cptester/internal/runner/mocks"
	"github.com/programme-lv/cptester/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// copyCompiler stands in for g++: the "sources" are shell scripts and
// compiling one copies it to the -o target.
type copyCompiler struct{}

func (copyCompiler) Run(_ context.Context, c execute.Cmd) (*execute.Result, error) {
	i := slices.Index(c.Args, "-o")
	data, err := os.ReadFile(c.Args[i-1])
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(c.Args[i+1], data, 0755); err != nil {
		return nil, err
	}
	return &execute.Result{Command: c.Args}, nil
}

const sumScript = `read n
read line
s=0
for x in $line; do s=$((s + x)); done
echo $s`

type fixture struct {
	layout workspace.Layout
	tt     api.TestType
}

func newFixture(t *testing.T, tt api.TestType, scripts map[api.Role]string) fixture {
	t.Helper()
	layout := workspace.Layout{Root: t.TempDir()}
	require.NoError(t, layout.Ensure(tt))
	for role, body := range scripts {
		path := filepath.Join(layout.Dir(tt), string(role)+".cpp")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0644))
	}
	return fixture{layout: layout, tt: tt}
}

func (f fixture) runner(t *testing.T, sink runner.ProgressSink, store *savedSummaries, cfg *config.Config) *runner.Runner {
	t.Helper()
	opts := runner.Options{
		TestType:  f.tt,
		Workspace: f.layout,
		Config:    cfg,
		Sink:      sink,
		Compiler:  compile.New(f.layout.Dir(f.tt), nil, compile.WithRunner(copyCompiler{})),
	}
	if store != nil {
		opts.Store = store
	}
	r, err := runner.New(opts)
	require.NoError(t, err)
	return r
}

type savedSummaries struct {
	mu   sync.Mutex
	runs []api.TestSummary
}

func (s *savedSummaries) Save(_ context.Context, sum api.TestSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, sum)
	return nil
}

// recordingSink remembers worker ids and signals every busy worker.
type recordingSink struct {
	runner.NopSink
	mu        sync.Mutex
	workerIDs map[int]bool
	completed []int
	busy      chan int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{workerIDs: make(map[int]bool), busy: make(chan int, 100)}
}

func (s *recordingSink) WorkerBusy(id, n int) {
	s.mu.Lock()
	s.workerIDs[id] = true
	s.mu.Unlock()
	s.busy <- n
}

func (s *recordingSink) TestCompleted(tc api.TestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, tc.TestNumber)
}

var matchingScripts = map[api.Role]string{
	api.RoleGenerator: `printf '5\n1 2 3 4 5\n'`,
	api.RoleTest:      sumScript,
	api.RoleCorrect:   sumScript,
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	f := newFixture(t, api.Comparator, matchingScripts)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockProgressSink(ctrl)

	sink.EXPECT().CompilationOutput(gomock.Any()).AnyTimes()
	isTest := func(n int) gomock.Matcher {
		return gomock.Cond(func(tc api.TestCase) bool { return tc.TestNumber == n && tc.Passed })
	}
	gomock.InOrder(
		sink.EXPECT().CompilationFinished(true),
		sink.EXPECT().TestStarted(1, 2),
		sink.EXPECT().WorkerBusy(1, 1),
		sink.EXPECT().TestCompleted(isTest(1)),
		sink.EXPECT().WorkerIdle(1),
		sink.EXPECT().TestStarted(2, 2),
		sink.EXPECT().WorkerBusy(1, 2),
		sink.EXPECT().TestCompleted(isTest(2)),
		sink.EXPECT().WorkerIdle(1),
		sink.EXPECT().AllTestsCompleted(true),
	)

	store := &savedSummaries{}
	r := f.runner(t, sink, store, nil)
	require.NoError(t, r.Compile(context.Background()))
	summary, err := r.Run(context.Background(), 2, 1)
	require.NoError(t, err)

	assert.True(t, summary.OverallPassed)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Workers)
	require.NotNil(t, summary.Analysis.Comparison)
	assert.Equal(t, 2, summary.Analysis.Comparison.Matching)

	require.Len(t, store.runs, 1)
	assert.Equal(t, r.RunUuid(), store.runs[0].RunUuid)
	assert.FileExists(t, f.layout.InputPath(api.Comparator, 2))
	assert.FileExists(t, f.layout.OutputPath(api.Comparator, api.RoleCorrect, 2))
}

func TestRunBeforeCompile(t *testing.T) {
	f := newFixture(t, api.Comparator, matchingScripts)
	r := f.runner(t, nil, nil, nil)
	_, err := r.Run(context.Background(), 3, 2)
	assert.ErrorIs(t, err, runner.ErrNotCompiled)
}

func TestCompileReportsMissingRole(t *testing.T) {
	f := newFixture(t, api.Validator, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `echo 1`,
	})
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockProgressSink(ctrl)
	sink.EXPECT().CompilationOutput(gomock.Any())
	sink.EXPECT().CompilationFinished(false)

	r := f.runner(t, sink, nil, nil)
	assert.Error(t, r.Compile(context.Background()))
}

func TestWorkerCountAndExactlyOneCasePerTest(t *testing.T) {
	f := newFixture(t, api.Comparator, matchingScripts)
	sink := newRecordingSink()
	r := f.runner(t, sink, nil, nil)
	require.NoError(t, r.Compile(context.Background()))

	summary, err := r.Run(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Workers)
	for id := range sink.workerIDs {
		assert.True(t, id >= 1 && id <= 3, "worker id %d", id)
	}
	require.Len(t, summary.Tests, 3)
	for i, tc := range summary.Tests {
		assert.Equal(t, i+1, tc.TestNumber)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, sink.completed)
}

func TestConcurrencyInvariance(t *testing.T) {
	f := newFixture(t, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `printf '3\n1 2 3\n'`,
		api.RoleTest:      `echo 7`,
		api.RoleCorrect:   sumScript,
	})
	cfg := config.Default()
	off := false
	cfg.Run.FailFast.Comparator = &off

	verdicts := func(workers int) []api.Verdict {
		r := f.runner(t, nil, nil, cfg)
		require.NoError(t, r.Compile(context.Background()))
		summary, err := r.Run(context.Background(), 6, workers)
		require.NoError(t, err)
		var out []api.Verdict
		for _, tc := range summary.Tests {
			out = append(out, tc.Verdict)
		}
		return out
	}
	one := verdicts(1)
	assert.Equal(t, one, verdicts(8))
	assert.Len(t, one, 6)
	assert.NotContains(t, one, api.VerdictCancelled)
}

func TestFailFastStopsDispatch(t *testing.T) {
	f := newFixture(t, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `printf '3\n1 2 3\n'`,
		api.RoleTest:      `echo 7`,
		api.RoleCorrect:   sumScript,
	})
	r := f.runner(t, nil, nil, nil)
	require.NoError(t, r.Compile(context.Background()))

	summary, err := r.Run(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, api.VerdictMismatch, summary.Tests[0].Verdict)
	for _, tc := range summary.Tests[1:] {
		assert.Equal(t, api.VerdictCancelled, tc.Verdict)
		assert.False(t, tc.Passed)
	}
	assert.Equal(t, []int{1}, summary.Analysis.Comparison.FailedTests)
}

func TestFailFastVerdictsIndependentOfWorkers(t *testing.T) {
	f := newFixture(t, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `printf '3\n1 2 3\n'`,
		api.RoleTest:      "sleep 0.2\necho 7",
		api.RoleCorrect:   sumScript,
	})

	run := func(workers int) *api.TestSummary {
		r := f.runner(t, nil, nil, nil)
		require.NoError(t, r.Compile(context.Background()))
		summary, err := r.Run(context.Background(), 6, workers)
		require.NoError(t, err)
		return summary
	}
	verdicts := func(s *api.TestSummary) []api.Verdict {
		var out []api.Verdict
		for _, tc := range s.Tests {
			out = append(out, tc.Verdict)
		}
		return out
	}

	one, eight := run(1), run(8)
	want := []api.Verdict{api.VerdictMismatch, api.VerdictCancelled, api.VerdictCancelled,
		api.VerdictCancelled, api.VerdictCancelled, api.VerdictCancelled}
	assert.Equal(t, want, verdicts(one))
	assert.Equal(t, want, verdicts(eight))
	assert.Equal(t, []int{1}, eight.Analysis.Comparison.FailedTests)
	assert.Equal(t, one.Failed, eight.Failed)
}

func TestApplyOverridesFailFast(t *testing.T) {
	f := newFixture(t, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `echo 2`,
		api.RoleCorrect:   `echo 1`,
	})
	r := f.runner(t, nil, nil, nil)
	off := false
	summary, err := r.Execute(context.Background(), api.RunReq{Tests: 3, Workers: 2, FailFast: &off})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, []int{1, 2, 3}, summary.Analysis.Comparison.FailedTests)

	_, err = r.Apply(api.RunReq{RunUuid: "not-a-uuid"})
	assert.Error(t, err)
}

func TestStopCancelsRunningAndPendingTests(t *testing.T) {
	f := newFixture(t, api.Comparator, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `sleep 30`,
		api.RoleCorrect:   `echo 1`,
	})
	sink := newRecordingSink()
	r := f.runner(t, sink, nil, nil)
	require.NoError(t, r.Compile(context.Background()))

	go func() {
		<-sink.busy
		<-sink.busy
		r.Stop()
	}()

	start := time.Now()
	summary, err := r.Run(context.Background(), 6, 2)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, summary.Cancelled)
	assert.False(t, summary.OverallPassed)
	require.Len(t, summary.Tests, 6)
	for _, tc := range summary.Tests {
		assert.Equal(t, api.VerdictCancelled, tc.Verdict, "test %d", tc.TestNumber)
	}
}

func TestStopBeforeRunCancelsEveryTest(t *testing.T) {
	f := newFixture(t, api.Comparator, matchingScripts)
	sink := newRecordingSink()
	r := f.runner(t, sink, nil, nil)
	require.NoError(t, r.Compile(context.Background()))

	r.Stop()
	summary, err := r.Run(context.Background(), 4, 2)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	require.Len(t, summary.Tests, 4)
	for _, tc := range summary.Tests {
		assert.Equal(t, api.VerdictCancelled, tc.Verdict, "test %d", tc.TestNumber)
	}
	assert.Empty(t, sink.completed)

	// the stop applied to one run only
	summary, err = r.Run(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.False(t, summary.Cancelled)
	assert.True(t, summary.OverallPassed)
}

func TestContextCancelEndsRun(t *testing.T) {
	f := newFixture(t, api.Benchmarker, map[api.Role]string{
		api.RoleGenerator: `echo 1`,
		api.RoleTest:      `sleep 30`,
	})
	r := f.runner(t, nil, nil, nil)
	require.NoError(t, r.Compile(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := r.Apply(api.RunReq{TimeLimitMs: 60_000})
	require.NoError(t, err)
	summary, err := r.Run(ctx, 2, 2)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	for _, tc := range summary.Tests {
		assert.False(t, tc.Passed)
	}
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	f := newFixture(t, api.Comparator, matchingScripts)
	r := f.runner(t, nil, nil, nil)
	require.NoError(t, r.Compile(context.Background()))
	_, err := r.Run(context.Background(), 0, 1)
	assert.Error(t, err)
}
