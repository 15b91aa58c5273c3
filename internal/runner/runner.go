// Package runner compiles the roles of a workspace and runs numbered
// tests over a bounded pool of workers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/compile"
	"github.com/programme-lv/cptester/internal/config"
	"github.com/programme-lv/cptester/internal/execute"
	"github.com/programme-lv/cptester/internal/persist"
	"github.com/programme-lv/cptester/internal/pipeline"
	"github.com/programme-lv/cptester/internal/workspace"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrNotCompiled = errors.New("runner: Compile has not succeeded")

type Options struct {
	TestType  api.TestType
	Workspace workspace.Layout
	// Discovered in the workspace when nil
	Sources map[api.Role]compile.SourceFile
	Config  *config.Config

	Sink  ProgressSink
	Store persist.Sink

	// Optional; built from Config when nil
	Compiler *compile.Service
	Executor execute.Runner
	Logger   *slog.Logger
}

// Runner drives one test type of a workspace. Compile must succeed
// before Run. A Runner runs one test batch at a time.
type Runner struct {
	tt       api.TestType
	kind     pipeline.Kind
	layout   workspace.Layout
	sources  map[api.Role]compile.SourceFile
	compiler *compile.Service
	exec     execute.Runner
	sink     ProgressSink
	store    persist.Sink
	logger   *slog.Logger

	// copied from the configuration at construction
	limits     pipeline.Limits
	compare    pipeline.CompareMode
	failFast   bool
	compressIO bool
	maxWorkers int
	runUuid    string

	artifacts map[api.Role]*compile.Artifact

	running atomic.Bool
	stopped atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
}

func New(opts Options) (*Runner, error) {
	kind, err := pipeline.KindOf(opts.TestType)
	if err != nil {
		return nil, err
	}
	layout, err := opts.Workspace.Abs()
	if err != nil {
		return nil, err
	}
	opts.Workspace = layout
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Store == nil {
		opts.Store = persist.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Executor == nil {
		opts.Executor = &execute.Executor{
			PollInterval: execute.DefaultPollInterval,
			OutputLimit:  execute.DefaultOutputLimit,
			Logger:       opts.Logger,
		}
	}
	if opts.Compiler == nil {
		opts.Compiler = compile.New(opts.Workspace.Dir(opts.TestType), cfg.LanguageConfigs(),
			compile.WithRunner(opts.Executor), compile.WithLogger(opts.Logger))
	}
	compare, err := pipeline.ParseCompareMode(cfg.Run.CompareMode)
	if err != nil {
		return nil, err
	}

	return &Runner{
		tt:         opts.TestType,
		kind:       kind,
		layout:     opts.Workspace,
		sources:    opts.Sources,
		compiler:   opts.Compiler,
		exec:       opts.Executor,
		sink:       opts.Sink,
		store:      opts.Store,
		logger:     opts.Logger.With("test_type", opts.TestType),
		limits:     cfg.PipelineLimits(),
		compare:    compare,
		failFast:   cfg.FailFastFor(opts.TestType),
		compressIO: cfg.CompressIOEnabled(),
		maxWorkers: cfg.MaxWorkers(opts.TestType),
		runUuid:    uuid.NewString(),
	}, nil
}

// Apply overrides the run settings with the non-zero fields of req.
// It returns the worker bound requested, or 0.
func (r *Runner) Apply(req api.RunReq) (int, error) {
	if req.RunUuid != "" {
		if _, err := uuid.Parse(req.RunUuid); err != nil {
			return 0, fmt.Errorf("invalid run uuid %q: %w", req.RunUuid, err)
		}
		r.runUuid = req.RunUuid
	}
	if req.FailFast != nil {
		r.failFast = *req.FailFast
	}
	if req.TimeLimitMs > 0 {
		r.limits.TimeLimit = time.Duration(req.TimeLimitMs) * time.Millisecond
	}
	if req.MemoryLimitMB > 0 {
		r.limits.MemoryLimitMB = req.MemoryLimitMB
	}
	if req.CompareMode != "" {
		m, err := pipeline.ParseCompareMode(req.CompareMode)
		if err != nil {
			return 0, err
		}
		r.compare = m
	}
	return req.Workers, nil
}

func (r *Runner) RunUuid() string { return r.runUuid }

func (r *Runner) SetCompressIO(on bool) { r.compressIO = on }

// Artifacts returns the compiled artifacts by role.
func (r *Runner) Artifacts() map[api.Role]*compile.Artifact { return r.artifacts }

// Compile builds every role of the test type. Progress goes to the sink,
// which is told the outcome exactly once.
func (r *Runner) Compile(ctx context.Context) error {
	sources := r.sources
	if sources == nil {
		var err error
		sources, err = r.layout.Discover(r.tt)
		if err != nil {
			r.sink.CompilationOutput(err.Error())
			r.sink.CompilationFinished(false)
			return err
		}
	}
	for _, role := range api.RolesFor(r.tt).ToSlice() {
		if _, ok := sources[role]; !ok {
			err := fmt.Errorf("no %s source for %s", role, r.tt)
			r.sink.CompilationOutput(err.Error())
			r.sink.CompilationFinished(false)
			return err
		}
	}

	start := time.Now()
	results, err := r.compiler.CompileAll(ctx, sources, r.sink)
	if err != nil {
		r.logger.Warn("compilation failed", "error", err)
		r.sink.CompilationFinished(false)
		return err
	}
	artifacts := make(map[api.Role]*compile.Artifact, len(results))
	for role, res := range results {
		artifacts[role] = res.Artifact
	}
	r.artifacts = artifacts
	r.logger.Info("compiled all roles", "roles", len(artifacts), "took", time.Since(start).Round(time.Millisecond))
	r.sink.CompilationFinished(true)
	return nil
}

// Stop stops dispatching tests and kills the running ones. Tests that
// never started are reported as cancelled. A Stop before Run makes that
// Run cancel every test.
func (r *Runner) Stop() {
	r.stopped.Store(true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Run executes tests 1..count over min(maxWorkers, count) workers.
// maxWorkers <= 0 selects the configured bound. The summary holds
// exactly one TestCase per test number, ordered by number. Under
// fail-fast every test after the lowest failing number is cancelled, so
// the verdicts do not depend on the worker count.
func (r *Runner) Run(ctx context.Context, count int, maxWorkers int) (*api.TestSummary, error) {
	if r.artifacts == nil {
		return nil, ErrNotCompiled
	}
	if count < 1 {
		return nil, fmt.Errorf("test count must be positive, got %d", count)
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, errors.New("runner: a run is already in progress")
	}
	defer r.running.Store(false)
	// a Stop before Run cancels this run; the flag is cleared for the next one
	defer r.stopped.Store(false)

	if maxWorkers <= 0 {
		maxWorkers = r.maxWorkers
	}
	workers := min(maxWorkers, count)

	if err := r.layout.Ensure(r.tt); err != nil {
		return nil, err
	}
	store, err := workspace.NewStore(r.layout, r.tt, r.compressIO)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.Clear(); err != nil {
		r.logger.Warn("failed to clear previous test files", "error", err)
	}

	p, err := pipeline.New(pipeline.Config{
		Kind:        r.kind,
		Artifacts:   r.artifacts,
		Runner:      r.exec,
		Store:       store,
		Limits:      r.limits,
		CompareMode: r.compare,
		TempDir:     r.layout.Dir(r.tt),
		Logger:      r.logger,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
	}()

	summary := &api.TestSummary{
		RunUuid:   r.runUuid,
		TestType:  r.tt,
		Total:     count,
		StartedAt: time.Now(),
		Workers:   workers,
	}
	r.logger.Info("starting tests", "run", r.runUuid, "tests", count, "workers", workers, "fail_fast", r.failFast)

	results := xsync.NewMapOf[int, api.TestCase]()
	// lowest failing test number under fail-fast, 0 while none failed
	var firstFail atomic.Int64
	beyondFailure := func(n int) bool {
		f := firstFail.Load()
		return f > 0 && int64(n) > f
	}
	var started atomic.Int64
	jobs := make(chan int)

	go func() {
		defer close(jobs)
		for n := 1; n <= count; n++ {
			if r.stopped.Load() || firstFail.Load() > 0 {
				return
			}
			select {
			case jobs <- n:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for id := 1; id <= workers; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				if r.stopped.Load() || beyondFailure(n) || runCtx.Err() != nil {
					continue
				}
				r.sink.TestStarted(int(started.Add(1)), count)
				r.sink.WorkerBusy(id, n)
				tc := p.Run(runCtx, n)
				results.Store(n, tc)
				r.logger.Debug("test finished", "test", n, "worker", id, "verdict", tc.Verdict)
				r.sink.TestCompleted(tc)
				r.sink.WorkerIdle(id)
				if r.failFast && !tc.Passed && tc.Verdict != api.VerdictCancelled {
					for {
						f := firstFail.Load()
						if f > 0 && f <= int64(n) {
							break
						}
						if firstFail.CompareAndSwap(f, int64(n)) {
							r.logger.Info("stopping at first failure", "test", n)
							break
						}
					}
				}
			}
		}()
	}
	wg.Wait()

	summary.Cancelled = r.stopped.Load() || ctx.Err() != nil
	summary.Tests = make([]api.TestCase, 0, count)
	for n := 1; n <= count; n++ {
		tc, ok := results.Load(n)
		// tests past the first failure count as never run, whatever
		// in-flight result they produced
		if !ok || beyondFailure(n) {
			tc = pipeline.Cancelled(n)
		}
		summary.Tests = append(summary.Tests, tc)
	}
	summary.FinishedAt = time.Now()
	summary.TotalTimeMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()
	aggregate(summary, r.limits)

	r.logger.Info("tests finished", "run", r.runUuid, "passed", summary.Passed, "failed", summary.Failed,
		"cancelled", summary.Cancelled, "took", time.Duration(summary.TotalTimeMs)*time.Millisecond)
	r.sink.AllTestsCompleted(summary.OverallPassed)

	if err := r.store.Save(context.WithoutCancel(ctx), *summary); err != nil {
		r.logger.Warn("failed to persist summary", "run", r.runUuid, "error", err)
	}
	return summary, nil
}

// Execute compiles and runs the tests described by req.
func (r *Runner) Execute(ctx context.Context, req api.RunReq) (*api.TestSummary, error) {
	workers, err := r.Apply(req)
	if err != nil {
		return nil, err
	}
	if err := r.Compile(ctx); err != nil {
		return nil, err
	}
	return r.Run(ctx, req.Tests, workers)
}
