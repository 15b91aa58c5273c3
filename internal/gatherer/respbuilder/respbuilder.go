package respbuilder

import (
	"sort"
	"sync"
	"time"

	"github.com/programme-lv/cptester/api"
)

// Builder gathers run events and builds a complete api.RunReport.
// It is safe for concurrent use.
type Builder struct {
	runUuid string

	mu       sync.Mutex
	started  time.Time
	finished *time.Time

	compileSuccess bool
	compileOutput  []string

	tests    []api.TestCase
	open     map[int]api.WorkerSpan
	timeline []api.WorkerSpan
	overall  *bool
}

func New(runUuid string) *Builder {
	return &Builder{
		runUuid:       runUuid,
		started:       time.Now(),
		compileOutput: []string{},
		open:          make(map[int]api.WorkerSpan),
	}
}

func (b *Builder) sinceStart() int64 {
	return time.Since(b.started).Milliseconds()
}

// CompilationOutput implements runner.ProgressSink.
func (b *Builder) CompilationOutput(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compileOutput = append(b.compileOutput, text)
}

// CompilationFinished implements runner.ProgressSink.
func (b *Builder) CompilationFinished(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.compileSuccess = success
	if !success {
		now := time.Now()
		b.finished = &now
	}
}

// TestStarted implements runner.ProgressSink.
func (b *Builder) TestStarted(current, total int) {}

// WorkerBusy implements runner.ProgressSink.
func (b *Builder) WorkerBusy(workerID, testNumber int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open[workerID] = api.WorkerSpan{WorkerId: workerID, TestNumber: testNumber, StartMs: b.sinceStart()}
}

// WorkerIdle implements runner.ProgressSink.
func (b *Builder) WorkerIdle(workerID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	span, ok := b.open[workerID]
	if !ok {
		return
	}
	delete(b.open, workerID)
	span.EndMs = b.sinceStart()
	b.timeline = append(b.timeline, span)
}

// TestCompleted implements runner.ProgressSink.
func (b *Builder) TestCompleted(tc api.TestCase) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tests = append(b.tests, tc)
}

// AllTestsCompleted implements runner.ProgressSink.
func (b *Builder) AllTestsCompleted(overallPassed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.finished = &now
	b.overall = &overallPassed
}

// Report builds the api.RunReport from gathered data. Tests are ordered
// by number and the timeline by start time.
func (b *Builder) Report() api.RunReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	tests := append([]api.TestCase{}, b.tests...)
	sort.Slice(tests, func(i, j int) bool { return tests[i].TestNumber < tests[j].TestNumber })
	timeline := append([]api.WorkerSpan{}, b.timeline...)
	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].StartMs < timeline[j].StartMs })

	start := b.started.Format(time.RFC3339)
	finish := start
	total := int64(0)
	if b.finished != nil {
		finish = b.finished.Format(time.RFC3339)
		total = b.finished.Sub(b.started).Milliseconds()
	}
	var overall *bool
	if b.overall != nil {
		v := *b.overall
		overall = &v
	}
	return api.RunReport{
		RunUuid:        b.runUuid,
		CompileSuccess: b.compileSuccess,
		CompileOutput:  append([]string{}, b.compileOutput...),
		Tests:          tests,
		Timeline:       timeline,
		OverallPassed:  overall,
		StartTime:      start,
		FinishTime:     finish,
		TotalTimeMs:    total,
	}
}
