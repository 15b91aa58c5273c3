package runner

import "github.com/programme-lv/cptester/api"

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks github.com/programme-lv/cptester/internal/runner ProgressSink

// ProgressSink receives run events. Calls arrive concurrently from
// different workers.
type ProgressSink interface {
	CompilationOutput(text string)
	CompilationFinished(success bool)

	TestStarted(current, total int)
	WorkerBusy(workerID, testNumber int)
	WorkerIdle(workerID int)
	TestCompleted(tc api.TestCase)
	AllTestsCompleted(overallPassed bool)
}

type NopSink struct{}

func (NopSink) CompilationOutput(string)   {}
func (NopSink) CompilationFinished(bool)   {}
func (NopSink) TestStarted(int, int)       {}
func (NopSink) WorkerBusy(int, int)        {}
func (NopSink) WorkerIdle(int)             {}
func (NopSink) TestCompleted(api.TestCase) {}
func (NopSink) AllTestsCompleted(bool)     {}
