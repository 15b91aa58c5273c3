// Package multigath fans run events out to several sinks.
package multigath

import (
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/runner"
)

type MultiGatherer struct {
	sinks []runner.ProgressSink
}

// New skips nil sinks.
func New(sinks ...runner.ProgressSink) *MultiGatherer {
	m := &MultiGatherer{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiGatherer) Add(s runner.ProgressSink) { m.sinks = append(m.sinks, s) }

func (m *MultiGatherer) CompilationOutput(text string) {
	for _, s := range m.sinks {
		s.CompilationOutput(text)
	}
}

func (m *MultiGatherer) CompilationFinished(success bool) {
	for _, s := range m.sinks {
		s.CompilationFinished(success)
	}
}

func (m *MultiGatherer) TestStarted(current, total int) {
	for _, s := range m.sinks {
		s.TestStarted(current, total)
	}
}

func (m *MultiGatherer) WorkerBusy(workerID, testNumber int) {
	for _, s := range m.sinks {
		s.WorkerBusy(workerID, testNumber)
	}
}

func (m *MultiGatherer) WorkerIdle(workerID int) {
	for _, s := range m.sinks {
		s.WorkerIdle(workerID)
	}
}

func (m *MultiGatherer) TestCompleted(tc api.TestCase) {
	for _, s := range m.sinks {
		s.TestCompleted(tc)
	}
}

func (m *MultiGatherer) AllTestsCompleted(overallPassed bool) {
	for _, s := range m.sinks {
		s.AllTestsCompleted(overallPassed)
	}
}
