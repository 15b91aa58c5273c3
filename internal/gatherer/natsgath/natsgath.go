// Package natsgath streams run progress as JSON messages over NATS.
package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/cptester/api"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type natsGatherer struct {
	pub     Publisher
	subject string
	runUuid string
	logger  *slog.Logger
}

// New creates a gatherer that streams the events of one run to subject.
func New(nc *nats.Conn, runUuid string, subject string) *natsGatherer {
	return NewWithPublisher(nc, runUuid, subject)
}

func NewWithPublisher(pub Publisher, runUuid string, subject string) *natsGatherer {
	return &natsGatherer{
		pub:     pub,
		subject: subject,
		runUuid: runUuid,
		logger:  slog.Default().With("subject", subject),
	}
}

// Connect dials url with the options used by the CLI.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("cptester"),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
	)
}

func (s *natsGatherer) send(msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal message", "error", err)
		return
	}
	if err := s.pub.Publish(s.subject, b); err != nil {
		s.logger.Warn("failed to publish message to NATS", "error", err)
	}
}

func (s *natsGatherer) CompilationOutput(text string) {
	s.send(api.NewCompileOutput(s.runUuid, api.TrimToRect(text, api.MaxStreamTextHeight, api.MaxStreamTextWidth)))
}

func (s *natsGatherer) CompilationFinished(success bool) {
	s.send(api.NewFinishCompile(s.runUuid, success))
}

func (s *natsGatherer) TestStarted(current, total int) {
	s.send(api.NewStartTest(s.runUuid, current, total))
}

func (s *natsGatherer) WorkerBusy(workerID, testNumber int) {
	s.send(api.NewWorkerBusy(s.runUuid, workerID, testNumber))
}

func (s *natsGatherer) WorkerIdle(workerID int) {
	s.send(api.NewWorkerIdle(s.runUuid, workerID))
}

func (s *natsGatherer) TestCompleted(tc api.TestCase) {
	s.send(api.NewFinishTest(s.runUuid, tc.Trimmed(api.MaxStreamTextHeight, api.MaxStreamTextWidth)))
}

func (s *natsGatherer) AllTestsCompleted(overallPassed bool) {
	s.send(api.NewFinishAllTests(s.runUuid, overallPassed))
}
