package multigath_test

import (
	"testing"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/gatherer/multigath"
	"github.com/programme-lv/cptester/internal/runner/mocks"
	"go.uber.org/mock/gomock"
)

func TestFansOutToEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, b := mocks.NewMockProgressSink(ctrl), mocks.NewMockProgressSink(ctrl)
	for _, m := range []*mocks.MockProgressSink{a, b} {
		gomock.InOrder(
			m.EXPECT().TestStarted(1, 1),
			m.EXPECT().WorkerBusy(1, 1),
			m.EXPECT().TestCompleted(api.TestCase{TestNumber: 1}),
			m.EXPECT().WorkerIdle(1),
			m.EXPECT().AllTestsCompleted(false),
		)
	}

	g := multigath.New(a, nil, b)
	g.TestStarted(1, 1)
	g.WorkerBusy(1, 1)
	g.TestCompleted(api.TestCase{TestNumber: 1})
	g.WorkerIdle(1)
	g.AllTestsCompleted(false)
}
