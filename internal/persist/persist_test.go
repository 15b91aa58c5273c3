package persist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/persist"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	saved []string
	err   error
}

func (r *recorder) Save(_ context.Context, s api.TestSummary) error {
	r.saved = append(r.saved, s.RunUuid)
	return r.err
}

func TestMultiSavesToAll(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recorder{err: boom}, &recorder{}
	err := persist.Multi{a, persist.Nop{}, b}.Save(context.Background(), api.TestSummary{RunUuid: "r1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"r1"}, a.saved)
	assert.Equal(t, []string{"r1"}, b.saved)
}
