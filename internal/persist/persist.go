// Package persist defines where finished run summaries are handed off.
package persist

import (
	"context"
	"errors"

	"github.com/programme-lv/cptester/api"
)

// Sink receives one summary per completed run.
type Sink interface {
	Save(ctx context.Context, summary api.TestSummary) error
}

type Nop struct{}

func (Nop) Save(context.Context, api.TestSummary) error { return nil }

// Multi saves to every sink and joins their errors.
type Multi []Sink

func (m Multi) Save(ctx context.Context, summary api.TestSummary) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
