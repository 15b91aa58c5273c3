package pipeline

import (
	"context"

	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/execute"
	"golang.org/x/sync/errgroup"
)

// generate runs the generator stage and returns its stdout, or false
// when the test case has already been failed.
func (p *Pipeline) generate(ctx context.Context, tc *testCase) ([]byte, bool) {
	if ctx.Err() != nil {
		tc.fail(api.VerdictCancelled, "Cancelled")
		return nil, false
	}
	res, err := p.exec(ctx, api.RoleGenerator, stageOpts{timeout: p.limits.Generator})
	tc.record(api.RoleGenerator, res)
	if v, detail := stageFailure(api.RoleGenerator, res, err); v != "" {
		if v != api.VerdictCancelled {
			// the candidate was never judged
			v = api.VerdictFailed
		}
		tc.failAt(api.RoleGenerator, v, detail)
		return nil, false
	}
	input := res.Stdout
	tc.Input = truncate(string(input), api.MaxDisplayChars)
	p.saveInput(tc.TestNumber, input)
	return input, true
}

func (p *Pipeline) runComparison(ctx context.Context, n int) api.TestCase {
	tc := newCase(n)
	input, ok := p.generate(ctx, tc)
	if !ok {
		return tc.TestCase
	}
	if ctx.Err() != nil {
		tc.fail(api.VerdictCancelled, "Cancelled")
		return tc.TestCase
	}

	type outcome struct {
		res *execute.Result
		err error
	}
	var test, correct outcome
	var g errgroup.Group
	g.Go(func() error {
		test.res, test.err = p.exec(ctx, api.RoleTest, stageOpts{stdin: input, timeout: p.limits.Candidate})
		return nil
	})
	g.Go(func() error {
		correct.res, correct.err = p.exec(ctx, api.RoleCorrect, stageOpts{stdin: input, timeout: p.limits.Candidate})
		return nil
	})
	_ = g.Wait()

	tc.record(api.RoleTest, test.res)
	tc.record(api.RoleCorrect, correct.res)
	if test.res != nil {
		p.saveOutput(api.RoleTest, n, test.res.Stdout)
	}
	if correct.res != nil {
		p.saveOutput(api.RoleCorrect, n, correct.res.Stdout)
	}

	if v, detail := stageFailure(api.RoleTest, test.res, test.err); v != "" {
		tc.failAt(api.RoleTest, v, detail)
		return tc.TestCase
	}
	if v, detail := stageFailure(api.RoleCorrect, correct.res, correct.err); v != "" {
		if v != api.VerdictCancelled {
			// a broken reference says nothing about the candidate
			v = api.VerdictFailed
		}
		tc.failAt(api.RoleCorrect, v, detail)
		return tc.TestCase
	}

	expected, got := string(correct.res.Stdout), string(test.res.Stdout)
	if Equal(p.compare, expected, got) {
		tc.Passed = true
		tc.Verdict = api.VerdictMatch
		return tc.TestCase
	}
	tc.fail(api.VerdictMismatch, describeMismatch(p.compare, expected, got))
	return tc.TestCase
}
