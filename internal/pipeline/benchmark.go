package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/programme-lv/cptester/api"
)

func (p *Pipeline) runBenchmark(ctx context.Context, n int) api.TestCase {
	tc := newCase(n)
	input, ok := p.generate(ctx, tc)
	if !ok {
		return tc.TestCase
	}
	if ctx.Err() != nil {
		tc.fail(api.VerdictCancelled, "Cancelled")
		return tc.TestCase
	}

	memLimitKiB := p.limits.MemoryLimitMB * 1024
	res, err := p.exec(ctx, api.RoleTest, stageOpts{
		stdin:          input,
		timeout:        p.limits.TimeLimit,
		memoryLimitKiB: memLimitKiB,
	})
	tc.record(api.RoleTest, res)
	if res != nil {
		p.saveOutput(api.RoleTest, n, res.Stdout)
	}

	// only the candidate counts against the limits
	tc.ElapsedMillis = 0
	tc.PeakMemoryKiB = 0
	if res != nil {
		tc.ElapsedMillis = res.Elapsed.Milliseconds()
		tc.PeakMemoryKiB = res.PeakMemoryKiB
	}
	tc.TestSize = countLines(input)
	if tc.TestSize > 0 && res != nil {
		tc.TimePerElementUs = float64(res.Elapsed.Microseconds()) / float64(tc.TestSize)
		tc.MemoryPerElementKiB = float64(res.PeakMemoryKiB) / float64(tc.TestSize)
	}

	v, detail := stageFailure(api.RoleTest, res, err)
	if v == api.VerdictCancelled || v == api.VerdictFailed || res == nil {
		if v == "" {
			v = api.VerdictFailed
		}
		tc.failAt(api.RoleTest, v, detail)
		return tc.TestCase
	}

	timeOK := !res.TimedOut && res.Elapsed <= p.limits.TimeLimit
	memOK := !res.MemoryExceeded && res.PeakMemoryKiB <= memLimitKiB
	if !timeOK {
		tc.TimedOut = true
	}
	if !memOK {
		tc.MemoryExceeded = true
	}

	var problems []string
	if !timeOK {
		problems = append(problems, fmt.Sprintf("Time Limit Exceeded (%.2fs)", res.Elapsed.Seconds()))
	}
	if !memOK {
		problems = append(problems, fmt.Sprintf("Memory Limit Exceeded (%.1fMB)", res.PeakMemoryMB()))
	}
	switch {
	case !timeOK:
		tc.fail(api.VerdictTimeLimitExceeded, strings.Join(problems, ", "))
	case !memOK:
		tc.fail(api.VerdictMemoryLimitExceeded, strings.Join(problems, ", "))
	case res.ExitCode != 0:
		tc.fail(api.VerdictRuntimeError, fmt.Sprintf("Runtime Error (exit code %d)", res.ExitCode))
	default:
		tc.Passed = true
		tc.Verdict = api.VerdictAccepted
		tc.ErrorDetail = "Accepted"
	}
	if !tc.Passed {
		tc.FailedRole = api.RoleTest
	}
	return tc.TestCase
}

func countLines(input []byte) int {
	s := strings.TrimRight(string(input), "\n")
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
