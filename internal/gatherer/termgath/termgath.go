// Package termgath prints run progress as coloured terminal lines.
package termgath

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/cptester/api"
)

// TerminalGatherer writes one line per event. It is safe for concurrent use.
type TerminalGatherer struct {
	StartedAt time.Time

	mu      sync.Mutex
	out     io.Writer
	verbose bool

	ok   *color.Color
	bad  *color.Color
	info *color.Color
	dim  *color.Color
}

// New writes to out; verbose adds worker and per-stage lines.
func New(out io.Writer, verbose bool) *TerminalGatherer {
	return &TerminalGatherer{
		StartedAt: time.Now(),
		out:       out,
		verbose:   verbose,
		ok:        color.New(color.FgGreen, color.Bold),
		bad:       color.New(color.FgRed, color.Bold),
		info:      color.New(color.FgCyan),
		dim:       color.New(color.Faint),
	}
}

func (t *TerminalGatherer) printf(c *color.Color, format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c.Fprintf(t.out, format, args...)
}

func (t *TerminalGatherer) CompilationOutput(text string) {
	t.printf(t.dim, "%s\n", strings.TrimRight(text, "\n"))
}

func (t *TerminalGatherer) CompilationFinished(success bool) {
	if success {
		t.printf(t.ok, "-- Compilation finished --\n")
		return
	}
	t.printf(t.bad, "-- Compilation failed --\n")
}

func (t *TerminalGatherer) TestStarted(current, total int) {
	if t.verbose {
		t.printf(t.info, "-> Test %d/%d started\n", current, total)
	}
}

func (t *TerminalGatherer) WorkerBusy(workerID, testNumber int) {
	if t.verbose {
		t.printf(t.dim, "   worker %d: test %d\n", workerID, testNumber)
	}
}

func (t *TerminalGatherer) WorkerIdle(workerID int) {
	if t.verbose {
		t.printf(t.dim, "   worker %d: idle\n", workerID)
	}
}

func (t *TerminalGatherer) TestCompleted(tc api.TestCase) {
	c := t.bad
	if tc.Passed {
		c = t.ok
	} else if tc.Verdict == api.VerdictCancelled {
		c = t.dim
	}
	line := fmt.Sprintf("<- Test %d: %s (%dms, %.1fMB)", tc.TestNumber, tc.Verdict,
		tc.ElapsedMillis, float64(tc.PeakMemoryKiB)/1024)
	if !tc.Passed && tc.ErrorDetail != "" {
		line += "\n   " + strings.ReplaceAll(api.TrimToRect(tc.ErrorDetail, 5, 120), "\n", "\n   ")
	}
	t.printf(c, "%s\n", line)
	if t.verbose {
		for _, role := range []api.Role{api.RoleGenerator, api.RoleTest, api.RoleCorrect, api.RoleValidator} {
			if rd, ok := tc.Runs[role]; ok && rd != nil {
				t.printf(t.dim, "   %s: exit=%d wall=%dms mem=%dKiB\n", role, rd.ExitCode, rd.WallMillis, rd.MemoryKiBytes)
			}
		}
	}
}

func (t *TerminalGatherer) AllTestsCompleted(overallPassed bool) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if overallPassed {
		t.printf(t.ok, "== All tests passed in %s ==\n", dur)
		return
	}
	t.printf(t.bad, "== Tests failed after %s ==\n", dur)
}

// Summary prints the totals and the per-type analysis of a finished run.
func (t *TerminalGatherer) Summary(s *api.TestSummary) {
	c := t.ok
	if !s.OverallPassed {
		c = t.bad
	}
	t.printf(c, "%s run %s: %d/%d passed", s.TestType, s.RunUuid, s.Passed, s.Total)
	if s.Cancelled {
		t.printf(t.dim, " (cancelled)")
	}
	t.printf(t.dim, " in %dms with %d workers\n", s.TotalTimeMs, s.Workers)

	switch {
	case s.Analysis.Comparison != nil:
		a := s.Analysis.Comparison
		t.printf(t.info, "  matching %d, mismatched %d, timeouts %d\n", a.Matching, a.Mismatched, a.Timeouts)
		t.printf(t.info, "  failures: generator %d, test %d, correct %d\n", a.GeneratorFailures, a.TestFailures, a.CorrectFailures)
		t.printf(t.dim, "  avg ms: generator %.1f, test %.1f, correct %.1f\n", a.AvgGeneratorMs, a.AvgTestMs, a.AvgCorrectMs)
	case s.Analysis.Validator != nil:
		a := s.Analysis.Validator
		for _, v := range []api.Verdict{api.VerdictCorrect, api.VerdictWrongAnswer, api.VerdictPresentationError, api.VerdictValidatorError} {
			if n := a.Verdicts[v]; n > 0 {
				t.printf(t.info, "  %s: %d\n", v, n)
			}
		}
		t.printf(t.dim, "  avg ms: generator %.1f, test %.1f, validator %.1f\n", a.AvgGeneratorMs, a.AvgTestMs, a.AvgValidatorMs)
	case s.Analysis.Benchmark != nil:
		a := s.Analysis.Benchmark
		t.printf(t.info, "  limits %dms / %dMB\n", a.TimeLimitMs, a.MemoryLimitMB)
		t.printf(t.info, "  time max %dms avg %.1fms, memory max %.1fMB avg %.1fMB\n",
			a.MaxTimeMs, a.AvgTimeMs, float64(a.MaxMemoryKiB)/1024, a.AvgMemoryKiB/1024)
		t.printf(t.info, "  TLE %d, MLE %d, RE %d\n", a.TimeLimitHits, a.MemoryLimitHit, a.RuntimeErrors)
	}
}
