package runner

import (
	"github.com/programme-lv/cptester/api"
	"github.com/programme-lv/cptester/internal/pipeline"
)

// aggregate fills the counters and the per-type analysis of s from its
// tests.
func aggregate(s *api.TestSummary, limits pipeline.Limits) {
	s.Passed, s.Failed = 0, 0
	var failed []int
	for _, tc := range s.Tests {
		if tc.Passed {
			s.Passed++
			continue
		}
		s.Failed++
		if tc.Verdict != api.VerdictCancelled {
			failed = append(failed, tc.TestNumber)
		}
	}
	s.OverallPassed = len(s.Tests) > 0 && s.Failed == 0
	if failed == nil {
		failed = []int{}
	}

	switch s.TestType {
	case api.Comparator:
		s.Analysis = api.Analysis{Comparison: analyzeComparison(s.Tests, failed)}
	case api.Validator:
		s.Analysis = api.Analysis{Validator: analyzeValidator(s.Tests, failed)}
	case api.Benchmarker:
		s.Analysis = api.Analysis{Benchmark: analyzeBenchmark(s.Tests, failed, limits)}
	}
}

// avgStage averages the wall time of role over the tests that ran it.
func avgStage(tests []api.TestCase, role api.Role) float64 {
	var sum int64
	var n int
	for _, tc := range tests {
		if rd, ok := tc.Runs[role]; ok && rd != nil {
			sum += rd.WallMillis
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func analyzeComparison(tests []api.TestCase, failed []int) *api.ComparisonAnalysis {
	a := &api.ComparisonAnalysis{FailedTests: failed}
	for _, tc := range tests {
		switch tc.Verdict {
		case api.VerdictMatch:
			a.Matching++
		case api.VerdictMismatch:
			a.Mismatched++
		}
		if tc.Verdict != api.VerdictCancelled {
			switch tc.FailedRole {
			case api.RoleGenerator:
				a.GeneratorFailures++
			case api.RoleTest:
				a.TestFailures++
			case api.RoleCorrect:
				a.CorrectFailures++
			}
		}
		if tc.TimedOut {
			a.Timeouts++
		}
	}
	a.AvgGeneratorMs = avgStage(tests, api.RoleGenerator)
	a.AvgTestMs = avgStage(tests, api.RoleTest)
	a.AvgCorrectMs = avgStage(tests, api.RoleCorrect)
	return a
}

func analyzeValidator(tests []api.TestCase, failed []int) *api.ValidatorAnalysis {
	a := &api.ValidatorAnalysis{Verdicts: make(map[api.Verdict]int), FailedTests: failed}
	for _, tc := range tests {
		a.Verdicts[tc.Verdict]++
	}
	a.AvgGeneratorMs = avgStage(tests, api.RoleGenerator)
	a.AvgTestMs = avgStage(tests, api.RoleTest)
	a.AvgValidatorMs = avgStage(tests, api.RoleValidator)
	return a
}

func analyzeBenchmark(tests []api.TestCase, failed []int, limits pipeline.Limits) *api.BenchmarkAnalysis {
	a := &api.BenchmarkAnalysis{
		TimeLimitMs:   limits.TimeLimit.Milliseconds(),
		MemoryLimitMB: limits.MemoryLimitMB,
		FailedTests:   failed,
	}
	var timeSum, memSum int64
	var ran int
	for _, tc := range tests {
		switch tc.Verdict {
		case api.VerdictTimeLimitExceeded:
			a.TimeLimitHits++
		case api.VerdictMemoryLimitExceeded:
			a.MemoryLimitHit++
		case api.VerdictRuntimeError:
			a.RuntimeErrors++
		}
		if _, ok := tc.Runs[api.RoleTest]; !ok {
			continue
		}
		ran++
		timeSum += tc.ElapsedMillis
		memSum += tc.PeakMemoryKiB
		a.MaxTimeMs = max(a.MaxTimeMs, tc.ElapsedMillis)
		a.MaxMemoryKiB = max(a.MaxMemoryKiB, tc.PeakMemoryKiB)
	}
	if ran > 0 {
		a.AvgTimeMs = float64(timeSum) / float64(ran)
		a.AvgMemoryKiB = float64(memSum) / float64(ran)
	}
	return a
}
