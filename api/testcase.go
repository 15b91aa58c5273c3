package api

import "time"

// Maximum number of characters of input/output kept on a TestCase.
// Full data is persisted in the workspace.
const MaxDisplayChars = 500

// TestCase is the outcome of one pipeline iteration
type TestCase struct {
	TestNumber int     `json:"test_number"`
	Passed     bool    `json:"passed"`
	Verdict    Verdict `json:"verdict"`

	// Reason for failure, validator message or benchmark remark
	ErrorDetail string `json:"error_detail,omitempty"`
	// Stage that did not complete normally
	FailedRole Role `json:"failed_role,omitempty"`

	Input string `json:"input"`

	// Per-role runtime data for every stage that was reached
	Runs map[Role]*RuntimeData `json:"runs,omitempty"`

	ElapsedMillis  int64 `json:"elapsed_ms"`
	PeakMemoryKiB  int64 `json:"peak_mem_kib"`
	TimedOut       bool  `json:"timed_out"`
	MemoryExceeded bool  `json:"memory_exceeded,omitempty"`

	ValidatorExitCode *int `json:"validator_exit_code,omitempty"`

	// Benchmark metrics; TestSize is the input line count
	TestSize            int     `json:"test_size,omitempty"`
	TimePerElementUs    float64 `json:"time_per_element_us,omitempty"`
	MemoryPerElementKiB float64 `json:"mem_per_element_kib,omitempty"`
}

// Output returns the stdout recorded for a role, if any.
func (tc *TestCase) Output(role Role) string {
	if rd, ok := tc.Runs[role]; ok && rd != nil {
		return rd.Stdout
	}
	return ""
}

// StageMillis returns the wall time recorded for a role.
func (tc *TestCase) StageMillis(role Role) int64 {
	if rd, ok := tc.Runs[role]; ok && rd != nil {
		return rd.WallMillis
	}
	return 0
}

// TestSummary aggregates one run
type TestSummary struct {
	RunUuid  string   `json:"run_uuid"`
	TestType TestType `json:"test_type"`

	Total         int  `json:"total"`
	Passed        int  `json:"passed"`
	Failed        int  `json:"failed"`
	OverallPassed bool `json:"overall_passed"`
	Cancelled     bool `json:"cancelled"`

	Tests []TestCase `json:"tests"`

	Analysis Analysis `json:"analysis"`

	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	TotalTimeMs int64     `json:"total_time_ms"`
	Workers     int       `json:"workers"`
}

// Analysis carries the per-variant statistics; exactly one field is set.
type Analysis struct {
	Comparison *ComparisonAnalysis `json:"comparison,omitempty"`
	Validator  *ValidatorAnalysis  `json:"validator,omitempty"`
	Benchmark  *BenchmarkAnalysis  `json:"benchmark,omitempty"`
}

type ComparisonAnalysis struct {
	Matching          int `json:"matching_outputs"`
	Mismatched        int `json:"mismatched_outputs"`
	GeneratorFailures int `json:"generator_failures"`
	TestFailures      int `json:"test_failures"`
	CorrectFailures   int `json:"correct_failures"`
	Timeouts          int `json:"timeouts"`

	AvgGeneratorMs float64 `json:"avg_generator_ms"`
	AvgTestMs      float64 `json:"avg_test_ms"`
	AvgCorrectMs   float64 `json:"avg_correct_ms"`

	FailedTests []int `json:"failed_tests"`
}

type ValidatorAnalysis struct {
	Verdicts map[Verdict]int `json:"verdicts"`

	AvgGeneratorMs float64 `json:"avg_generator_ms"`
	AvgTestMs      float64 `json:"avg_test_ms"`
	AvgValidatorMs float64 `json:"avg_validator_ms"`

	FailedTests []int `json:"failed_tests"`
}

type BenchmarkAnalysis struct {
	TimeLimitMs   int64 `json:"time_limit_ms"`
	MemoryLimitMB int64 `json:"memory_limit_mb"`

	MaxTimeMs      int64   `json:"max_time_ms"`
	AvgTimeMs      float64 `json:"avg_time_ms"`
	MaxMemoryKiB   int64   `json:"max_mem_kib"`
	AvgMemoryKiB   float64 `json:"avg_mem_kib"`
	TimeLimitHits  int     `json:"tle_count"`
	MemoryLimitHit int     `json:"mle_count"`
	RuntimeErrors  int     `json:"runtime_errors"`

	FailedTests []int `json:"failed_tests"`
}
