package api

// RunReq describes one test run over a prepared workspace
type RunReq struct {
	RunUuid  string   `json:"run_uuid"`
	TestType TestType `json:"test_type"`

	Tests   int   `json:"tests"`
	Workers int   `json:"workers"`
	// nil selects the default for the test type
	FailFast *bool `json:"fail_fast,omitempty"`

	TimeLimitMs   int64 `json:"time_limit_ms"`
	MemoryLimitMB int64 `json:"memory_limit_mb"`

	CompareMode string `json:"compare_mode,omitempty"`
}
