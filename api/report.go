package api

// WorkerSpan records one test assignment of a worker
type WorkerSpan struct {
	WorkerId   int   `json:"worker_id"`
	TestNumber int   `json:"test_number"`
	StartMs    int64 `json:"start_ms"`
	EndMs      int64 `json:"end_ms"`
}

// RunReport is a complete, non-streaming record of a run built from progress events
type RunReport struct {
	RunUuid string `json:"run_uuid"`

	CompileSuccess bool     `json:"compile_success"`
	CompileOutput  []string `json:"compile_output"`

	Tests         []TestCase   `json:"tests"`
	Timeline      []WorkerSpan `json:"timeline"`
	OverallPassed *bool        `json:"overall_passed"`

	StartTime   string `json:"start_time"`
	FinishTime  string `json:"finish_time"`
	TotalTimeMs int64  `json:"total_time_ms"`
}
