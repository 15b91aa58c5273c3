package api

// RuntimeData contains execution information for one stage of a test
type RuntimeData struct {
	Stdout   string `json:"out"`
	Stderr   string `json:"err"`
	ExitCode int    `json:"exit"`

	WallMillis    int64 `json:"wall_ms"`
	MemoryKiBytes int64 `json:"mem_kib"`

	TimedOut       bool `json:"timed_out,omitempty"`
	MemoryExceeded bool `json:"memory_exceeded,omitempty"`
}
