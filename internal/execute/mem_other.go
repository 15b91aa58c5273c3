//go:build !linux

package execute

import "os"

// Memory sampling is only implemented on linux.
type memSampler struct{}

func newMemSampler(pid int) *memSampler { return &memSampler{} }

func (s *memSampler) sample() int64 { return 0 }

func (s *memSampler) peak() int64 { return 0 }

func exitMaxRSSKiB(ps *os.ProcessState) int64 { return 0 }
