//go:build linux

package execute

import (
	"os"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/procfs"
)

type memSampler struct {
	proc   *procfs.Proc
	maxKiB atomic.Int64
}

func newMemSampler(pid int) *memSampler {
	s := &memSampler{}
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return s
	}
	p, err := fs.Proc(pid)
	if err != nil {
		return s
	}
	s.proc = &p
	return s
}

// sample reads the current peak resident set of the process and returns
// the maximum seen so far.
func (s *memSampler) sample() int64 {
	if s.proc == nil {
		return s.maxKiB.Load()
	}
	var kib int64
	if status, err := s.proc.NewStatus(); err == nil {
		kib = int64(max(status.VmHWM, status.VmRSS) / 1024)
	} else if stat, err := s.proc.Stat(); err == nil {
		kib = int64(stat.ResidentMemory() / 1024)
	}
	for {
		cur := s.maxKiB.Load()
		if kib <= cur || s.maxKiB.CompareAndSwap(cur, kib) {
			return max(cur, kib)
		}
	}
}

func (s *memSampler) peak() int64 { return s.maxKiB.Load() }

// exitMaxRSSKiB reads ru_maxrss, reported in KiB on linux.
func exitMaxRSSKiB(ps *os.ProcessState) int64 {
	if ps == nil {
		return 0
	}
	if ru, ok := ps.SysUsage().(*syscall.Rusage); ok {
		return int64(ru.Maxrss)
	}
	return 0
}
