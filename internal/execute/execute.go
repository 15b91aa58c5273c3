package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPollInterval = 20 * time.Millisecond
	DefaultOutputLimit  = 64 << 20
	defaultWaitDelay    = time.Second
)

// Cmd describes a single process invocation
type Cmd struct {
	Args  []string
	Stdin []byte
	Dir   string
	Env   []string

	// Zero means no limit
	Timeout        time.Duration
	MemoryLimitKiB int64
}

func (c Cmd) String() string {
	return strings.Join(c.Args, " ")
}

// Result is returned by Run even when the process failed or was killed.
type Result struct {
	Command  []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int

	Elapsed       time.Duration
	PeakMemoryKiB int64

	TimedOut        bool
	MemoryExceeded  bool
	OutputTruncated bool
}

func (r *Result) PeakMemoryMB() float64 {
	return float64(r.PeakMemoryKiB) / 1024
}

// Summary formats the result as a single human readable line.
func (r *Result) Summary() string {
	status := "OK"
	switch {
	case r.TimedOut:
		status = "TIMEOUT"
	case r.MemoryExceeded:
		status = "MEMORY LIMIT"
	case r.ExitCode != 0:
		status = fmt.Sprintf("EXIT %d", r.ExitCode)
	}
	return fmt.Sprintf("%s: %s in %.3fs, %.1fMB",
		strings.Join(r.Command, " "), status, r.Elapsed.Seconds(), r.PeakMemoryMB())
}

// Runner is implemented by *Executor and by test doubles.
type Runner interface {
	Run(ctx context.Context, c Cmd) (*Result, error)
}

// Executor runs processes with timeouts, process-tree termination and
// peak memory sampling.
type Executor struct {
	PollInterval time.Duration
	OutputLimit  int
	Logger       *slog.Logger
}

func New() *Executor {
	return &Executor{
		PollInterval: DefaultPollInterval,
		OutputLimit:  DefaultOutputLimit,
		Logger:       slog.Default(),
	}
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Run starts the command, feeds it stdin and waits for it to finish.
// The returned error is a *LaunchError, a *SystemError, or wraps
// ErrTimeout, ErrMemoryLimit or ErrCancelled.
func (e *Executor) Run(ctx context.Context, c Cmd) (*Result, error) {
	res := &Result{Command: c.Args, ExitCode: -1}
	if len(c.Args) == 0 {
		return res, &LaunchError{Err: errors.New("empty command")}
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	bin := c.Args[0]
	if c.Dir != "" && !filepath.IsAbs(bin) && strings.ContainsRune(bin, filepath.Separator) {
		bin = filepath.Join(c.Dir, bin)
	}
	path, err := exec.LookPath(bin)
	if err != nil && !errors.Is(err, exec.ErrDot) {
		return res, &LaunchError{Command: c.Args[0], Err: err}
	}

	cmd := exec.Command(path, c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	stdout := &cappedBuffer{limit: e.OutputLimit}
	stderr := &cappedBuffer{limit: e.OutputLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = defaultWaitDelay
	setProcAttr(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Elapsed = time.Since(start)
		if isLaunchFailure(err) {
			return res, &LaunchError{Command: c.Args[0], Err: err}
		}
		return res, &SystemError{Op: "start", Err: err}
	}

	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	sampler := newMemSampler(cmd.Process.Pid)
	memHit := make(chan struct{}, 1)
	stopSampling := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopSampling:
				return
			case <-ticker.C:
				kib := sampler.sample()
				if c.MemoryLimitKiB > 0 && kib > c.MemoryLimitKiB {
					memHit <- struct{}{}
					return
				}
			}
		}
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var timeout <-chan time.Time
	if c.Timeout > 0 {
		timer := time.NewTimer(c.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var waitErr, stopErr error
	select {
	case waitErr = <-waitCh:
	case <-timeout:
		res.TimedOut = true
		stopErr = fmt.Errorf("%w after %s", ErrTimeout, c.Timeout)
		waitErr = e.kill(cmd, waitCh, "timeout")
	case <-memHit:
		res.MemoryExceeded = true
		stopErr = fmt.Errorf("%w: above %d KiB", ErrMemoryLimit, c.MemoryLimitKiB)
		waitErr = e.kill(cmd, waitCh, "memory limit")
	case <-ctx.Done():
		stopErr = fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		waitErr = e.kill(cmd, waitCh, "cancelled")
	}
	res.Elapsed = time.Since(start)
	close(stopSampling)
	wg.Wait()

	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	res.OutputTruncated = stdout.truncated || stderr.truncated
	res.PeakMemoryKiB = max(sampler.peak(), exitMaxRSSKiB(cmd.ProcessState))
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if stopErr != nil {
		return res, stopErr
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		return res, &SystemError{Op: "wait", Err: waitErr}
	}
	return res, nil
}

func (e *Executor) kill(cmd *exec.Cmd, waitCh <-chan error, reason string) error {
	if err := killTree(cmd.Process); err != nil {
		e.logger().Warn("failed to kill process tree",
			"pid", cmd.Process.Pid, "reason", reason, "error", err)
	} else {
		e.logger().Debug("killed process tree", "pid", cmd.Process.Pid, "reason", reason)
	}
	return <-waitCh
}
