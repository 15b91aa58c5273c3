package execute

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"syscall"
)

var (
	ErrTimeout     = errors.New("time limit exceeded")
	ErrMemoryLimit = errors.New("memory limit exceeded")
	ErrCancelled   = errors.New("execution cancelled")
)

// LaunchError means the program could not be started: missing binary,
// missing permission or an unsupported executable format.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %q: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// SystemError is an OS-level failure while spawning or waiting.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system error during %s: %v", e.Op, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

func isLaunchFailure(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}

// Describe renders an execution error for a test result detail.
func Describe(err error) string {
	var le *LaunchError
	var se *SystemError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &le):
		return "Launch error: " + le.Err.Error()
	case errors.Is(err, ErrTimeout):
		return "Timeout: " + err.Error()
	case errors.Is(err, ErrMemoryLimit):
		return "Memory limit exceeded"
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	case errors.As(err, &se):
		return "System error: " + se.Err.Error()
	}
	return "Execution error: " + err.Error()
}
