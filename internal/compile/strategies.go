package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/programme-lv/cptester/internal/execute"
	"github.com/programme-lv/cptester/internal/lang"
)

// pythonSyntaxCheck compiles the script in memory without writing .pyc files.
const pythonSyntaxCheck = "import sys; compile(open(sys.argv[1], encoding='utf-8').read(), sys.argv[1], 'exec')"

func (s *Service) compileCpp(ctx context.Context, src SourceFile, cfg lang.Config) (*Artifact, error) {
	exe := filepath.Join(s.outDir, string(src.Role)+".exe")

	args := []string{cfg.Compiler}
	if cfg.Standard != "" {
		args = append(args, "-std="+cfg.Standard)
	}
	if cfg.Optimization != "" {
		args = append(args, "-"+strings.TrimPrefix(cfg.Optimization, "-"))
	}
	args = append(args, cfg.Flags...)
	args = append(args, src.Path, "-o", exe)

	if err := s.runTool(ctx, src, cfg, args); err != nil {
		return nil, err
	}
	return &Artifact{Path: exe, Command: []string{exe}}, nil
}

func (s *Service) preparePython(ctx context.Context, src SourceFile, cfg lang.Config) (*Artifact, error) {
	if _, err := exec.LookPath(cfg.Runtime); err != nil {
		return nil, &CompilationError{
			Role:   src.Role,
			Source: src.Name(),
			Output: fmt.Sprintf("python interpreter %q not found on PATH", cfg.Runtime),
		}
	}
	if err := s.runTool(ctx, src, cfg, []string{cfg.Runtime, "-c", pythonSyntaxCheck, src.Path}); err != nil {
		return nil, err
	}

	cmd := append([]string{cfg.Runtime}, cfg.Flags...)
	cmd = append(cmd, src.Path)
	return &Artifact{Path: src.Path, Command: cmd}, nil
}

func (s *Service) compileJava(ctx context.Context, src SourceFile, cfg lang.Config) (*Artifact, error) {
	if _, err := exec.LookPath(cfg.Runtime); err != nil {
		return nil, &CompilationError{
			Role:   src.Role,
			Source: src.Name(),
			Output: fmt.Sprintf("java runtime %q not found on PATH", cfg.Runtime),
		}
	}
	className := strings.TrimSuffix(src.Name(), filepath.Ext(src.Name()))

	// per-role class dir: two roles may both declare Main
	classDir := filepath.Join(s.outDir, string(src.Role)+"_classes")
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create class dir: %w", err)
	}

	args := append([]string{cfg.Compiler}, cfg.Flags...)
	args = append(args, "-d", classDir, src.Path)
	if err := s.runTool(ctx, src, cfg, args); err != nil {
		return nil, err
	}
	return &Artifact{
		Path:    filepath.Join(classDir, className+".class"),
		Command: []string{cfg.Runtime, "-cp", classDir, className},
		Dir:     classDir,
	}, nil
}

// runTool invokes a compiler and maps every failure to a *CompilationError
// except cancellation, which is returned as is.
func (s *Service) runTool(ctx context.Context, src SourceFile, cfg lang.Config, args []string) error {
	s.compiles.Add(1)
	res, err := s.exec.Run(ctx, execute.Cmd{
		Args:    args,
		Timeout: cfg.CompileTimeout,
	})

	fail := func(output string) error {
		return &CompilationError{Role: src.Role, Source: src.Name(), Output: output}
	}
	var le *execute.LaunchError
	switch {
	case errors.Is(err, execute.ErrCancelled):
		return err
	case errors.As(err, &le):
		return fail(fmt.Sprintf("compiler %q not found or not executable: %v", args[0], le.Err))
	case errors.Is(err, execute.ErrTimeout):
		return fail(fmt.Sprintf("compilation timed out after %s", cfg.CompileTimeout))
	case err != nil:
		return fail(err.Error())
	case res.ExitCode != 0:
		out := strings.TrimSpace(string(res.Stderr) + string(res.Stdout))
		if out == "" {
			out = fmt.Sprintf("compiler exited with code %d", res.ExitCode)
		}
		return fail(out)
	}
	return nil
}
