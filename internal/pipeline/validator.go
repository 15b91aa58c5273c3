package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/programme-lv/cptester/api"
)

// Validator exit codes
const (
	ExitCorrect           = 0
	ExitWrongAnswer       = 1
	ExitPresentationError = 2
)

// VerdictForExitCode maps a validator exit code to a verdict. Every code
// outside 0, 1 and 2 is a validator error, never a wrong answer.
func VerdictForExitCode(code int) api.Verdict {
	switch code {
	case ExitCorrect:
		return api.VerdictCorrect
	case ExitWrongAnswer:
		return api.VerdictWrongAnswer
	case ExitPresentationError:
		return api.VerdictPresentationError
	}
	return api.VerdictValidatorError
}

func (p *Pipeline) runValidation(ctx context.Context, n int) api.TestCase {
	tc := newCase(n)
	input, ok := p.generate(ctx, tc)
	if !ok {
		return tc.TestCase
	}
	if ctx.Err() != nil {
		tc.fail(api.VerdictCancelled, "Cancelled")
		return tc.TestCase
	}

	res, err := p.exec(ctx, api.RoleTest, stageOpts{stdin: input, timeout: p.limits.Candidate})
	tc.record(api.RoleTest, res)
	if res != nil {
		p.saveOutput(api.RoleTest, n, res.Stdout)
	}
	if v, detail := stageFailure(api.RoleTest, res, err); v != "" {
		tc.failAt(api.RoleTest, v, detail)
		return tc.TestCase
	}
	if ctx.Err() != nil {
		tc.fail(api.VerdictCancelled, "Cancelled")
		return tc.TestCase
	}

	inPath, outPath, cleanup, err := p.writeValidatorArgs(n, input, res.Stdout)
	if err != nil {
		code := -1
		tc.ValidatorExitCode = &code
		tc.failAt(api.RoleValidator, api.VerdictValidatorError, fmt.Sprintf("Validator Error: %v", err))
		return tc.TestCase
	}
	defer cleanup()

	vres, verr := p.exec(ctx, api.RoleValidator, stageOpts{
		extraArgs: []string{inPath, outPath},
		timeout:   p.limits.Validator,
	})
	tc.record(api.RoleValidator, vres)
	if vres != nil {
		p.saveOutput(api.RoleValidator, n, append(append([]byte{}, vres.Stdout...), vres.Stderr...))
	}

	code := -1
	if vres != nil {
		code = vres.ExitCode
	}
	tc.ValidatorExitCode = &code

	if v, detail := stageFailure(api.RoleValidator, vres, verr); verr != nil {
		if v != api.VerdictCancelled {
			v = api.VerdictValidatorError
			detail = "Validator Error: " + detail
		}
		tc.failAt(api.RoleValidator, v, detail)
		return tc.TestCase
	}

	verdict := VerdictForExitCode(code)
	message := strings.TrimSpace(string(vres.Stdout))
	if message == "" {
		message = strings.TrimSpace(string(vres.Stderr))
	}
	switch verdict {
	case api.VerdictCorrect:
		tc.Passed = true
		tc.Verdict = verdict
		tc.ErrorDetail = truncate(message, api.MaxDisplayChars)
	case api.VerdictValidatorError:
		tc.failAt(api.RoleValidator, verdict, fmt.Sprintf("Validator crashed with exit code %d: %s",
			code, truncate(strings.TrimSpace(string(vres.Stderr)), api.MaxDisplayChars)))
	default:
		if message == "" {
			message = string(verdict)
		}
		tc.fail(verdict, truncate(message, api.MaxDisplayChars))
	}
	return tc.TestCase
}

// writeValidatorArgs stores the input and candidate output in temporary
// files passed to the validator as arguments.
func (p *Pipeline) writeValidatorArgs(n int, input, output []byte) (string, string, func(), error) {
	write := func(pattern string, data []byte) (string, error) {
		f, err := os.CreateTemp(p.tempDir, pattern)
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", err
		}
		return f.Name(), f.Close()
	}
	inPath, err := write(fmt.Sprintf("input_%d_*.txt", n), input)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to write validator input: %w", err)
	}
	outPath, err := write(fmt.Sprintf("output_%d_*.txt", n), output)
	if err != nil {
		os.Remove(inPath)
		return "", "", nil, fmt.Errorf("failed to write validator output: %w", err)
	}
	return inPath, outPath, func() {
		os.Remove(inPath)
		os.Remove(outPath)
	}, nil
}
