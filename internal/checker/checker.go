package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mvp-joe/project-remedy/internal/diagnostic"
)

// DefaultTimeout bounds a single type-check invocation.
const DefaultTimeout = 120 * time.Second

var (
	// ErrTimeout is returned when the checker exceeds its timeout.
	ErrTimeout = errors.New("type checker timed out")
	// ErrCrashed is returned when the checker exits abnormally without
	// producing any diagnostics.
	ErrCrashed = errors.New("type checker crashed")
)

// Result is the outcome of one full project type-check.
type Result struct {
	Diagnostics []diagnostic.Diagnostic
	Output      string
	ExitCode    int
	Duration    time.Duration
}

// Count returns the number of diagnostics reported.
func (r *Result) Count() int {
	return diagnostic.Count(r.Diagnostics)
}

// Clean reports whether the check found nothing.
func (r *Result) Clean() bool {
	return len(r.Diagnostics) == 0
}

// Checker runs a whole-project type check.
type Checker interface {
	Check(ctx context.Context) (*Result, error)
}

// CommandChecker runs an external type-checker command in the project
// root and parses its output.
type CommandChecker struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandChecker creates a checker that runs command with args in dir.
func NewCommandChecker(command string, args []string, dir string, timeout time.Duration) *CommandChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandChecker{
		command: command,
		args:    args,
		dir:     dir,
		timeout: timeout,
		logger:  slog.Default().With("component", "checker"),
	}
}

// Check runs the checker. A non-zero exit with parseable diagnostics is a
// normal result; the checker signals findings through its exit status.
//
// Errors:
//   - ErrTimeout: the command exceeded the configured timeout
//   - ErrCrashed: non-zero exit and no diagnostics in the output
//   - context errors when ctx is cancelled
func (c *CommandChecker) Check(ctx context.Context) (*Result, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.command, c.args...)
	cmd.Dir = c.dir
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n" + stderr.String()
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
	}

	result := &Result{
		Diagnostics: diagnostic.Parse(output, c.dir),
		Output:      output,
		Duration:    duration,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", c.command, err)
		}
		result.ExitCode = exitErr.ExitCode()
		if result.Clean() {
			return nil, fmt.Errorf("%w: exit code %d: %s", ErrCrashed, result.ExitCode, firstLine(stderr.String(), stdout.String()))
		}
	}

	c.logger.Debug("check complete", "diagnostics", result.Count(), "exit_code", result.ExitCode, "duration", duration)
	return result, nil
}

func firstLine(candidates ...string) string {
	for _, s := range candidates {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			return s[:i]
		}
		return s
	}
	return "no output"
}

// Func adapts a function to the Checker interface.
type Func func(ctx context.Context) (*Result, error)

// Check calls f(ctx).
func (f Func) Check(ctx context.Context) (*Result, error) {
	return f(ctx)
}
