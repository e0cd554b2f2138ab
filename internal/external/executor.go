// Package external runs the third-party LiDAR command-line tools the
// pipeline can delegate to: laszip for LAZ decompression, LAStools for
// ground filtering and DEM rasterisation, and FUSION for catalog reports.
package external

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Logger defines the interface for debug logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// nopLogger is a no-op logger implementation.
type nopLogger struct{}

func (n nopLogger) Debugf(format string, args ...interface{}) {}

// ExternalToolError reports a tool that could not be started, was killed,
// or exited non-zero. ExitCode is -1 when the process never produced one.
type ExternalToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Tool, strings.Join(e.Args, " "))
	switch {
	case e.ExitCode > 0:
		msg += fmt.Sprintf(": exit code %d", e.ExitCode)
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ErrToolNotConfigured is wrapped by ExternalToolError when the pipeline
// needs a tool whose path was never configured.
var ErrToolNotConfigured = errors.New("tool not configured")

// Runner executes external tools with a context, one at a time.
type Runner struct {
	Tools  ToolPaths
	DryRun bool
	Logger Logger

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a Runner for the given tool locations.
func NewRunner(tools ToolPaths) *Runner {
	return &Runner{
		Tools:   tools,
		Logger:  nopLogger{},
		command: exec.CommandContext,
	}
}

// SetLogger sets the debug logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger != nil {
		r.Logger = logger
	}
}

// run executes path with args and returns its combined output.
func (r *Runner) run(ctx context.Context, tool, path string, args ...string) (string, error) {
	if path == "" {
		return "", &ExternalToolError{Tool: tool, Args: args, ExitCode: -1, Err: ErrToolNotConfigured}
	}
	if r.DryRun {
		return fmt.Sprintf("[DRY-RUN] Would execute: %s %s", path, strings.Join(args, " ")), nil
	}

	r.Logger.Debugf("Executing: %s %s", path, strings.Join(args, " "))
	command := r.command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, path, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.String(), nil
	}
	r.Logger.Debugf("Command failed: %v, output: %s", err, out.String())

	toolErr := &ExternalToolError{Tool: tool, Args: args, ExitCode: -1, Output: out.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		toolErr.Err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return toolErr.Output, toolErr
}
