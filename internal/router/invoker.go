// Package router executes the external tool bound to a matched pattern
// and decides whether to fall back to the generic execution path.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultToolTimeout is the hard subprocess timeout when none is
// configured.
const DefaultToolTimeout = 600 * time.Second

// defaultMaxOutputBytes bounds captured tool output.
const defaultMaxOutputBytes int64 = 1 << 20

// InvokeContext carries the workflow identifiers passed to the tool
// process through its environment.
type InvokeContext struct {
	WorkflowID string
	ToolName   string
	Input      string
}

// InvokeResult is the outcome of one tool subprocess run. Tool-side
// failures (non-zero exit, timeout, launch error, malformed output) are
// reported in the result, never as Go errors.
type InvokeResult struct {
	Success    bool
	ExitCode   int
	TimedOut   bool
	Duration   time.Duration
	Stdout     string
	Stderr     string
	Payload    json.RawMessage // structured output when stdout parsed as JSON
	RawPayload string          // raw text fallback when it did not
	Error      string          // human-readable failure description
}

// PayloadString returns the structured payload if present, otherwise the
// raw capture.
func (r InvokeResult) PayloadString() string {
	if len(r.Payload) > 0 {
		return string(r.Payload)
	}
	return r.RawPayload
}

// Invoker executes an external tool script.
type Invoker interface {
	Execute(ctx context.Context, scriptRef string, ictx InvokeContext, timeout time.Duration) InvokeResult
}

// SubprocessInvoker runs tool scripts with os/exec under a hard timeout.
type SubprocessInvoker struct {
	maxOutputBytes int64
	log            *zap.Logger
}

// NewSubprocessInvoker creates an invoker. maxOutputBytes <= 0 selects
// the default capture bound.
func NewSubprocessInvoker(maxOutputBytes int64, log *zap.Logger) *SubprocessInvoker {
	if maxOutputBytes <= 0 {
		maxOutputBytes = defaultMaxOutputBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SubprocessInvoker{maxOutputBytes: maxOutputBytes, log: log}
}

// Execute runs the script with the workflow identifiers in its
// environment and parses stdout as JSON, falling back to raw text.
func (inv *SubprocessInvoker) Execute(ctx context.Context, scriptRef string, ictx InvokeContext, timeout time.Duration) InvokeResult {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}

	result := InvokeResult{ExitCode: -1}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, scriptRef)
	cmd.Env = append(os.Environ(),
		"PATROL_WORKFLOW_ID="+ictx.WorkflowID,
		"PATROL_TOOL_NAME="+ictx.ToolName,
	)
	if ictx.Input != "" {
		cmd.Stdin = strings.NewReader(ictx.Input)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, max: inv.maxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: inv.maxOutputBytes}

	inv.log.Debug("invoking tool script",
		zap.String("script", scriptRef),
		zap.String("workflow_id", ictx.WorkflowID),
		zap.Duration("timeout", timeout))

	started := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(started)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Error = fmt.Sprintf("tool timed out after %s", timeout)
		inv.log.Warn("tool killed on timeout",
			zap.String("script", scriptRef),
			zap.Duration("timeout", timeout))
		return result
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			result.Error = fmt.Sprintf("tool exited with code %d", result.ExitCode)
			if msg := strings.TrimSpace(result.Stderr); msg != "" {
				result.Error += ": " + firstLine(msg)
			}
		} else {
			// Launch failure: missing script, permission, etc.
			result.Error = fmt.Sprintf("tool failed to launch: %v", runErr)
		}
		return result
	}

	result.ExitCode = 0
	result.Success = true
	parseOutput(&result)
	return result
}

// parseOutput interprets stdout as a JSON document, keeping the raw
// text when it is not one.
func parseOutput(result *InvokeResult) {
	trimmed := strings.TrimSpace(result.Stdout)
	if trimmed == "" {
		return
	}
	if json.Valid([]byte(trimmed)) {
		result.Payload = json.RawMessage(trimmed)
		return
	}
	result.RawPayload = trimmed
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// limitedWriter caps total bytes written, discarding the excess while
// reporting full writes so the child never sees a short-write error.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
