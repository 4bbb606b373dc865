package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// ErrToolUnavailable is returned when the audio tool cannot be launched at all.
var ErrToolUnavailable = errors.New("audio tool unavailable")

// Tool runs the external audio-processing binary.
//
// Invoke returns the process exit status. A non-zero status is not an error;
// err is only set when the process could not be started (wrapping
// ErrToolUnavailable) or ctx ended before it was.
type Tool interface {
	Invoke(ctx context.Context, args ...string) (exitCode int, err error)
}

// ExecTool is the production Tool backed by os/exec.
type ExecTool struct {
	path   string
	logger *slog.Logger
}

// NewExecTool creates an ExecTool for the binary at path ("ffmpeg" resolves via PATH).
func NewExecTool(path string, logger *slog.Logger) *ExecTool {
	if path == "" {
		path = "ffmpeg"
	}
	return &ExecTool{path: path, logger: logger}
}

// Path returns the configured binary path.
func (t *ExecTool) Path() string {
	return t.path
}

func (t *ExecTool) Invoke(ctx context.Context, args ...string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.path, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	t.logger.Debug("executing audio tool", "path", t.path, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
		}
		t.logger.Warn("audio tool failed",
			"exit_code", exitErr.ExitCode(),
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrBuf.String(), 512),
		)
		return exitErr.ExitCode(), nil
	}

	t.logger.Debug("audio tool succeeded", "duration_ms", elapsed.Milliseconds())
	return 0, nil
}

// Probe checks that the binary can be launched by running `-version`.
func (t *ExecTool) Probe(ctx context.Context) error {
	code, err := t.Invoke(ctx, "-version")
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%s -version exited %d", t.path, code)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}

var _ Tool = (*ExecTool)(nil)
