package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	if got, want := buf.String(), " test data"; got != want {
		t.Errorf("after overflow got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestExecTool_MissingBinary(t *testing.T) {
	tool := NewExecTool("/nonexistent/ffmpeg999", testLogger())

	code, err := tool.Invoke(context.Background(), "-version")
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("Invoke() error = %v, want ErrToolUnavailable", err)
	}
	if code != -1 {
		t.Errorf("Invoke() code = %d, want -1", code)
	}

	if err := tool.Probe(context.Background()); !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("Probe() error = %v, want ErrToolUnavailable", err)
	}
}

func TestExecTool_ReportsExitCode(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("no sh on PATH: %v", err)
	}
	tool := NewExecTool(sh, testLogger())

	code, err := tool.Invoke(context.Background(), "-c", "echo boom >&2; exit 3")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if code != 3 {
		t.Errorf("Invoke() code = %d, want 3", code)
	}

	code, err = tool.Invoke(context.Background(), "-c", "exit 0")
	if err != nil || code != 0 {
		t.Errorf("Invoke() = (%d, %v), want (0, nil)", code, err)
	}
}

func TestExecTool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecTool("ffmpeg", testLogger()).Invoke(ctx, "-version")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke() error = %v, want context.Canceled", err)
	}
}

func TestNewExecTool_DefaultPath(t *testing.T) {
	if got := NewExecTool("", testLogger()).Path(); got != "ffmpeg" {
		t.Errorf("Path() = %q, want ffmpeg", got)
	}
}
