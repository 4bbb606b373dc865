package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"
)

// Encoding parameters for every preview clip.
const (
	AudioBitrate    = "128k"
	AudioSampleRate = "44100"
	OutputFormat    = "mp3"
	FadeSeconds     = 5
)

// TranscodeError reports a non-zero exit status from the audio tool.
type TranscodeError struct {
	ExitCode int
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("audio tool exited with status %d", e.ExitCode)
}

// TranscoderConfig holds the transcoder's configuration.
type TranscoderConfig struct {
	Tool          Tool
	ScratchDir    string        // directory for output files; empty = os temp dir
	Timeout       time.Duration // per-invocation deadline; zero disables it
	MaxConcurrent int64         // simultaneous tool invocations; <= 0 means 1
	Logger        *slog.Logger
}

// Transcoder cuts, re-encodes and fades a source file into mp3 bytes.
type Transcoder struct {
	tool    Tool
	dir     string
	timeout time.Duration
	slots   *semaphore.Weighted
	logger  *slog.Logger
}

func NewTranscoder(cfg TranscoderConfig) *Transcoder {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Transcoder{
		tool:    cfg.Tool,
		dir:     cfg.ScratchDir,
		timeout: cfg.Timeout,
		slots:   semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:  cfg.Logger,
	}
}

// Transcode produces the clip for window w from the file at sourcePath.
// The scratch output file is always removed before returning.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath string, w Window) ([]byte, error) {
	out, err := os.CreateTemp(t.dir, "preview-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("create output scratch file: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	if err := t.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for transcode slot: %w", err)
	}
	defer t.slots.Release(1)

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	code, err := t.tool.Invoke(ctx, BuildArgs(sourcePath, outPath, w)...)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, &TranscodeError{ExitCode: code}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read transcoded clip: %w", err)
	}

	t.logger.Info("clip transcoded",
		"window", w.String(),
		"size", humanize.Bytes(uint64(len(data))),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return data, nil
}

// BuildArgs returns the audio tool arguments that cut window w out of input
// and write an mp3 with a trailing fade-out to output.
func BuildArgs(input, output string, w Window) []string {
	args := []string{
		"-i", input,
		"-vn",
		"-b:a", AudioBitrate,
		"-ar", AudioSampleRate,
		"-f", OutputFormat,
	}
	args = append(args, trimArgs(w)...)
	args = append(args,
		"-af", fadeFilter(w),
		"-y",
		output,
	)
	return args
}

func trimArgs(w Window) []string {
	if w.Head {
		return []string{"-t", formatSeconds(w.Duration())}
	}
	return []string{"-ss", formatSeconds(w.StartSeconds), "-to", formatSeconds(w.EndSeconds)}
}

func fadeFilter(w Window) string {
	st := w.AnchorSeconds - FadeSeconds
	if st < 0 {
		st = 0
	}
	return fmt.Sprintf("afade=t=out:st=%s:d=%d", formatSeconds(st), FadeSeconds)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
