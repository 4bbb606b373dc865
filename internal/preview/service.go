// Package preview produces faded mp3 preview clips from stored background
// tracks and publishes them under their content hash.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/levelbgm/previewd/internal/ledger"
	"github.com/levelbgm/previewd/internal/logging"
	"github.com/levelbgm/previewd/internal/pipeline"
	"github.com/levelbgm/previewd/internal/storage"
)

// Request asks for a preview of the track stored under SourceHash. Start and
// End are optional bounds in milliseconds.
type Request struct {
	SourceHash string
	Start      *int64
	End        *int64
}

// Kind tags the result of a conversion.
type Kind int

const (
	KindSuccess Kind = iota
	KindNotFound
	KindInvalid
	KindTranscodeFailed
	KindToolUnavailable
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindTranscodeFailed:
		return "transcode_failed"
	case KindToolUnavailable:
		return "tool_unavailable"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of Convert. Only the fields relevant to Kind are set:
// Hash for success, Message for invalid, ExitCode for transcode failures.
type Outcome struct {
	Kind     Kind
	Hash     string
	Message  string
	ExitCode int
}

// Transcoder turns a source file into clip bytes for a resolved window.
type Transcoder interface {
	Transcode(ctx context.Context, sourcePath string, w pipeline.Window) ([]byte, error)
}

// Recorder persists published conversions. It is optional.
type Recorder interface {
	Record(ctx context.Context, e *ledger.Entry) error
}

// Service sequences fetch, window resolution, transcoding and publishing.
type Service struct {
	fetcher    *Fetcher
	transcoder Transcoder
	publisher  *Publisher
	recorder   Recorder
	logger     *slog.Logger
}

func NewService(fetcher *Fetcher, transcoder Transcoder, publisher *Publisher, logger *slog.Logger) *Service {
	return &Service{
		fetcher:    fetcher,
		transcoder: transcoder,
		publisher:  publisher,
		logger:     logging.WithComponent(logger, "preview"),
	}
}

// SetRecorder enables the conversion ledger.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Convert runs one request end to end. Domain failures come back as an
// Outcome; the returned error is reserved for unexpected local failures
// (scratch files, context cancellation). Scratch files are released on every
// path.
func (s *Service) Convert(ctx context.Context, req Request) (Outcome, error) {
	logger := logging.WithSourceHash(s.logger, req.SourceHash)

	src, err := s.fetcher.Fetch(ctx, req.SourceHash)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Info("source track not found")
		return Outcome{Kind: KindNotFound}, nil
	case errors.Is(err, storage.ErrUnavailable):
		logger.Error("source fetch failed", "error", err)
		return Outcome{Kind: KindStorageUnavailable}, nil
	case err != nil:
		return Outcome{}, fmt.Errorf("fetch source: %w", err)
	}
	defer src.Release()

	w, err := pipeline.Resolve(req.Start, req.End)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			logger.Info("window rejected", "reason", verr.Message)
			return Outcome{Kind: KindInvalid, Message: verr.Message}, nil
		}
		return Outcome{}, err
	}

	data, err := s.transcoder.Transcode(ctx, src.Path(), w)
	if err != nil {
		var terr *pipeline.TranscodeError
		switch {
		case errors.As(err, &terr):
			return Outcome{Kind: KindTranscodeFailed, ExitCode: terr.ExitCode}, nil
		case errors.Is(err, pipeline.ErrToolUnavailable):
			logger.Error("audio tool unavailable", "error", err)
			return Outcome{Kind: KindToolUnavailable}, nil
		default:
			return Outcome{}, fmt.Errorf("transcode: %w", err)
		}
	}

	hash, err := s.publisher.Publish(ctx, data)
	if errors.Is(err, context.Canceled) {
		return Outcome{}, fmt.Errorf("publish: %w", err)
	}
	if err != nil {
		logger.Error("publish failed", "error", err)
		return Outcome{Kind: KindStorageUnavailable}, nil
	}

	logger.Info("preview published", "clip_hash", hash, "window", w.String())
	s.record(ctx, logger, req, w, hash, len(data))

	return Outcome{Kind: KindSuccess, Hash: hash}, nil
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, req Request, w pipeline.Window, hash string, size int) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(ctx, &ledger.Entry{
		SourceHash:  req.SourceHash,
		StartMs:     req.Start,
		EndMs:       req.End,
		WindowStart: w.StartSeconds,
		WindowEnd:   w.EndSeconds,
		ClipHash:    hash,
		ClipBytes:   int64(size),
	})
	if err != nil {
		logger.Warn("failed to record conversion", "error", err)
	}
}
