package api

import (
	"time"

	"github.com/levelbgm/previewd/internal/ledger"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// ConvertRequest carries millisecond bounds; either may be omitted.
type ConvertRequest struct {
	Hash  string `json:"hash"`
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

type ConvertResponse struct {
	Hash string `json:"hash"`
}

type NotFoundResponse struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ConvertFailedResponse struct {
	Message    string `json:"message"`
	ReturnCode int    `json:"ffmpeg_returncode"`
}

type StatusResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeS       int64          `json:"uptime_s"`
	StoreDriver   string         `json:"store_driver"`
	LedgerEnabled bool           `json:"ledger_enabled"`
	FFmpeg        FFmpegResponse `json:"ffmpeg"`
}

type FFmpegResponse struct {
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type ConversionResponse struct {
	ID          string  `json:"id"`
	SourceHash  string  `json:"source_hash"`
	StartMs     *int64  `json:"start_ms"`
	EndMs       *int64  `json:"end_ms"`
	WindowStart float64 `json:"window_start_s"`
	WindowEnd   float64 `json:"window_end_s"`
	ClipHash    string  `json:"clip_hash"`
	ClipBytes   int64   `json:"clip_bytes"`
	CreatedAt   string  `json:"created_at"`
}

type ConversionsResponse struct {
	Conversions []ConversionResponse `json:"conversions"`
}

func EntryToResponse(e *ledger.Entry) ConversionResponse {
	return ConversionResponse{
		ID:          e.ID,
		SourceHash:  e.SourceHash,
		StartMs:     e.StartMs,
		EndMs:       e.EndMs,
		WindowStart: e.WindowStart,
		WindowEnd:   e.WindowEnd,
		ClipHash:    e.ClipHash,
		ClipBytes:   e.ClipBytes,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
