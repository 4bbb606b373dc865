package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/levelbgm/previewd/internal/ledger"
	"github.com/levelbgm/previewd/internal/preview"
)

const (
	MsgConvertFailed      = "Failed to convert."
	MsgStorageUnavailable = "Storage unavailable."
	MsgToolUnavailable    = "Converter unavailable."
	MsgHashRequired       = "hash is required"
	MsgInvalidBody        = "invalid request body"
	MsgInternal           = "internal server error"

	// statusClientClosed is nginx's code for a client that went away before
	// the response; it only appears in access logs.
	statusClientClosed = 499

	maxBodyBytes = 64 << 10
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/", healthHandler())

	r.Group(func(r chi.Router) {
		if cfg.APIToken != "" {
			r.Use(AuthMiddleware(cfg.APIToken, cfg.Logger))
		}

		r.Post("/convert", convertHandler(cfg))
		r.Get("/status", statusHandler(cfg))
		if cfg.History != nil {
			r.Get("/conversions", listConversionsHandler(cfg))
		}
	})

	return r
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

func convertHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConvertRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, MsgInvalidBody)
			return
		}

		hash := strings.TrimSpace(req.Hash)
		if hash == "" {
			WriteError(w, http.StatusBadRequest, MsgHashRequired)
			return
		}

		out, err := cfg.Converter.Convert(r.Context(), preview.Request{
			SourceHash: hash,
			Start:      req.Start,
			End:        req.End,
		})
		if errors.Is(err, context.Canceled) {
			cfg.Logger.Info("conversion abandoned, client went away",
				"source_hash", hash,
				"request_id", RequestIDFrom(r.Context()),
			)
			w.WriteHeader(statusClientClosed)
			return
		}
		if err != nil {
			cfg.Logger.Error("conversion failed",
				"error", err,
				"source_hash", hash,
				"request_id", RequestIDFrom(r.Context()),
			)
			WriteError(w, http.StatusInternalServerError, MsgInternal)
			return
		}

		writeOutcome(w, out)
	}
}

func writeOutcome(w http.ResponseWriter, out preview.Outcome) {
	status, body := OutcomeResponse(out)
	WriteJSON(w, status, body)
}

// OutcomeResponse maps a conversion outcome to an HTTP status and JSON body.
func OutcomeResponse(out preview.Outcome) (int, interface{}) {
	switch out.Kind {
	case preview.KindSuccess:
		return http.StatusOK, ConvertResponse{Hash: out.Hash}
	case preview.KindNotFound:
		return http.StatusOK, NotFoundResponse{Status: "not_found"}
	case preview.KindInvalid:
		return http.StatusBadRequest, MessageResponse{Message: out.Message}
	case preview.KindTranscodeFailed:
		return http.StatusOK, ConvertFailedResponse{Message: MsgConvertFailed, ReturnCode: out.ExitCode}
	case preview.KindStorageUnavailable:
		return http.StatusBadGateway, MessageResponse{Message: MsgStorageUnavailable}
	case preview.KindToolUnavailable:
		return http.StatusServiceUnavailable, MessageResponse{Message: MsgToolUnavailable}
	default:
		return http.StatusInternalServerError, MessageResponse{Message: MsgInternal}
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, StatusResponse{
			Status:        "ok",
			Version:       cfg.Version,
			UptimeS:       int64(time.Since(cfg.StartTime).Seconds()),
			StoreDriver:   cfg.StoreDriver,
			LedgerEnabled: cfg.History != nil,
			FFmpeg: FFmpegResponse{
				Path:      cfg.Tool.Path,
				Available: cfg.Tool.Available,
				Error:     cfg.Tool.Error,
			},
		})
	}
}

func listConversionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ledger.DefaultListLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = ledger.ClampLimit(n)
		}

		entries, err := cfg.History.List(r.Context(), limit)
		if err != nil {
			cfg.Logger.Error("failed to list conversions", "error", err, "request_id", RequestIDFrom(r.Context()))
			WriteError(w, http.StatusInternalServerError, "failed to list conversions")
			return
		}

		resp := ConversionsResponse{Conversions: make([]ConversionResponse, len(entries))}
		for i, e := range entries {
			resp.Conversions[i] = EntryToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
