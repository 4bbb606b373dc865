package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/levelbgm/previewd/internal/config"
	"github.com/levelbgm/previewd/internal/ledger"
	"github.com/levelbgm/previewd/internal/logging"
	"github.com/levelbgm/previewd/internal/pipeline"
	"github.com/levelbgm/previewd/internal/preview"
	"github.com/levelbgm/previewd/internal/storage"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.New(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewLogger(config.DefaultLogLevel, config.DefaultLogFormat)
	}
	return logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
}

// components is the wired conversion stack shared by serve and convert.
type components struct {
	tool    *pipeline.ExecTool
	service *preview.Service
	history *ledger.SQLiteRepository
}

func (c *components) Close() error {
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}

func buildComponents(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.StoreDriver(), storage.Options{
		Bucket:          cfg.Bucket(),
		Endpoint:        cfg.S3Endpoint(),
		Region:          cfg.S3Region(),
		AccessKeyID:     cfg.S3AccessKeyID(),
		SecretAccessKey: cfg.S3SecretAccessKey(),
		UseSSL:          cfg.S3UseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}

	tool := pipeline.NewExecTool(cfg.FFmpegPath(), logging.WithComponent(logger, "ffmpeg"))
	transcoder := pipeline.NewTranscoder(pipeline.TranscoderConfig{
		Tool:          tool,
		ScratchDir:    cfg.ScratchDir(),
		Timeout:       cfg.TranscodeTimeout(),
		MaxConcurrent: int64(cfg.MaxTranscodes()),
		Logger:        logging.WithComponent(logger, "transcoder"),
	})

	svc := preview.NewService(
		preview.NewFetcher(store, cfg.ScratchDir()),
		transcoder,
		preview.NewPublisher(store),
		logger,
	)

	comps := &components{tool: tool, service: svc}

	if cfg.LedgerPath() != "" {
		history, err := ledger.Open(cfg.LedgerPath(), logging.WithComponent(logger, "ledger"))
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		comps.history = history
		svc.SetRecorder(history)
	}

	return comps, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
