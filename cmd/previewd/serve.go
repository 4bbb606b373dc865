package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/levelbgm/previewd/internal/api"
	"github.com/levelbgm/previewd/internal/config"
)

const (
	probeTimeout    = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP preview service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(parent context.Context, cc *commandContext) error {
	startTime := time.Now()

	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	logger := cc.logger()
	logger.Info("starting previewd",
		"version", config.Version,
		"addr", cfg.Addr(),
		"store_driver", cfg.StoreDriver(),
		"bucket", cfg.Bucket(),
		"max_transcodes", cfg.MaxTranscodes(),
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	toolStatus := api.ToolStatus{Path: comps.tool.Path(), Available: true}
	probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
	if err := comps.tool.Probe(probeCtx); err != nil {
		logger.Warn("ffmpeg probe failed, conversions will fail until it is installed", "path", comps.tool.Path(), "error", err)
		toolStatus.Available = false
		toolStatus.Error = err.Error()
	}
	probeCancel()

	serverCfg := api.ServerConfig{
		Addr:        cfg.Addr(),
		Converter:   comps.service,
		Tool:        toolStatus,
		StoreDriver: cfg.StoreDriver(),
		APIToken:    cfg.APIToken(),
		Logger:      logger,
		StartTime:   startTime,
		Version:     config.Version,
	}
	if comps.history != nil {
		serverCfg.History = comps.history
		logger.Info("conversion ledger enabled", "path", cfg.LedgerPath())
	}
	if cfg.APIToken() == "" {
		logger.Warn("PREVIEW_API_TOKEN not set, API is unauthenticated")
	}

	apiServer := api.NewServer(serverCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
		return nil
	}

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
