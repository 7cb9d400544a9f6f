package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventScope/internal/config"
	"eventScope/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Listen == "" {
		return errors.New("listen address is required")
	}
	if cfg.APIKey == "" {
		logger.Warn("etherscan api key not set, upstream requests may be rate limited")
	}

	d, err := newDeps(cfg.Common, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	handler := server.NewHandler(d.explorer, d.pipeline, d.registry, logger)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler.Routes(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server start",
			zap.String("listen", cfg.Listen),
			zap.Strings("cors_origins", cfg.CORSOrigins),
			zap.Int("rpc_networks", len(cfg.RPCURLs)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
