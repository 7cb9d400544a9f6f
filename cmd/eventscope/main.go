package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"eventScope/internal/aggregate"
	"eventScope/internal/chain"
	"eventScope/internal/config"
	"eventScope/internal/explorer"
	"eventScope/internal/metrics"
	"eventScope/internal/network"
	"eventScope/internal/view"
)

func main() {
	root := &cobra.Command{
		Use:          "eventscope",
		Short:        "Contract event and role explorer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ABI proxy and events API",
		RunE:  runServe,
	}
	addCommonFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringSlice("cors-origins", []string{"*"}, "allowed CORS origins (comma-separated)")
	root.AddCommand(serveCmd)

	rolesCmd := &cobra.Command{
		Use:   "roles",
		Short: "Print a contract's events and current role membership",
		RunE:  runRoles,
	}
	addCommonFlags(rolesCmd.Flags())
	rolesCmd.Flags().String("address", "", "contract address")
	rolesCmd.Flags().String("network", string(network.Default), "network (homestead, goerli, arbitrum)")
	rolesCmd.Flags().StringSlice("event", nil, "only show these event names (comma-separated)")
	rolesCmd.Flags().String("order", "desc", "block order (asc, desc)")
	rolesCmd.Flags().String("out", "", "optional JSONL export path")
	rolesCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for export")
	root.AddCommand(rolesCmd)

	exploreCmd := &cobra.Command{
		Use:   "explore",
		Short: "Read \"address [network]\" lines from stdin; the latest line wins",
		RunE:  runExplore,
	}
	addCommonFlags(exploreCmd.Flags())
	exploreCmd.Flags().String("network", string(network.Default), "network used when a line names none")
	root.AddCommand(exploreCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("etherscan-api-key", "", "explorer API key")
	for _, net := range network.All() {
		flags.String("rpc-"+net.String(), "", net.String()+" RPC URL")
		flags.String("explorer-url-"+net.String(), net.Info().ExplorerURL, net.String()+" explorer API URL")
	}
	flags.Uint64("from-block", 0, "first block to scan")
	flags.Uint64("batch-size", 0, "blocks per log query, 0 queries the whole range at once")
	flags.Int("max-retries", 0, "retry attempts per log query")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Int("concurrency", 8, "parallel timestamp and name lookups")
	flags.Bool("timestamps", true, "resolve block timestamps")
	flags.Bool("names", true, "reverse-resolve target addresses")
	flags.Duration("request-timeout", 30*time.Second, "explorer request timeout")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

// deps holds the collaborators shared by every command.
type deps struct {
	explorer *explorer.Client
	pool     *chain.Pool
	pipeline *view.Pipeline
	registry *prometheus.Registry
}

func newDeps(cfg config.Common, logger *zap.Logger) (*deps, error) {
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	explorerClient := explorer.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, explorer.Config{
		APIKey:    cfg.APIKey,
		Endpoints: cfg.ExplorerURLs,
	}, m, logger)

	pool := chain.NewPool(cfg.RPCURLs, chain.FetchConfig{
		FromBlock:    cfg.FromBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)

	sources := func(ctx context.Context, net network.Network) (view.LogSource, error) {
		client, err := pool.Client(ctx, net)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	pipeline := view.NewPipeline(explorerClient, sources, view.Options{
		Timestamps: cfg.Timestamps,
		Names:      cfg.Names,
		Enrich:     aggregate.EnrichConfig{Concurrency: cfg.Concurrency, Logger: logger},
	}, m, logger)

	return &deps{
		explorer: explorerClient,
		pool:     pool,
		pipeline: pipeline,
		registry: registry,
	}, nil
}

func (d *deps) Close() {
	d.pool.Close()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
