package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventScope/internal/aggregate"
	"eventScope/internal/config"
	"eventScope/internal/model"
	"eventScope/internal/network"
	"eventScope/internal/storage"
	"eventScope/internal/storage/postgres"
	"eventScope/internal/view"
)

func runRoles(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRoles(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Address == "" {
		return errors.New("address is required")
	}
	net, err := network.Parse(cfg.Network)
	if err != nil {
		return err
	}
	order, err := aggregate.ParseOrder(cfg.Order)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDeps(cfg.Common, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.pipeline.Run(ctx, cfg.Address, net)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	events := result.Filtered(order, cfg.Events...)
	fmt.Fprintf(out, "%s on %s: %d events, %d skipped\n", result.Address, result.Network, len(result.Events), result.Skipped)
	fmt.Fprintf(out, "event types: %s\n\n", joinOrNone(result.FilterOptions))
	renderEvents(out, events)
	fmt.Fprintln(out)
	renderRoles(out, result.Roles)

	if cfg.Out != "" {
		sink := storage.NewJsonlStorage(cfg.Out)
		if err := export(sink, events); err != nil {
			return err
		}
		logger.Info("events exported", zap.String("out", sink.Path()), zap.Int("events", len(events)))
	}

	if cfg.PGDSN != "" {
		if err := exportPostgres(ctx, cfg.PGDSN, result); err != nil {
			return err
		}
		logger.Info("postgres export complete",
			zap.String("address", result.Address),
			zap.Int("events", len(result.Events)),
		)
	}
	return nil
}

func export(sink storage.Storage, events []model.LogEvent) error {
	if err := sink.PutEvents(events); err != nil {
		return fmt.Errorf("export events: %w", err)
	}
	return nil
}

func exportPostgres(ctx context.Context, dsn string, result *view.Result) error {
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.UpsertEvents(ctx, result.Network, result.Events); err != nil {
		return err
	}
	return store.ReplaceRoleMembers(ctx, result.Network, result.Address, result.Roles.Flatten())
}
