package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eventScope/internal/aggregate"
	"eventScope/internal/config"
	"eventScope/internal/network"
	"eventScope/internal/view"
)

func runExplore(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExplore(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	fallback, err := network.Parse(cfg.Network)
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

	printer := &snapshotPrinter{out: cmd.OutOrStdout()}
	v := view.New(d.pipeline, printer.Print, logger)
	return explore(ctx, cmd.InOrStdin(), v, fallback, logger)
}

// explore feeds each input line to the view. Every line supersedes the
// previous request; the call returns once input ends and requests settle.
func explore(ctx context.Context, in io.Reader, v *view.View, fallback network.Network, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var wg sync.WaitGroup
	defer wg.Wait()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		address, net, err := parseLine(scanner.Text(), fallback)
		if err != nil {
			logger.Warn("ignoring input line", zap.String("line", scanner.Text()), zap.Error(err))
			continue
		}

		done := v.Start(ctx, address, net)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := <-done; err != nil && !errors.Is(err, view.ErrStale) {
				logger.Debug("selection failed", zap.String("address", address), zap.Error(err))
			}
		}()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// parseLine splits "address [network]". A blank line clears the selection.
func parseLine(line string, fallback network.Network) (string, network.Network, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return "", fallback, nil
	case 1:
		return fields[0], fallback, nil
	case 2:
		net, err := network.Parse(fields[1])
		if err != nil {
			return "", "", err
		}
		return fields[0], net, nil
	default:
		return "", "", fmt.Errorf("expected \"address [network]\", got %d fields", len(fields))
	}
}

type snapshotPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last uint64
}

// Print writes snap unless a newer generation was already printed.
func (p *snapshotPrinter) Print(snap view.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.Generation < p.last {
		return
	}
	p.last = snap.Generation

	switch snap.State {
	case view.Idle:
		fmt.Fprintln(p.out, "idle")
	case view.Loading:
		fmt.Fprintf(p.out, "loading %s on %s...\n", snap.Address, snap.Network)
	case view.Error:
		fmt.Fprintf(p.out, "error for %s on %s: %v\n", snap.Address, snap.Network, snap.Err)
	case view.Ready:
		result := snap.Result
		fmt.Fprintf(p.out, "%s on %s: %d events, %d skipped\n", result.Address, result.Network, len(result.Events), result.Skipped)
		renderEvents(p.out, result.Filtered(aggregate.Descending))
		renderRoles(p.out, result.Roles)
	}
}
