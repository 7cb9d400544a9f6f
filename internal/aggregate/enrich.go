package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eventScope/internal/model"
)

// TargetArg is the argument name whose address gets a resolved display name.
const TargetArg = "target"

const defaultConcurrency = 8

// TimestampLookup resolves block numbers to unix timestamps.
type TimestampLookup interface {
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// NameLookup resolves addresses to display names.
type NameLookup interface {
	ReverseResolve(ctx context.Context, addr common.Address) (string, error)
}

// EnrichConfig bounds enrichment fan-out.
type EnrichConfig struct {
	Concurrency int
	Now         func() time.Time
	Logger      *zap.Logger
}

func (c EnrichConfig) normalize() EnrichConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// RelativeTime renders a block timestamp relative to now, e.g. "3 hours ago".
func RelativeTime(ts uint64, now time.Time) string {
	return humanize.RelTime(time.Unix(int64(ts), 0), now, "ago", "from now")
}

// ResolveTimestamps looks up each distinct block once and keys the relative
// time by every event's (block number, log index). Failed lookups leave their
// keys absent.
func ResolveTimestamps(ctx context.Context, lookup TimestampLookup, events []model.LogEvent, cfg EnrichConfig) map[model.EventKey]string {
	cfg = cfg.normalize()
	byBlock := make(map[uint64][]model.EventKey)
	for _, event := range events {
		byBlock[event.BlockNumber] = append(byBlock[event.BlockNumber], event.Key())
	}

	now := cfg.Now()
	out := make(map[model.EventKey]string, len(events))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)
	for block, keys := range byBlock {
		block, keys := block, keys
		g.Go(func() error {
			ts, err := lookup.BlockTimestamp(ctx, block)
			if err != nil {
				cfg.Logger.Debug("block timestamp unavailable", zap.Uint64("block_number", block), zap.Error(err))
				return nil
			}
			text := RelativeTime(ts, now)
			mu.Lock()
			for _, key := range keys {
				out[key] = text
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ResolveNames reverse-resolves every address held in a target argument.
// Each address is looked up once; failures are omitted from the result.
func ResolveNames(ctx context.Context, lookup NameLookup, events []model.LogEvent, cfg EnrichConfig) map[common.Address]string {
	cfg = cfg.normalize()
	targets := make(map[common.Address]struct{})
	for _, event := range events {
		arg, ok := event.Arg(TargetArg)
		if !ok || !common.IsHexAddress(arg.Value) {
			continue
		}
		targets[common.HexToAddress(arg.Value)] = struct{}{}
	}

	out := make(map[common.Address]string, len(targets))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)
	for addr := range targets {
		addr := addr
		g.Go(func() error {
			name, err := lookup.ReverseResolve(ctx, addr)
			if err != nil || name == "" {
				cfg.Logger.Debug("reverse name unavailable", zap.String("address", addr.Hex()), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[addr] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Enrich returns derived copies of events carrying timestamps and resolved
// target names. Events without an entry keep their raw values.
func Enrich(events []model.LogEvent, timestamps map[model.EventKey]string, names map[common.Address]string) []model.LogEvent {
	out := make([]model.LogEvent, 0, len(events))
	for _, event := range events {
		enriched := event.Clone()
		if ts, ok := timestamps[event.Key()]; ok {
			enriched.Timestamp = ts
		}
		for i, arg := range enriched.Args {
			if arg.Name != TargetArg || !common.IsHexAddress(arg.Value) {
				continue
			}
			if name, ok := names[common.HexToAddress(arg.Value)]; ok {
				enriched.Args[i].Display = name
			}
		}
		out = append(out, enriched)
	}
	return out
}
