package view

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"eventScope/internal/aggregate"
	"eventScope/internal/events"
	"eventScope/internal/explorer"
	"eventScope/internal/model"
	"eventScope/internal/network"
)

// ErrRetrieval marks a failed log retrieval.
var ErrRetrieval = errors.New("log retrieval failed")

// Resolver maps a contract address to its interface definition.
type Resolver interface {
	Resolve(ctx context.Context, address string, net network.Network) (explorer.Response, error)
}

// LogSource is the per-network chain collaborator.
type LogSource interface {
	FetchLogs(ctx context.Context, contract common.Address) ([]types.Log, error)
	aggregate.TimestampLookup
	aggregate.NameLookup
}

// SourceFunc returns the LogSource for a network.
type SourceFunc func(ctx context.Context, net network.Network) (LogSource, error)

// RunObserver receives pipeline outcomes.
type RunObserver interface {
	ObserveRun(net network.Network, outcome string, decoded, skipped int)
}

// Options toggles enrichment.
type Options struct {
	Timestamps bool
	Names      bool
	Enrich     aggregate.EnrichConfig
}

// Result is the tabular projection of a contract's events.
type Result struct {
	Address       string           `json:"address"`
	Network       network.Network  `json:"network"`
	Events        []model.LogEvent `json:"events"`
	FilterOptions []string         `json:"filterOptions"`
	Roles         model.RoleState  `json:"roles"`
	Skipped       int              `json:"skipped"`
}

// Filtered returns the events restricted to names in the given order.
func (r *Result) Filtered(order aggregate.Order, names ...string) []model.LogEvent {
	if r == nil {
		return nil
	}
	return aggregate.SortByBlock(aggregate.FilterByName(r.Events, names...), order)
}

// Pipeline resolves, retrieves, decodes, folds and enriches a contract's events.
type Pipeline struct {
	resolver Resolver
	sources  SourceFunc
	opts     Options
	observer RunObserver
	logger   *zap.Logger
}

// NewPipeline builds a Pipeline.
func NewPipeline(resolver Resolver, sources SourceFunc, opts Options, observer RunObserver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Enrich.Logger == nil {
		opts.Enrich.Logger = logger
	}
	return &Pipeline{
		resolver: resolver,
		sources:  sources,
		opts:     opts,
		observer: observer,
		logger:   logger,
	}
}

// Run executes the full pipeline for address on net.
func (p *Pipeline) Run(ctx context.Context, address string, net network.Network) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}

	result, decoded, err := p.run(ctx, address, net)
	p.observe(net, err, decoded, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, address string, net network.Network) (*Result, int, error) {
	res, err := p.resolver.Resolve(ctx, address, net)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", explorer.ErrResolution, err)
	}
	if err := res.Err(); err != nil {
		return nil, 0, err
	}

	decoder, err := events.NewDecoder(res.ABI)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", explorer.ErrResolution, err)
	}

	if !common.IsHexAddress(address) {
		return nil, 0, fmt.Errorf("%w: invalid address %s", ErrRetrieval, address)
	}
	contract := common.HexToAddress(address)

	source, err := p.sources(ctx, net)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	logs, err := source.FetchLogs(ctx, contract)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	decodedEvents, skipped, decodeErr := decoder.DecodeAll(logs)
	if decodeErr != nil {
		p.logger.Warn("log decode failed", zap.String("address", address), zap.Error(decodeErr))
	}

	roles := aggregate.FoldRoles(decodedEvents)

	var timestamps map[model.EventKey]string
	if p.opts.Timestamps {
		timestamps = aggregate.ResolveTimestamps(ctx, source, decodedEvents, p.opts.Enrich)
	}
	var names map[common.Address]string
	if p.opts.Names {
		names = aggregate.ResolveNames(ctx, source, decodedEvents, p.opts.Enrich)
	}
	enriched := aggregate.Enrich(decodedEvents, timestamps, names)

	p.logger.Info("events loaded",
		zap.String("address", contract.Hex()),
		zap.String("network", net.String()),
		zap.Int("logs", len(logs)),
		zap.Int("decoded", len(decodedEvents)),
		zap.Int("skipped", skipped),
		zap.Int("actors", len(roles)),
	)

	return &Result{
		Address:       contract.Hex(),
		Network:       net,
		Events:        aggregate.SortByBlock(enriched, aggregate.Descending),
		FilterOptions: aggregate.FilterOptions(enriched),
		Roles:         roles,
		Skipped:       skipped,
	}, len(decodedEvents), nil
}

func (p *Pipeline) observe(net network.Network, err error, decoded int, result *Result) {
	if p.observer == nil {
		return
	}
	outcome := "ready"
	skipped := 0
	switch {
	case errors.Is(err, explorer.ErrResolution):
		outcome = "resolution_error"
	case errors.Is(err, ErrRetrieval):
		outcome = "retrieval_error"
	case err != nil:
		outcome = "error"
	}
	if result != nil {
		skipped = result.Skipped
	}
	p.observer.ObserveRun(net, outcome, decoded, skipped)
}
