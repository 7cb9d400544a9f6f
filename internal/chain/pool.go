package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"eventScope/internal/network"
)

// ErrChainMismatch is returned when an RPC endpoint serves a different chain
// than the network it is configured for.
var ErrChainMismatch = errors.New("chain id mismatch")

type dialFunc func(ctx context.Context, rpcURL string) (*rpc.Client, error)

// Pool lazily dials one Client per network.
type Pool struct {
	rpcURLs map[network.Network]string
	fetch   FetchConfig
	logger  *zap.Logger
	dial    dialFunc

	mu      sync.Mutex
	clients map[network.Network]*Client
}

// NewPool builds a Pool from per-network RPC URLs.
func NewPool(rpcURLs map[network.Network]string, fetch FetchConfig, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		rpcURLs: rpcURLs,
		fetch:   fetch,
		logger:  logger,
		dial:    rpc.DialContext,
		clients: make(map[network.Network]*Client),
	}
}

// Client returns the client for net, dialing it on first use. A freshly dialed
// endpoint must report the chain ID of net.
func (p *Pool) Client(ctx context.Context, net network.Network) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[net]; ok {
		return client, nil
	}

	rpcURL := p.rpcURLs[net]
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url for network %s is not configured", net)
	}

	rpcClient, err := p.dial(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc %s: %w", net, err)
	}
	logger := p.logger.With(zap.String("network", net.String()))
	client := newClient(rpcClient, net.Info().ENSRegistry, p.fetch, logger)

	if err := verifyChainID(ctx, client, net); err != nil {
		client.Close()
		return nil, err
	}

	p.clients[net] = client
	logger.Info("rpc connected", zap.Uint64("chainId", net.Info().ChainID))
	return client, nil
}

func verifyChainID(ctx context.Context, client *Client, net network.Network) error {
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id for %s: %w", net, err)
	}
	want := net.Info().ChainID
	if !chainID.IsUint64() || chainID.Uint64() != want {
		return fmt.Errorf("%w: network %s expects %d, rpc serves %s", ErrChainMismatch, net, want, chainID)
	}
	return nil
}

// Close closes every dialed client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for net, client := range p.clients {
		client.Close()
		delete(p.clients, net)
	}
}
