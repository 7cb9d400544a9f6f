package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// FetchConfig controls historical log retrieval.
type FetchConfig struct {
	FromBlock    uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	fetch     FetchConfig
	registry  common.Address
	logger    *zap.Logger

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient creates a new chain client from the RPC URL. ensRegistry may be
// empty on networks without ENS.
func NewClient(ctx context.Context, rpcURL string, ensRegistry string, fetch FetchConfig, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient, ensRegistry, fetch, logger), nil
}

func newClient(rpcClient *rpc.Client, ensRegistry string, fetch FetchConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	var registry common.Address
	if ensRegistry != "" {
		registry = common.HexToAddress(ensRegistry)
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		fetch:     fetch,
		registry:  registry,
		logger:    logger,
		tsCache:   make(map[uint64]uint64),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FetchLogs returns every log emitted by contract from the configured start
// block up to the latest block, in retrieval order.
func (c *Client) FetchLogs(ctx context.Context, contract common.Address) ([]types.Log, error) {
	latest, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}

	from := c.fetch.FromBlock
	if from > latest {
		return nil, nil
	}

	ranges := []BlockRange{{From: from, To: latest}}
	if c.fetch.BatchSize > 0 {
		ranges, err = SplitRange(from, latest, c.fetch.BatchSize)
		if err != nil {
			return nil, err
		}
	}

	out := make([]types.Log, 0)
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logs, err := c.filterLogsWithRetry(ctx, blockRange, contract)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}
		out = append(out, logs...)
	}

	c.logger.Debug("logs fetched",
		zap.String("contract", contract.Hex()),
		zap.Uint64("from", from),
		zap.Uint64("to", latest),
		zap.Int("logs", len(out)),
	)
	return out, nil
}

func (c *Client) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, contract common.Address) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, c.fetch.MaxRetries, c.fetch.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = c.FilterLogs(ctx, blockRange.From, blockRange.To, []common.Address{contract}, nil)
		if err != nil {
			c.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, err
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
