package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// fakeNode serves the eth_ methods the client uses over an in-process server.
type fakeNode struct {
	chainID  uint64
	latest   uint64
	logs     []types.Log
	registry common.Address
	resolver common.Address

	mu          sync.Mutex
	failLogs    int
	ranges      [][2]uint64
	headerCalls int
	resolvers   map[common.Hash]common.Address
	names       map[common.Hash]string
}

type filterArg struct {
	FromBlock string           `json:"fromBlock"`
	ToBlock   string           `json:"toBlock"`
	Address   []common.Address `json:"address"`
}

type callArg struct {
	To    *common.Address `json:"to"`
	Input hexutil.Bytes   `json:"input"`
}

func (n *fakeNode) ChainId() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).SetUint64(n.chainID))
}

func (n *fakeNode) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(n.latest)
}

func (n *fakeNode) GetBlockByNumber(number string, full bool) (*types.Header, error) {
	block, err := hexutil.DecodeUint64(number)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.headerCalls++
	n.mu.Unlock()
	return &types.Header{
		Number:     new(big.Int).SetUint64(block),
		Difficulty: new(big.Int),
		Time:       1_700_000_000 + block*12,
	}, nil
}

func (n *fakeNode) GetLogs(arg filterArg) ([]types.Log, error) {
	from, err := hexutil.DecodeUint64(arg.FromBlock)
	if err != nil {
		return nil, err
	}
	to, err := hexutil.DecodeUint64(arg.ToBlock)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failLogs > 0 {
		n.failLogs--
		return nil, errors.New("upstream timeout")
	}
	n.ranges = append(n.ranges, [2]uint64{from, to})

	out := make([]types.Log, 0)
	for _, log := range n.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if len(arg.Address) > 0 && !containsAddress(arg.Address, log.Address) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (n *fakeNode) Call(arg callArg, block string) (hexutil.Bytes, error) {
	parsed, err := ensABIInstance()
	if err != nil {
		return nil, err
	}
	if arg.To == nil || len(arg.Input) < 4 {
		return nil, errors.New("malformed call")
	}
	method, err := parsed.MethodById(arg.Input[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(arg.Input[4:])
	if err != nil {
		return nil, err
	}
	node := common.Hash(args[0].([32]byte))

	n.mu.Lock()
	defer n.mu.Unlock()
	switch method.Name {
	case "resolver":
		if *arg.To != n.registry {
			return nil, fmt.Errorf("resolver called on %s", arg.To.Hex())
		}
		return method.Outputs.Pack(n.resolvers[node])
	case "name":
		if *arg.To != n.resolver {
			return nil, fmt.Errorf("name called on %s", arg.To.Hex())
		}
		return method.Outputs.Pack(n.names[node])
	default:
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
}

func (n *fakeNode) fetchedRanges() [][2]uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]uint64(nil), n.ranges...)
}

func (n *fakeNode) headers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.headerCalls
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, candidate := range list {
		if candidate == addr {
			return true
		}
	}
	return false
}

func startNode(t *testing.T, node *fakeNode) *rpc.Server {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("eth", node); err != nil {
		t.Fatalf("register eth service: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

func dialNode(t *testing.T, node *fakeNode, fetch FetchConfig) *Client {
	t.Helper()
	client := newClient(rpc.DialInProc(startNode(t, node)), node.registry.Hex(), fetch, nil)
	t.Cleanup(client.Close)
	return client
}

func logAt(contract common.Address, block uint64, index uint) types.Log {
	return types.Log{
		Address:     contract,
		Topics:      []common.Hash{common.BigToHash(new(big.Int).SetUint64(block))},
		Data:        []byte{},
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*100 + uint64(index))),
		Index:       index,
	}
}
