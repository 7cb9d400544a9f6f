package view

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"eventScope/internal/aggregate"
	"eventScope/internal/chain"
	"eventScope/internal/explorer"
	"eventScope/internal/network"
)

const rolesABI = `[
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "actor", "type": "address"},
    {"indexed": true, "name": "role", "type": "bytes32"}
  ], "name": "RoleGranted", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "actor", "type": "address"},
    {"indexed": true, "name": "role", "type": "bytes32"}
  ], "name": "RoleRevoked", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": false, "name": "target", "type": "address"}
  ], "name": "Pinged", "type": "event"}
]`

var (
	testContract = common.HexToAddress("0x6123B0049F904d730dB3C36a31167D9d4121fA6B")
	alice        = common.HexToAddress("0x1111111111111111111111111111111111111111")
	minterRole   = crypto.Keccak256Hash([]byte("MINTER_ROLE"))
)

type fakeResolver struct {
	resp explorer.Response
	err  error
}

func (f fakeResolver) Resolve(ctx context.Context, address string, net network.Network) (explorer.Response, error) {
	return f.resp, f.err
}

type fakeSource struct {
	logs       []types.Log
	err        error
	timestamps map[uint64]uint64
	names      map[common.Address]string

	mu     sync.Mutex
	blocks []uint64
}

func (f *fakeSource) FetchLogs(ctx context.Context, contract common.Address) ([]types.Log, error) {
	return f.logs, f.err
}

func (f *fakeSource) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	f.mu.Lock()
	f.blocks = append(f.blocks, number)
	f.mu.Unlock()
	ts, ok := f.timestamps[number]
	if !ok {
		return 0, errors.New("unknown block")
	}
	return ts, nil
}

func (f *fakeSource) ReverseResolve(ctx context.Context, addr common.Address) (string, error) {
	name, ok := f.names[addr]
	if !ok {
		return "", errors.New("no name")
	}
	return name, nil
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveRun(net network.Network, outcome string, decoded, skipped int) {
	r.outcomes = append(r.outcomes, outcome)
}

func okResponse() explorer.Response {
	return explorer.Response{ABI: rolesABI, Status: "1", Message: "OK", HTTPStatus: 200}
}

func roleLog(t *testing.T, event string, block uint64, index uint) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(rolesABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return types.Log{
		Address:     testContract,
		Topics:      []common.Hash{parsed.Events[event].ID, common.BytesToHash(alice.Bytes()), minterRole},
		BlockNumber: block,
		Index:       index,
	}
}

func pingLog(t *testing.T, target common.Address, block uint64, index uint) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(rolesABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	data, err := parsed.Events["Pinged"].Inputs.Pack(target)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     testContract,
		Topics:      []common.Hash{parsed.Events["Pinged"].ID},
		Data:        data,
		BlockNumber: block,
		Index:       index,
	}
}

func sourceFunc(source LogSource) SourceFunc {
	return func(ctx context.Context, net network.Network) (LogSource, error) {
		return source, nil
	}
}

func TestPipelineRun(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	source := &fakeSource{
		logs: []types.Log{
			roleLog(t, "RoleGranted", 10, 0),
			roleLog(t, "RoleRevoked", 15, 0),
			roleLog(t, "RoleGranted", 20, 1),
			pingLog(t, alice, 20, 0),
			{Address: testContract, Topics: []common.Hash{common.HexToHash("0xdead")}, BlockNumber: 21},
		},
		timestamps: map[uint64]uint64{
			10: uint64(now.Add(-3 * time.Hour).Unix()),
			20: uint64(now.Add(-2 * time.Minute).Unix()),
		},
		names: map[common.Address]string{alice: "alice.eth"},
	}
	observer := &recordingObserver{}
	pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sourceFunc(source), Options{
		Timestamps: true,
		Names:      true,
		Enrich:     aggregate.EnrichConfig{Now: func() time.Time { return now }},
	}, observer, nil)

	result, err := pipeline.Run(context.Background(), strings.ToLower(testContract.Hex()), network.Homestead)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Address != testContract.Hex() {
		t.Fatalf("address mismatch: %s", result.Address)
	}
	if result.Skipped != 1 {
		t.Fatalf("skipped mismatch: %d", result.Skipped)
	}
	if len(result.Events) != 4 {
		t.Fatalf("events mismatch: %d", len(result.Events))
	}
	if result.Events[0].BlockNumber != 20 || result.Events[len(result.Events)-1].BlockNumber != 10 {
		t.Fatalf("events not descending: %+v", result.Events)
	}
	if !result.Roles.Has(alice.Hex(), minterRole.Hex()) {
		t.Fatalf("expected alice to hold minter role: %+v", result.Roles)
	}

	want := []string{"Pinged", "RoleGranted", "RoleRevoked"}
	if strings.Join(result.FilterOptions, ",") != strings.Join(want, ",") {
		t.Fatalf("filter options mismatch: %v", result.FilterOptions)
	}

	for _, event := range result.Events {
		switch event.BlockNumber {
		case 10:
			if event.Timestamp != "3 hours ago" {
				t.Fatalf("block 10 timestamp mismatch: %q", event.Timestamp)
			}
		case 15:
			if event.Timestamp != "" {
				t.Fatalf("block 15 should have no timestamp: %q", event.Timestamp)
			}
		case 20:
			if event.Timestamp != "2 minutes ago" {
				t.Fatalf("block 20 timestamp mismatch: %q", event.Timestamp)
			}
		}
		if event.Event == "Pinged" {
			arg, ok := event.Arg(aggregate.TargetArg)
			if !ok || arg.Display != "alice.eth" {
				t.Fatalf("target name mismatch: %+v", arg)
			}
		}
	}

	if len(observer.outcomes) != 1 || observer.outcomes[0] != "ready" {
		t.Fatalf("observer outcomes mismatch: %v", observer.outcomes)
	}
}

func TestPipelineRunWithoutEnrichment(t *testing.T) {
	source := &fakeSource{logs: []types.Log{roleLog(t, "RoleGranted", 10, 0)}}
	pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sourceFunc(source), Options{}, nil, nil)

	result, err := pipeline.Run(context.Background(), testContract.Hex(), network.Goerli)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(source.blocks) != 0 {
		t.Fatalf("unexpected timestamp lookups: %v", source.blocks)
	}
	if result.Events[0].Timestamp != "" {
		t.Fatalf("unexpected timestamp: %q", result.Events[0].Timestamp)
	}
	if result.Network != network.Goerli {
		t.Fatalf("network mismatch: %s", result.Network)
	}
}

func TestPipelineResolutionErrors(t *testing.T) {
	source := &fakeSource{}
	cases := []struct {
		name     string
		resolver fakeResolver
	}{
		{name: "unverified", resolver: fakeResolver{resp: explorer.Response{Status: "0", Message: "NOTOK", ABI: "Contract source code not verified", HTTPStatus: 200}}},
		{name: "transport", resolver: fakeResolver{err: errors.New("connection refused")}},
		{name: "invalid abi", resolver: fakeResolver{resp: explorer.Response{Status: "1", ABI: "not json", HTTPStatus: 200}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			observer := &recordingObserver{}
			pipeline := NewPipeline(tc.resolver, sourceFunc(source), Options{}, observer, nil)
			result, err := pipeline.Run(context.Background(), testContract.Hex(), network.Homestead)
			if !errors.Is(err, explorer.ErrResolution) {
				t.Fatalf("expected resolution error, got %v", err)
			}
			if result != nil {
				t.Fatalf("expected nil result, got %+v", result)
			}
			if observer.outcomes[0] != "resolution_error" {
				t.Fatalf("outcome mismatch: %v", observer.outcomes)
			}
		})
	}
}

func TestPipelineRetrievalErrors(t *testing.T) {
	t.Run("fetch failure", func(t *testing.T) {
		source := &fakeSource{err: errors.New("rpc down")}
		pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sourceFunc(source), Options{}, nil, nil)
		_, err := pipeline.Run(context.Background(), testContract.Hex(), network.Homestead)
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected retrieval error, got %v", err)
		}
	})

	t.Run("no chain for network", func(t *testing.T) {
		sources := func(ctx context.Context, net network.Network) (LogSource, error) {
			return nil, errors.New("no rpc url")
		}
		pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sources, Options{}, nil, nil)
		_, err := pipeline.Run(context.Background(), testContract.Hex(), network.Arbitrum)
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected retrieval error, got %v", err)
		}
	})

	t.Run("rpc serves another chain", func(t *testing.T) {
		sources := func(ctx context.Context, net network.Network) (LogSource, error) {
			return nil, fmt.Errorf("connect %s: %w", net, chain.ErrChainMismatch)
		}
		pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sources, Options{}, nil, nil)
		_, err := pipeline.Run(context.Background(), testContract.Hex(), network.Goerli)
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected retrieval error, got %v", err)
		}
		if !strings.Contains(err.Error(), chain.ErrChainMismatch.Error()) {
			t.Fatalf("expected chain mismatch detail, got %v", err)
		}
	})

	t.Run("malformed address", func(t *testing.T) {
		pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sourceFunc(&fakeSource{}), Options{}, nil, nil)
		_, err := pipeline.Run(context.Background(), "0x1234", network.Homestead)
		if !errors.Is(err, ErrRetrieval) {
			t.Fatalf("expected retrieval error, got %v", err)
		}
	})
}

func TestResultFiltered(t *testing.T) {
	source := &fakeSource{logs: []types.Log{
		roleLog(t, "RoleGranted", 10, 0),
		roleLog(t, "RoleRevoked", 15, 0),
		roleLog(t, "RoleGranted", 20, 0),
	}}
	pipeline := NewPipeline(fakeResolver{resp: okResponse()}, sourceFunc(source), Options{}, nil, nil)
	result, err := pipeline.Run(context.Background(), testContract.Hex(), network.Homestead)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	granted := result.Filtered(aggregate.Ascending, "RoleGranted")
	if len(granted) != 2 || granted[0].BlockNumber != 10 || granted[1].BlockNumber != 20 {
		t.Fatalf("filtered mismatch: %+v", granted)
	}
	if all := result.Filtered(aggregate.Descending); len(all) != 3 {
		t.Fatalf("unfiltered mismatch: %d", len(all))
	}
}
