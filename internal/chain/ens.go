package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoName is returned when an address has no reverse record.
var ErrNoName = errors.New("no reverse name")

const ensABIJSON = `[
  {"inputs": [{"internalType": "bytes32", "name": "node", "type": "bytes32"}], "name": "resolver", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "bytes32", "name": "node", "type": "bytes32"}], "name": "name", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	ensABI     abi.ABI
	ensABIOnce sync.Once
	ensABIErr  error
)

func ensABIInstance() (abi.ABI, error) {
	ensABIOnce.Do(func() {
		ensABI, ensABIErr = abi.JSON(strings.NewReader(ensABIJSON))
	})
	return ensABI, ensABIErr
}

// NameHash computes the ENS namehash of a dotted name.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label)
	}
	return node
}

// ReverseNode returns the namehash of <addr>.addr.reverse.
func ReverseNode(addr common.Address) common.Hash {
	hexAddr := strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x"))
	return NameHash(hexAddr + ".addr.reverse")
}

// ReverseResolve looks up the primary ENS name of addr.
func (c *Client) ReverseResolve(ctx context.Context, addr common.Address) (string, error) {
	if c.registry == (common.Address{}) {
		return "", fmt.Errorf("reverse lookup unsupported: %w", ErrNoName)
	}
	parsed, err := ensABIInstance()
	if err != nil {
		return "", fmt.Errorf("parse ens abi: %w", err)
	}

	node := ReverseNode(addr)
	values, err := c.callENS(ctx, parsed, c.registry, "resolver", node)
	if err != nil {
		return "", err
	}
	resolver, ok := values[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("resolver unexpected type %T", values[0])
	}
	if resolver == (common.Address{}) {
		return "", ErrNoName
	}

	values, err = c.callENS(ctx, parsed, resolver, "name", node)
	if err != nil {
		return "", err
	}
	name, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("name unexpected type %T", values[0])
	}
	if name == "" {
		return "", ErrNoName
	}
	return name, nil
}

func (c *Client) callENS(ctx context.Context, parsed abi.ABI, to common.Address, method string, node common.Hash) ([]interface{}, error) {
	data, err := parsed.Pack(method, node)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s return size %d", method, len(values))
	}
	return values, nil
}
