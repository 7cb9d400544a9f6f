package network

import (
	"fmt"
	"strings"
)

// Network selects the upstream explorer endpoint and chain client configuration.
type Network string

const (
	Homestead Network = "homestead"
	Goerli    Network = "goerli"
	Arbitrum  Network = "arbitrum"
)

// Default is used when a request does not name a network.
const Default = Homestead

// ensRegistry is the ENS registry deployment shared by mainnet and goerli.
const ensRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// Info holds the static facts of a network.
type Info struct {
	ChainID     uint64
	ExplorerURL string
	ENSRegistry string
}

var known = map[Network]Info{
	Homestead: {ChainID: 1, ExplorerURL: "https://api.etherscan.io/api", ENSRegistry: ensRegistry},
	Goerli:    {ChainID: 5, ExplorerURL: "https://api-goerli.etherscan.io/api", ENSRegistry: ensRegistry},
	Arbitrum:  {ChainID: 42161, ExplorerURL: "https://api.arbiscan.io/api"},
}

// All lists the supported networks in a stable order.
func All() []Network {
	return []Network{Homestead, Goerli, Arbitrum}
}

// Parse converts a query or flag value into a Network. Empty input selects Default.
func Parse(input string) (Network, error) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value == "" {
		return Default, nil
	}
	n := Network(value)
	if _, ok := known[n]; !ok {
		return "", fmt.Errorf("unsupported network: %s", input)
	}
	return n, nil
}

// Info returns the static facts for n. Unknown networks yield the zero Info.
func (n Network) Info() Info {
	return known[n]
}

func (n Network) String() string {
	return string(n)
}
