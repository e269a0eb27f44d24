// Package chain defines the network parameters the wallet engine runs against.
// All chain-specific values are hardcoded here - no external configuration needed.
package chain

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network represents mainnet or testnet.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// ParseNetwork converts a user-supplied network name into a Network.
// Accepts the short forms "main" and "test" as well.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "main":
		return Mainnet, nil
	case "testnet", "test":
		return Testnet, nil
	default:
		return "", fmt.Errorf("unknown network: %q", s)
	}
}

// Valid reports whether n is one of the known networks.
func (n Network) Valid() bool {
	return n == Mainnet || n == Testnet
}

// String implements fmt.Stringer.
func (n Network) String() string {
	return string(n)
}

// Params returns the BTC parameters for n. Unknown networks fall back to
// mainnet.
func (n Network) Params() *Params {
	if p, ok := Get("BTC", n); ok {
		return p
	}
	p, _ := Get("BTC", Mainnet)
	return p
}

// ChainParams returns the btcd network parameters for BTC on n.
func (n Network) ChainParams() *chaincfg.Params {
	return n.Params().Net
}

// Params contains the parameters for a UTXO chain on one network.
type Params struct {
	Symbol   string // BTC
	Name     string // Bitcoin, Bitcoin Testnet
	Decimals uint8  // 8 for BTC

	// Net carries address version bytes, WIF prefix and HD magic.
	Net *chaincfg.Params
}

// registry holds all chain parameters indexed by symbol.
var registry = make(map[string]map[Network]*Params)

// Register adds chain params to the registry.
func Register(symbol string, network Network, params *Params) {
	if registry[symbol] == nil {
		registry[symbol] = make(map[Network]*Params)
	}
	registry[symbol][network] = params
}

// Get returns chain params for a symbol and network.
func Get(symbol string, network Network) (*Params, bool) {
	nets, ok := registry[symbol]
	if !ok {
		return nil, false
	}
	params, ok := nets[network]
	return params, ok
}
