// Package backend provides the chain data provider used by the wallet engine:
// address and transaction lookups, fee-rate tables and transaction broadcast.
// This package is read-only for private keys - all signing happens in the wallet package.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

// Common errors
var (
	ErrNotConnected       = errors.New("backend not connected")
	ErrTxNotFound         = errors.New("transaction not found")
	ErrAddressNotFound    = errors.New("address not found")
	ErrBroadcastFailed    = errors.New("broadcast failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrRequestFailed      = errors.New("request failed")
	ErrUnexpectedStatus   = errors.New("unexpected status")
	ErrUnsupportedBackend = errors.New("unsupported backend type")
)

// Type represents the backend type.
type Type string

const (
	TypeMempool Type = "mempool" // mempool.space API
	TypeEsplora Type = "esplora" // blockstream.info / electrs API
)

// UTXO is an unspent output as reported by the provider.
// The locking script is not part of the listing; it comes from GetTransaction.
type UTXO struct {
	TxID        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	Amount      uint64 `json:"value"` // satoshis
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
}

// Transaction represents a transaction.
type Transaction struct {
	TxID        string     `json:"txid"`
	Version     int32      `json:"version"`
	Size        int64      `json:"size"`
	VSize       int64      `json:"vsize"`
	Weight      int64      `json:"weight"`
	LockTime    uint32     `json:"locktime"`
	Fee         uint64     `json:"fee"`
	Confirmed   bool       `json:"confirmed"`
	BlockHash   string     `json:"block_hash,omitempty"`
	BlockHeight int64      `json:"block_height,omitempty"`
	BlockTime   int64      `json:"block_time,omitempty"`
	Inputs      []TxInput  `json:"vin"`
	Outputs     []TxOutput `json:"vout"`
}

// TxInput represents a transaction input.
type TxInput struct {
	TxID      string    `json:"txid"`
	Vout      uint32    `json:"vout"`
	ScriptSig string    `json:"scriptsig,omitempty"`
	Witness   []string  `json:"witness,omitempty"`
	Sequence  uint32    `json:"sequence"`
	PrevOut   *TxOutput `json:"prevout,omitempty"`
}

// TxOutput represents a transaction output.
type TxOutput struct {
	ScriptPubKey     string `json:"scriptpubkey"` // hex encoded
	ScriptPubKeyType string `json:"scriptpubkey_type,omitempty"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address,omitempty"`
	Value            uint64 `json:"value"`
}

// AddressInfo contains aggregate funded/spent totals for an address.
type AddressInfo struct {
	Address        string `json:"address"`
	TxCount        int64  `json:"tx_count"`
	FundedTxCount  int64  `json:"funded_txo_count"`
	SpentTxCount   int64  `json:"spent_txo_count"`
	FundedSum      uint64 `json:"funded_txo_sum"`
	SpentSum       uint64 `json:"spent_txo_sum"`
	MempoolBalance int64  `json:"mempool_balance"` // unconfirmed delta
}

// Balance returns confirmed funded minus spent.
func (a *AddressInfo) Balance() int64 {
	return int64(a.FundedSum) - int64(a.SpentSum)
}

// FeeEstimates maps a confirmation target in blocks ("1", "3", "144") to a
// fee rate in sat/vB.
type FeeEstimates map[string]float64

// Target returns the rate for the given block target, if present.
func (f FeeEstimates) Target(blocks int) (float64, bool) {
	rate, ok := f[strconv.Itoa(blocks)]
	return rate, ok
}

// Backend defines the interface for blockchain data providers.
// All methods are read-only - no private keys are handled here.
type Backend interface {
	// Type returns the backend type (mempool, esplora).
	Type() Type

	// Connect checks the endpoint is reachable.
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool

	// SetBaseURL points the backend at another API endpoint.
	SetBaseURL(baseURL string)
	BaseURL() string

	// Address operations
	GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error)
	GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error)
	GetAddressTxs(ctx context.Context, address string) ([]Transaction, error)

	// Transaction operations
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error)

	GetBlockHeight(ctx context.Context) (int64, error)
	GetFeeEstimates(ctx context.Context) (FeeEstimates, error)
}

// Config contains backend configuration.
type Config struct {
	Type       Type   `yaml:"type"`
	MainnetURL string `yaml:"mainnet"`
	TestnetURL string `yaml:"testnet"`

	// Optional settings
	Timeout int `yaml:"timeout,omitempty"` // seconds, default 30
}

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DefaultConfig returns the public Blockstream Esplora endpoints.
func DefaultConfig() *Config {
	cfg, _ := DefaultConfigFor(TypeEsplora)
	return cfg
}

// DefaultConfigFor returns the public endpoints for a backend type.
// mempool.space serves /v1/fees/recommended, which Blockstream does not.
func DefaultConfigFor(t Type) (*Config, bool) {
	switch t {
	case TypeEsplora, "":
		return &Config{
			Type:       TypeEsplora,
			MainnetURL: "https://blockstream.info/api",
			TestnetURL: "https://blockstream.info/testnet/api",
			Timeout:    30,
		}, true
	case TypeMempool:
		return &Config{
			Type:       TypeMempool,
			MainnetURL: "https://mempool.space/api",
			TestnetURL: "https://mempool.space/testnet/api",
			Timeout:    30,
		}, true
	default:
		return nil, false
	}
}

// FillDefaults sets every empty endpoint and the timeout from the public
// defaults of c.Type. Unknown types are left alone.
func (c *Config) FillDefaults() {
	defaults, ok := DefaultConfigFor(c.Type)
	if !ok {
		return
	}
	if c.Type == "" {
		c.Type = defaults.Type
	}
	if c.MainnetURL == "" {
		c.MainnetURL = defaults.MainnetURL
	}
	if c.TestnetURL == "" {
		c.TestnetURL = defaults.TestnetURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
}

// URL returns the endpoint for the given network.
func (c *Config) URL(network chain.Network) string {
	if network == chain.Testnet {
		return c.TestnetURL
	}
	return c.MainnetURL
}

// TimeoutDuration returns the HTTP timeout.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// New creates a backend for the configured type and network.
func New(cfg *Config, network chain.Network) (Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	url := cfg.URL(network)
	if url == "" {
		return nil, fmt.Errorf("no %s endpoint configured for %s", cfg.Type, network)
	}

	switch cfg.Type {
	case TypeMempool:
		b := NewMempoolBackend(url)
		b.httpClient.Timeout = cfg.TimeoutDuration()
		return b, nil
	case TypeEsplora, "":
		b := NewEsploraBackend(url)
		b.httpClient.Timeout = cfg.TimeoutDuration()
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Type)
	}
}
