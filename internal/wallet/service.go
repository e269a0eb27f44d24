package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/internal/chain"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

// Client is the single-owner wallet handle. It holds the current Session and
// serializes every caller, including across provider I/O, so a scan never
// interleaves with a build on the same wallet.
type Client struct {
	engine *Engine
	sess   Session

	// backendCfg, when set, supplies per-network endpoints on SetNetwork.
	backendCfg *backend.Config

	logger *logging.Logger
	mu     sync.Mutex
}

// ClientConfig holds configuration for a Client.
type ClientConfig struct {
	Network chain.Network

	// Backend is used as is when set. Otherwise one is created from
	// BackendConfig (or backend.DefaultConfig).
	Backend       backend.Backend
	BackendConfig *backend.Config

	Selector InputSelector
	Logger   *logging.Logger
}

// NewClient creates a wallet client with no phrase loaded.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	network := cfg.Network
	if network == "" {
		network = chain.Mainnet
	}
	if !network.Valid() {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetDefault().Component("wallet")
	}

	b := cfg.Backend
	var backendCfg *backend.Config
	if b == nil {
		backendCfg = cfg.BackendConfig
		if backendCfg == nil {
			backendCfg = backend.DefaultConfig()
		}
		var err error
		b, err = backend.New(backendCfg, network)
		if err != nil {
			return nil, fmt.Errorf("failed to create backend: %w", err)
		}
	}

	return &Client{
		engine: NewEngine(&EngineConfig{
			Backend:  b,
			Selector: cfg.Selector,
			Logger:   logger,
		}),
		sess:       NewSession(network),
		backendCfg: backendCfg,
		logger:     logger,
	}, nil
}

// GenerateMnemonic generates a new 12-word mnemonic.
func (c *Client) GenerateMnemonic() (string, error) {
	return GenerateMnemonic()
}

// ValidateMnemonic checks if a mnemonic is valid.
func (c *Client) ValidateMnemonic(mnemonic string) bool {
	return ValidateMnemonic(mnemonic)
}

// SetPhrase loads the key for phrase and returns the wallet address. The
// held UTXO set is cleared. The empty phrase purges the wallet. An invalid
// phrase leaves the client unchanged.
func (c *Client) SetPhrase(phrase string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.sess.WithPhrase(phrase)
	if err != nil {
		return "", err
	}
	c.sess = next

	if !next.HasPhrase() {
		c.logger.Info("wallet purged")
		return "", nil
	}
	address, _ := next.Address()
	c.logger.Info("phrase loaded", "address", address, "network", next.Network())
	return address, nil
}

// Purge drops the key and the UTXO set.
func (c *Client) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = c.sess.Purged()
	c.logger.Info("wallet purged")
}

// SetNetwork switches the active network. A loaded phrase is kept and its
// address re-derived; the UTXO set is cleared.
func (c *Client) SetNetwork(network chain.Network) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !network.Valid() {
		return fmt.Errorf("unsupported network: %s", network)
	}
	next, err := c.sess.WithNetwork(network)
	if err != nil {
		return err
	}
	c.sess = next

	if c.backendCfg != nil {
		if url := c.backendCfg.URL(network); url != "" {
			c.engine.Backend().SetBaseURL(url)
		}
	}
	c.logger.Info("network changed", "network", network)
	return nil
}

// Network returns the active network.
func (c *Client) Network() chain.Network {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Network()
}

// SetBaseURL points the chain data provider at another endpoint.
func (c *Client) SetBaseURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Backend().SetBaseURL(url)
}

// Address returns the wallet address.
func (c *Client) Address() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Address()
}

// ValidateAddress reports whether address is valid on the active network.
func (c *Client) ValidateAddress(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ValidateAddress(address, c.sess.Network())
}

// ScanUTXOs replaces the held UTXO set with a fresh scan. The old set is
// cleared first, so after a failed scan the balance reads 0.
func (c *Client) ScanUTXOs(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.engine.Scan(ctx, c.sess)
	c.sess = next
	return err
}

// UTXOs returns the held UTXO set.
func (c *Client) UTXOs() *UTXOSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.UTXOs()
}

// Balance returns the sum of the held UTXO set.
func (c *Client) Balance() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Balance()
}

// BalanceForAddress returns the on-chain balance of any address.
func (c *Client) BalanceForAddress(ctx context.Context, address string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.BalanceOf(ctx, c.sess, address)
}

// AddressInfo returns confirmed and mempool totals for any address.
func (c *Client) AddressInfo(ctx context.Context, address string) (*backend.AddressInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.AddressInfo(ctx, c.sess, address)
}

// Transactions returns recent transactions of any address on the active
// network.
func (c *Client) Transactions(ctx context.Context, address string) ([]backend.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Transactions(ctx, c.sess, address)
}

// Connect checks the chain data provider is reachable.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Connect(ctx)
}

// Close releases the chain data provider.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Close()
}

// TipHeight returns the current block height.
func (c *Client) TipHeight(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.TipHeight(ctx)
}

// CalcFees quotes fees for spending the held UTXO set. Pass a memo to
// price a vault transaction.
func (c *Client) CalcFees(ctx context.Context, memo string) (FeeSchedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Quote(ctx, c.sess, memo)
}

// NormalTx sends value to address at rate sat/byte and returns the txid.
func (c *Client) NormalTx(ctx context.Context, address string, value int64, rate float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.engine.BuildNormalTransaction(ctx, c.sess, address, value, rate)
	if err != nil {
		return "", err
	}
	return result.TxID, nil
}

// VaultTx sends value to vaultAddress with memo and returns the txid.
func (c *Client) VaultTx(ctx context.Context, vaultAddress string, value int64, memo string, rate float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.engine.BuildVaultTransaction(ctx, c.sess, vaultAddress, value, memo, rate)
	if err != nil {
		return "", err
	}
	return result.TxID, nil
}

// Session returns a snapshot of the client's state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}
