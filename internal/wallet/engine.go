package wallet

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	Backend  backend.Backend
	Selector InputSelector   // defaults to SpendAll
	Logger   *logging.Logger // defaults to the "builder" component
}

// Engine runs wallet operations over a Session. It holds no wallet state of
// its own, so operations on different sessions never interfere.
type Engine struct {
	backend backend.Backend
	scanner *Scanner
	builder *builder
	logger  *logging.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg *EngineConfig) *Engine {
	selector := cfg.Selector
	if selector == nil {
		selector = SpendAll{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetDefault().Component("builder")
	}

	return &Engine{
		backend: cfg.Backend,
		scanner: NewScanner(cfg.Backend, logger),
		builder: &builder{backend: cfg.Backend, selector: selector, logger: logger},
		logger:  logger,
	}
}

// Backend returns the chain data provider.
func (e *Engine) Backend() backend.Backend {
	return e.backend
}

// Scan refreshes the session's UTXO set from the provider. On failure the
// returned session has an empty set; callers must not keep the old one.
func (e *Engine) Scan(ctx context.Context, sess Session) (Session, error) {
	cleared := sess.WithUTXOs(EmptyUTXOSet())

	address, err := sess.Address()
	if err != nil {
		return cleared, err
	}

	utxos, err := e.scanner.Scan(ctx, address)
	if err != nil {
		e.logger.Error("utxo scan failed", "address", address, "error", err)
		return cleared, err
	}
	return sess.WithUTXOs(utxos), nil
}

// BalanceOf returns the on-chain balance of any address on the session's network.
func (e *Engine) BalanceOf(ctx context.Context, sess Session, address string) (int64, error) {
	return e.scanner.BalanceOf(ctx, address, sess.Network())
}

// AddressInfo returns the provider's totals for any address on the
// session's network.
func (e *Engine) AddressInfo(ctx context.Context, sess Session, address string) (*backend.AddressInfo, error) {
	return e.scanner.AddressInfo(ctx, address, sess.Network())
}

// Transactions returns recent transactions of any address on the session's
// network.
func (e *Engine) Transactions(ctx context.Context, sess Session, address string) ([]backend.Transaction, error) {
	return e.scanner.Transactions(ctx, address, sess.Network())
}

// Connect checks the provider is reachable. An already connected provider
// is not probed again.
func (e *Engine) Connect(ctx context.Context) error {
	if e.backend.IsConnected() {
		return nil
	}
	if err := e.backend.Connect(ctx); err != nil {
		return fmt.Errorf("%w: connect: %w", ErrProvider, err)
	}
	e.logger.Debug("provider connected", "type", e.backend.Type(), "url", e.backend.BaseURL())
	return nil
}

// Close releases the provider connection.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// TipHeight returns the provider's current block height.
func (e *Engine) TipHeight(ctx context.Context) (int64, error) {
	height, err := e.backend.GetBlockHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: block height: %w", ErrProvider, err)
	}
	return height, nil
}

// Quote fetches fee estimates and prices a transaction spending the
// session's UTXO set. A non-empty memo prices the vault variant.
func (e *Engine) Quote(ctx context.Context, sess Session, memo string) (FeeSchedule, error) {
	if sess.UTXOs().IsEmpty() {
		return nil, ErrNoUTXOs
	}

	estimates, err := e.backend.GetFeeEstimates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fee estimates: %w", ErrProvider, err)
	}
	return Quote(sess.UTXOs(), memo, estimates)
}

// BuildNormalTransaction sends value to address, returning change to the
// wallet, and broadcasts the result.
func (e *Engine) BuildNormalTransaction(ctx context.Context, sess Session, address string, value int64, rate float64) (*BuildResult, error) {
	return e.run(ctx, &buildRequest{
		network: sess.Network(),
		utxos:   sess.UTXOs(),
		signer:  sess.signer(),
		to:      address,
		value:   value,
		rate:    rate,
	}, true)
}

// BuildVaultTransaction sends value to vaultAddress with memo attached in a
// null-data output, and broadcasts the result.
func (e *Engine) BuildVaultTransaction(ctx context.Context, sess Session, vaultAddress string, value int64, memo string, rate float64) (*BuildResult, error) {
	payload := CompileMemo(memo)
	return e.run(ctx, &buildRequest{
		network: sess.Network(),
		utxos:   sess.UTXOs(),
		signer:  sess.signer(),
		to:      vaultAddress,
		value:   value,
		rate:    rate,
		memo:    &payload,
	}, true)
}

// SignNormalTransaction builds and signs like BuildNormalTransaction but
// does not broadcast.
func (e *Engine) SignNormalTransaction(sess Session, address string, value int64, rate float64) (*BuildResult, error) {
	return e.run(context.Background(), &buildRequest{
		network: sess.Network(),
		utxos:   sess.UTXOs(),
		signer:  sess.signer(),
		to:      address,
		value:   value,
		rate:    rate,
	}, false)
}

// SignVaultTransaction builds and signs like BuildVaultTransaction but does
// not broadcast.
func (e *Engine) SignVaultTransaction(sess Session, vaultAddress string, value int64, memo string, rate float64) (*BuildResult, error) {
	payload := CompileMemo(memo)
	return e.run(context.Background(), &buildRequest{
		network: sess.Network(),
		utxos:   sess.UTXOs(),
		signer:  sess.signer(),
		to:      vaultAddress,
		value:   value,
		rate:    rate,
		memo:    &payload,
	}, false)
}

func (e *Engine) run(ctx context.Context, req *buildRequest, broadcast bool) (*BuildResult, error) {
	result, err := e.builder.build(ctx, req, broadcast)
	if err != nil && isPreconditionError(err) {
		e.logger.Debug("transaction rejected", "to", req.to, "value", req.value, "error", err)
	}
	return result, err
}
