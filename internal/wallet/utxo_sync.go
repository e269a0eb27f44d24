package wallet

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/internal/chain"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

// Scanner refreshes UTXO sets and answers address queries from a backend.
type Scanner struct {
	backend backend.Backend
	logger  *logging.Logger
}

// NewScanner creates a scanner. A nil logger uses the default "scanner" component.
func NewScanner(b backend.Backend, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.GetDefault().Component("scanner")
	}
	return &Scanner{backend: b, logger: logger}
}

// Scan lists the unspent outputs of address and resolves each locking script
// from its funding transaction, one at a time in listing order. The first
// provider error aborts the scan; no partial set is returned.
func (s *Scanner) Scan(ctx context.Context, address string) (*UTXOSet, error) {
	s.logger.Debug("scanning utxos", "address", address)

	listed, err := s.backend.GetAddressUTXOs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: list utxos: %w", ErrScanFailed, err)
	}

	outputs := make([]UnspentOutput, 0, len(listed))
	for _, u := range listed {
		tx, err := s.backend.GetTransaction(ctx, u.TxID)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s: %w", ErrScanFailed, u.TxID, err)
		}
		if int(u.Vout) >= len(tx.Outputs) {
			return nil, fmt.Errorf("%w: %s has no output %d", ErrScanFailed, u.TxID, u.Vout)
		}

		script, err := hex.DecodeString(tx.Outputs[u.Vout].ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d script: %v", ErrScanFailed, u.TxID, u.Vout, err)
		}

		outputs = append(outputs, UnspentOutput{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Value:         int64(u.Amount),
			LockingScript: script,
		})
	}

	set := NewUTXOSet(outputs)
	if set.Len() != len(outputs) {
		s.logger.Warn("dropped duplicate utxos", "address", address, "listed", len(outputs), "kept", set.Len())
	}
	s.logger.Info("utxo scan complete", "address", address, "utxos", set.Len(), "balance", set.Balance())
	return set, nil
}

// AddressInfo returns the provider's funded and spent totals for any
// address on network.
func (s *Scanner) AddressInfo(ctx context.Context, address string, network chain.Network) (*backend.AddressInfo, error) {
	if !ValidateAddress(address, network) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}

	info, err := s.backend.GetAddressInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: address info: %w", ErrProvider, err)
	}
	return info, nil
}

// BalanceOf returns confirmed funded minus spent for any address on network.
func (s *Scanner) BalanceOf(ctx context.Context, address string, network chain.Network) (int64, error) {
	info, err := s.AddressInfo(ctx, address, network)
	if err != nil {
		return 0, err
	}
	return info.Balance(), nil
}

// Transactions returns the provider's recent transaction history for address.
func (s *Scanner) Transactions(ctx context.Context, address string, network chain.Network) ([]backend.Transaction, error) {
	if !ValidateAddress(address, network) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}

	txs, err := s.backend.GetAddressTxs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: address txs: %w", ErrProvider, err)
	}
	return txs, nil
}
