package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/internal/chain"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

// chainFixture serves UTXO listings and funding transactions for one address.
type chainFixture struct {
	utxos   []backend.UTXO
	txs     map[string]*backend.Transaction
	fetched []string
}

func newChainFixture() *chainFixture {
	return &chainFixture{txs: make(map[string]*backend.Transaction)}
}

// fund adds an output of value at vout of a new transaction n paying script.
func (f *chainFixture) fund(n int, vout uint32, value uint64, script []byte) {
	txid := testTxID(n)
	outputs := make([]backend.TxOutput, vout+1)
	for i := range outputs {
		outputs[i] = backend.TxOutput{ScriptPubKey: "6a", Value: 0}
	}
	outputs[vout] = backend.TxOutput{ScriptPubKey: hex.EncodeToString(script), Value: value}

	f.txs[txid] = &backend.Transaction{TxID: txid, Outputs: outputs}
	f.utxos = append(f.utxos, backend.UTXO{TxID: txid, Vout: vout, Amount: value, Confirmed: true})
}

func (f *chainFixture) mock() *backend.MockBackend {
	return &backend.MockBackend{
		GetAddressUTXOsFn: func(_ context.Context, _ string) ([]backend.UTXO, error) {
			return f.utxos, nil
		},
		GetTransactionFn: func(_ context.Context, txID string) (*backend.Transaction, error) {
			f.fetched = append(f.fetched, txID)
			tx, ok := f.txs[txID]
			if !ok {
				return nil, backend.ErrTxNotFound
			}
			return tx, nil
		},
	}
}

func TestScannerScan(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	fx := newChainFixture()
	fx.fund(3, 1, 20000, kp.PkScript())
	fx.fund(1, 0, 5000, kp.PkScript())
	fx.fund(2, 2, 75000, kp.PkScript())

	set, err := NewScanner(fx.mock(), logging.Discard()).Scan(context.Background(), kp.Address())
	require.NoError(t, err)

	require.Equal(t, 3, set.Len())
	assert.Equal(t, int64(100000), set.Balance())
	assert.Equal(t, []string{testTxID(3), testTxID(1), testTxID(2)}, fx.fetched)

	outputs := set.Outputs()
	assert.Equal(t, testTxID(3), outputs[0].TxID)
	assert.Equal(t, uint32(1), outputs[0].Vout)
	assert.Equal(t, int64(20000), outputs[0].Value)
	assert.Equal(t, kp.PkScript(), outputs[0].LockingScript)
	assert.Equal(t, uint32(2), outputs[2].Vout)
}

func TestScannerScanEmpty(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	fx := newChainFixture()

	set, err := NewScanner(fx.mock(), logging.Discard()).Scan(context.Background(), kp.Address())
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
	assert.Equal(t, int64(0), set.Balance())
}

func TestScannerScanDropsDuplicates(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	fx := newChainFixture()
	fx.fund(1, 0, 5000, kp.PkScript())
	fx.utxos = append(fx.utxos, fx.utxos[0])

	set, err := NewScanner(fx.mock(), logging.Discard()).Scan(context.Background(), kp.Address())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, int64(5000), set.Balance())
}

func TestScannerScanFailsFast(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	fx := newChainFixture()
	fx.fund(1, 0, 5000, kp.PkScript())
	fx.utxos = append(fx.utxos, backend.UTXO{TxID: testTxID(2), Vout: 0, Amount: 10})
	fx.fund(3, 0, 7000, kp.PkScript())

	set, err := NewScanner(fx.mock(), logging.Discard()).Scan(context.Background(), kp.Address())
	assert.Nil(t, set)
	assert.ErrorIs(t, err, ErrScanFailed)
	assert.ErrorIs(t, err, backend.ErrTxNotFound)
	assert.Equal(t, []string{testTxID(1), testTxID(2)}, fx.fetched)
}

func TestScannerScanListingError(t *testing.T) {
	b := &backend.MockBackend{
		GetAddressUTXOsFn: func(context.Context, string) ([]backend.UTXO, error) {
			return nil, backend.ErrRateLimited
		},
	}

	_, err := NewScanner(b, logging.Discard()).Scan(context.Background(), testDestMainnet)
	assert.ErrorIs(t, err, ErrScanFailed)
	assert.ErrorIs(t, err, backend.ErrRateLimited)
}

func TestScannerScanVoutOutOfRange(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	fx := newChainFixture()
	fx.fund(1, 0, 5000, kp.PkScript())
	fx.utxos[0].Vout = 4

	_, err := NewScanner(fx.mock(), logging.Discard()).Scan(context.Background(), kp.Address())
	assert.ErrorIs(t, err, ErrScanFailed)
}

func TestScannerBalanceOf(t *testing.T) {
	b := &backend.MockBackend{
		GetAddressInfoFn: func(_ context.Context, address string) (*backend.AddressInfo, error) {
			return &backend.AddressInfo{Address: address, FundedSum: 150000, SpentSum: 40000, MempoolBalance: 999}, nil
		},
	}
	s := NewScanner(b, logging.Discard())

	balance, err := s.BalanceOf(context.Background(), testDestMainnet, chain.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, int64(110000), balance)

	_, err = s.BalanceOf(context.Background(), testDestMainnet, chain.Testnet)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestScannerAddressInfo(t *testing.T) {
	b := &backend.MockBackend{
		GetAddressInfoFn: func(_ context.Context, address string) (*backend.AddressInfo, error) {
			return &backend.AddressInfo{Address: address, TxCount: 4, FundedSum: 150000, SpentSum: 40000, MempoolBalance: 999}, nil
		},
	}
	s := NewScanner(b, logging.Discard())

	info, err := s.AddressInfo(context.Background(), testDestTestnet, chain.Testnet)
	require.NoError(t, err)
	assert.Equal(t, testDestTestnet, info.Address)
	assert.Equal(t, int64(999), info.MempoolBalance)
	assert.Equal(t, int64(110000), info.Balance())

	_, err = s.AddressInfo(context.Background(), testDestTestnet, chain.Mainnet)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestScannerBalanceOfProviderError(t *testing.T) {
	b := &backend.MockBackend{
		GetAddressInfoFn: func(context.Context, string) (*backend.AddressInfo, error) {
			return nil, backend.ErrUnexpectedStatus
		},
	}

	_, err := NewScanner(b, logging.Discard()).BalanceOf(context.Background(), testDestMainnet, chain.Mainnet)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, backend.ErrUnexpectedStatus)
}

func TestScannerTransactions(t *testing.T) {
	b := &backend.MockBackend{
		GetAddressTxsFn: func(_ context.Context, address string) ([]backend.Transaction, error) {
			if address != testDestTestnet {
				return nil, errors.New("unexpected address")
			}
			return []backend.Transaction{{TxID: testTxID(1)}, {TxID: testTxID(2)}}, nil
		},
	}
	s := NewScanner(b, logging.Discard())

	txs, err := s.Transactions(context.Background(), testDestTestnet, chain.Testnet)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, testTxID(1), txs[0].TxID)

	_, err = s.Transactions(context.Background(), "nope", chain.Testnet)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	s = NewScanner(&backend.MockBackend{}, logging.Discard())
	_, err = s.Transactions(context.Background(), testDestTestnet, chain.Testnet)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, backend.ErrNotConnected)
}
