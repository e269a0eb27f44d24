package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MempoolBackend implements Backend using the mempool.space API.
// Compatible with mempool.space and self-hosted instances; the address and
// transaction endpoints are the Esplora ones.
type MempoolBackend struct {
	baseURL    string
	httpClient *http.Client
	mu         sync.RWMutex
	connected  bool
}

// NewMempoolBackend creates a new mempool.space backend.
func NewMempoolBackend(baseURL string) *MempoolBackend {
	return &MempoolBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Type returns TypeMempool.
func (m *MempoolBackend) Type() Type {
	return TypeMempool
}

// SetBaseURL replaces the API endpoint. The backend must reconnect afterwards.
func (m *MempoolBackend) SetBaseURL(baseURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseURL = strings.TrimSuffix(baseURL, "/")
	m.connected = false
}

// BaseURL returns the current API endpoint.
func (m *MempoolBackend) BaseURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseURL
}

// Connect tests the connection to the API.
func (m *MempoolBackend) Connect(ctx context.Context) error {
	if _, err := m.GetBlockHeight(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

// Close closes the connection.
func (m *MempoolBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns true if connected.
func (m *MempoolBackend) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetAddressInfo returns funded/spent totals for an address.
func (m *MempoolBackend) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	var result struct {
		Address      string       `json:"address"`
		ChainStats   addressStats `json:"chain_stats"`
		MempoolStats addressStats `json:"mempool_stats"`
	}

	if err := m.get(ctx, "/address/"+address, &result); err != nil {
		return nil, err
	}

	return &AddressInfo{
		Address:        result.Address,
		TxCount:        result.ChainStats.TxCount + result.MempoolStats.TxCount,
		FundedTxCount:  result.ChainStats.FundedTxoCount,
		SpentTxCount:   result.ChainStats.SpentTxoCount,
		FundedSum:      result.ChainStats.FundedTxoSum,
		SpentSum:       result.ChainStats.SpentTxoSum,
		MempoolBalance: int64(result.MempoolStats.FundedTxoSum) - int64(result.MempoolStats.SpentTxoSum),
	}, nil
}

type addressStats struct {
	FundedTxoCount int64  `json:"funded_txo_count"`
	FundedTxoSum   uint64 `json:"funded_txo_sum"`
	SpentTxoCount  int64  `json:"spent_txo_count"`
	SpentTxoSum    uint64 `json:"spent_txo_sum"`
	TxCount        int64  `json:"tx_count"`
}

// GetAddressUTXOs returns confirmed and unconfirmed unspent outputs for an
// address, in the order the API reports them.
func (m *MempoolBackend) GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var result []struct {
		TxID   string   `json:"txid"`
		Vout   uint32   `json:"vout"`
		Status txStatus `json:"status"`
		Value  uint64   `json:"value"`
	}

	if err := m.get(ctx, "/address/"+address+"/utxo", &result); err != nil {
		return nil, err
	}

	utxos := make([]UTXO, len(result))
	for i, u := range result {
		utxos[i] = UTXO{
			TxID:        u.TxID,
			Vout:        u.Vout,
			Amount:      u.Value,
			Confirmed:   u.Status.Confirmed,
			BlockHeight: u.Status.BlockHeight,
		}
	}

	return utxos, nil
}

// GetAddressTxs returns the most recent transactions for an address.
func (m *MempoolBackend) GetAddressTxs(ctx context.Context, address string) ([]Transaction, error) {
	var result []esploraTx
	if err := m.get(ctx, "/address/"+address+"/txs", &result); err != nil {
		return nil, err
	}

	return convertTxs(result), nil
}

// GetTransaction returns a transaction by ID.
func (m *MempoolBackend) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	var result esploraTx
	if err := m.get(ctx, "/tx/"+txID, &result); err != nil {
		if errors.Is(err, ErrAddressNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txID)
		}
		return nil, err
	}

	tx := convertTxs([]esploraTx{result})[0]
	return &tx, nil
}

// BroadcastTransaction broadcasts a raw transaction and returns its txid.
func (m *MempoolBackend) BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL()+"/tx", strings.NewReader(rawTxHex))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcastFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrBroadcastFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Response is the txid
	return strings.TrimSpace(string(body)), nil
}

// GetBlockHeight returns the current block height.
func (m *MempoolBackend) GetBlockHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := m.get(ctx, "/blocks/tip/height", &height); err != nil {
		return 0, err
	}
	return height, nil
}

// GetFeeEstimates returns fee estimates keyed by confirmation target.
// mempool.space publishes named tiers, mapped here onto the Esplora targets.
func (m *MempoolBackend) GetFeeEstimates(ctx context.Context) (FeeEstimates, error) {
	var result map[string]float64
	if err := m.get(ctx, "/v1/fees/recommended", &result); err != nil {
		return nil, err
	}

	estimates := make(FeeEstimates)
	for key, target := range map[string]string{
		"fastestFee":  "1",
		"halfHourFee": "3",
		"hourFee":     "6",
		"economyFee":  "144",
		"minimumFee":  "1008",
	} {
		if rate, ok := result[key]; ok {
			estimates[target] = rate
		}
	}
	return estimates, nil
}

// get performs a GET request and decodes JSON response.
func (m *MempoolBackend) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.BaseURL()+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	// Avoid stale CDN responses
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrRequestFailed, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrAddressNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrRequestFailed, path, err)
	}
	return nil
}

type txStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	BlockTime   int64  `json:"block_time"`
}

type esploraVout struct {
	ScriptPubKey     string `json:"scriptpubkey"`
	ScriptPubKeyType string `json:"scriptpubkey_type"`
	ScriptPubKeyAddr string `json:"scriptpubkey_address"`
	Value            uint64 `json:"value"`
}

// esploraTx is the Esplora transaction format shared by both APIs.
type esploraTx struct {
	TxID     string   `json:"txid"`
	Version  int32    `json:"version"`
	LockTime uint32   `json:"locktime"`
	Size     int64    `json:"size"`
	Weight   int64    `json:"weight"`
	Fee      uint64   `json:"fee"`
	Status   txStatus `json:"status"`
	Vin      []struct {
		TxID      string       `json:"txid"`
		Vout      uint32       `json:"vout"`
		ScriptSig string       `json:"scriptsig"`
		Witness   []string     `json:"witness"`
		Sequence  uint32       `json:"sequence"`
		Prevout   *esploraVout `json:"prevout"`
	} `json:"vin"`
	Vout []esploraVout `json:"vout"`
}

func (v esploraVout) toOutput() TxOutput {
	return TxOutput{
		ScriptPubKey:     v.ScriptPubKey,
		ScriptPubKeyType: v.ScriptPubKeyType,
		ScriptPubKeyAddr: v.ScriptPubKeyAddr,
		Value:            v.Value,
	}
}

// convertTxs converts the API format to our Transaction format.
func convertTxs(eTxs []esploraTx) []Transaction {
	txs := make([]Transaction, len(eTxs))
	for i, et := range eTxs {
		tx := Transaction{
			TxID:        et.TxID,
			Version:     et.Version,
			Size:        et.Size,
			Weight:      et.Weight,
			VSize:       (et.Weight + 3) / 4,
			LockTime:    et.LockTime,
			Fee:         et.Fee,
			Confirmed:   et.Status.Confirmed,
			BlockHash:   et.Status.BlockHash,
			BlockHeight: et.Status.BlockHeight,
			BlockTime:   et.Status.BlockTime,
			Inputs:      make([]TxInput, len(et.Vin)),
			Outputs:     make([]TxOutput, len(et.Vout)),
		}

		for j, vin := range et.Vin {
			tx.Inputs[j] = TxInput{
				TxID:      vin.TxID,
				Vout:      vin.Vout,
				ScriptSig: vin.ScriptSig,
				Witness:   vin.Witness,
				Sequence:  vin.Sequence,
			}
			if vin.Prevout != nil {
				prev := vin.Prevout.toOutput()
				tx.Inputs[j].PrevOut = &prev
			}
		}

		for j, vout := range et.Vout {
			tx.Outputs[j] = vout.toOutput()
		}

		txs[i] = tx
	}
	return txs
}

var _ Backend = (*MempoolBackend)(nil)

