package backend

import "context"

// MockBackend is a test double for Backend.
// Unset function fields make the corresponding method fail with ErrNotConnected.
type MockBackend struct {
	GetAddressInfoFn       func(ctx context.Context, address string) (*AddressInfo, error)
	GetAddressUTXOsFn      func(ctx context.Context, address string) ([]UTXO, error)
	GetAddressTxsFn        func(ctx context.Context, address string) ([]Transaction, error)
	GetTransactionFn       func(ctx context.Context, txID string) (*Transaction, error)
	BroadcastTransactionFn func(ctx context.Context, rawTxHex string) (string, error)
	GetBlockHeightFn       func(ctx context.Context) (int64, error)
	GetFeeEstimatesFn      func(ctx context.Context) (FeeEstimates, error)

	baseURL   string
	connected bool
}

func (m *MockBackend) Type() Type { return "mock" }

func (m *MockBackend) Connect(ctx context.Context) error {
	if _, err := m.GetBlockHeight(ctx); err != nil {
		return err
	}
	m.connected = true
	return nil
}

func (m *MockBackend) Close() error      { m.connected = false; return nil }
func (m *MockBackend) IsConnected() bool { return m.connected }
func (m *MockBackend) BaseURL() string   { return m.baseURL }

func (m *MockBackend) SetBaseURL(baseURL string) {
	m.baseURL = baseURL
	m.connected = false
}

func (m *MockBackend) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	if m.GetAddressInfoFn == nil {
		return nil, ErrNotConnected
	}
	return m.GetAddressInfoFn(ctx, address)
}

func (m *MockBackend) GetAddressUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	if m.GetAddressUTXOsFn == nil {
		return nil, ErrNotConnected
	}
	return m.GetAddressUTXOsFn(ctx, address)
}

func (m *MockBackend) GetAddressTxs(ctx context.Context, address string) ([]Transaction, error) {
	if m.GetAddressTxsFn == nil {
		return nil, ErrNotConnected
	}
	return m.GetAddressTxsFn(ctx, address)
}

func (m *MockBackend) GetTransaction(ctx context.Context, txID string) (*Transaction, error) {
	if m.GetTransactionFn == nil {
		return nil, ErrNotConnected
	}
	return m.GetTransactionFn(ctx, txID)
}

func (m *MockBackend) BroadcastTransaction(ctx context.Context, rawTxHex string) (string, error) {
	if m.BroadcastTransactionFn == nil {
		return "", ErrNotConnected
	}
	return m.BroadcastTransactionFn(ctx, rawTxHex)
}

func (m *MockBackend) GetBlockHeight(ctx context.Context) (int64, error) {
	if m.GetBlockHeightFn == nil {
		return 0, ErrNotConnected
	}
	return m.GetBlockHeightFn(ctx)
}

func (m *MockBackend) GetFeeEstimates(ctx context.Context) (FeeEstimates, error) {
	if m.GetFeeEstimatesFn == nil {
		return nil, ErrNotConnected
	}
	return m.GetFeeEstimatesFn(ctx)
}

var _ Backend = (*MockBackend)(nil)
