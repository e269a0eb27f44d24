package backend

import (
	"context"
)

// EsploraBackend implements Backend using the Esplora API (blockstream.info, electrs).
// The Esplora API is the base mempool.space extends, so we reuse MempoolBackend.
type EsploraBackend struct {
	*MempoolBackend
}

// NewEsploraBackend creates a new Esplora backend.
func NewEsploraBackend(baseURL string) *EsploraBackend {
	return &EsploraBackend{
		MempoolBackend: NewMempoolBackend(baseURL),
	}
}

// Type returns TypeEsplora.
func (e *EsploraBackend) Type() Type {
	return TypeEsplora
}

// GetFeeEstimates returns the /fee-estimates table as published:
// confirmation targets ("1", "2", ... "1008") to sat/vB.
func (e *EsploraBackend) GetFeeEstimates(ctx context.Context) (FeeEstimates, error) {
	var result map[string]float64
	if err := e.get(ctx, "/fee-estimates", &result); err != nil {
		return nil, err
	}
	return FeeEstimates(result), nil
}

var _ Backend = (*EsploraBackend)(nil)
