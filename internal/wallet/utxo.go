package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// UnspentOutput is one spendable output owned by the wallet's address.
type UnspentOutput struct {
	TxID          string
	Vout          uint32
	Value         int64 // satoshis
	LockingScript []byte
}

// OutPoint returns the wire outpoint this output is spent through.
func (u UnspentOutput) OutPoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %s: %w", u.TxID, err)
	}
	return wire.NewOutPoint(hash, u.Vout), nil
}

// TxOut returns the previous output as a wire.TxOut.
func (u UnspentOutput) TxOut() *wire.TxOut {
	return wire.NewTxOut(u.Value, u.LockingScript)
}

func (u UnspentOutput) key() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// UTXOSet is an immutable, ordered snapshot of the wallet's unspent outputs.
// Order is discovery order. A nil *UTXOSet is a valid empty set.
type UTXOSet struct {
	outputs []UnspentOutput
	balance int64
}

// NewUTXOSet builds a snapshot from outputs, keeping their order.
// A repeated (txid, vout) is kept once, at its first position.
func NewUTXOSet(outputs []UnspentOutput) *UTXOSet {
	seen := make(map[string]struct{}, len(outputs))
	set := &UTXOSet{outputs: make([]UnspentOutput, 0, len(outputs))}

	for _, u := range outputs {
		if _, dup := seen[u.key()]; dup {
			continue
		}
		seen[u.key()] = struct{}{}

		u.LockingScript = append([]byte(nil), u.LockingScript...)
		set.outputs = append(set.outputs, u)
		set.balance += u.Value
	}
	return set
}

// EmptyUTXOSet returns a set with no outputs.
func EmptyUTXOSet() *UTXOSet {
	return &UTXOSet{}
}

// Len returns the number of outputs.
func (s *UTXOSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.outputs)
}

// IsEmpty reports whether the set has no outputs.
func (s *UTXOSet) IsEmpty() bool {
	return s.Len() == 0
}

// Outputs returns a copy of the outputs in discovery order. Locking scripts
// are shared with the set and must not be modified.
func (s *UTXOSet) Outputs() []UnspentOutput {
	if s == nil {
		return nil
	}
	out := make([]UnspentOutput, len(s.outputs))
	copy(out, s.outputs)
	return out
}

// Balance returns the sum of all output values; 0 for an empty set.
func (s *UTXOSet) Balance() int64 {
	if s == nil {
		return 0
	}
	return s.balance
}

// sumValues totals a slice of outputs.
func sumValues(outputs []UnspentOutput) int64 {
	var total int64
	for _, u := range outputs {
		total += u.Value
	}
	return total
}
