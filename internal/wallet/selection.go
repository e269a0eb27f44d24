package wallet

// InputSelector chooses which outputs of a UTXO set fund a transaction.
type InputSelector interface {
	// Select returns the inputs to bind, in binding order. target is the
	// value of the primary output, before fees.
	Select(utxos *UTXOSet, target int64) ([]UnspentOutput, error)
}

// SpendAll binds every output of the set, in set order. Whatever is not
// paid out or spent on fees returns as change.
type SpendAll struct{}

// Select implements InputSelector.
func (SpendAll) Select(utxos *UTXOSet, _ int64) ([]UnspentOutput, error) {
	if utxos.IsEmpty() {
		return nil, ErrNoUTXOs
	}
	return utxos.Outputs(), nil
}

var _ InputSelector = SpendAll{}
