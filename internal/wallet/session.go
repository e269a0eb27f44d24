package wallet

import (
	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

// Session is an immutable snapshot of wallet state: the active network, the
// optional key derived from the seed phrase, and the last scanned UTXO set.
// Every change returns a new Session; the receiver is never modified.
type Session struct {
	network chain.Network
	phrase  string
	keys    *KeyPair
	utxos   *UTXOSet
}

// NewSession returns an empty session on network.
func NewSession(network chain.Network) Session {
	return Session{network: network, utxos: EmptyUTXOSet()}
}

// WithPhrase returns a session keyed by phrase. The empty phrase purges the
// key and the UTXO set. An invalid phrase returns ErrInvalidPhrase and the
// receiver unchanged.
func (s Session) WithPhrase(phrase string) (Session, error) {
	if phrase == "" {
		return s.Purged(), nil
	}
	keys, err := NewKeyPair(phrase, s.network)
	if err != nil {
		return s, err
	}
	return Session{network: s.network, phrase: phrase, keys: keys, utxos: EmptyUTXOSet()}, nil
}

// Purged drops the key and the UTXO set together.
func (s Session) Purged() Session {
	return NewSession(s.network)
}

// WithNetwork switches network. The key is re-derived for the new network
// and the UTXO set is cleared, since outputs belong to the old address.
func (s Session) WithNetwork(network chain.Network) (Session, error) {
	next := NewSession(network)
	if s.phrase == "" {
		return next, nil
	}
	keys, err := NewKeyPair(s.phrase, network)
	if err != nil {
		return s, err
	}
	next.phrase = s.phrase
	next.keys = keys
	return next, nil
}

// WithUTXOs returns a session holding utxos.
func (s Session) WithUTXOs(utxos *UTXOSet) Session {
	if utxos == nil {
		utxos = EmptyUTXOSet()
	}
	s.utxos = utxos
	return s
}

// Network returns the active network.
func (s Session) Network() chain.Network {
	return s.network
}

// HasPhrase reports whether a key is loaded.
func (s Session) HasPhrase() bool {
	return s.keys != nil
}

// Address returns the wallet address, or ErrPhraseNotSet.
func (s Session) Address() (string, error) {
	if s.keys == nil {
		return "", ErrPhraseNotSet
	}
	return s.keys.Address(), nil
}

// UTXOs returns the held UTXO set.
func (s Session) UTXOs() *UTXOSet {
	return s.utxos
}

// Balance is the sum of the held UTXO set.
func (s Session) Balance() int64 {
	return s.utxos.Balance()
}

// signer returns the key as a Signer, or nil when no phrase is set.
func (s Session) signer() Signer {
	if s.keys == nil {
		return nil
	}
	return s.keys
}
