// Package wallet implements a single-address P2WPKH wallet engine: key and
// address handling, UTXO tracking, fee estimation, memo compilation and the
// build, sign, finalize, serialize and broadcast pipeline.
package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

// MnemonicEntropyBits gives 12-word phrases.
const MnemonicEntropyBits = 128

// GenerateMnemonic generates a new 12-word BIP39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid.
func ValidateMnemonic(mnemonic string) bool {
	return mnemonic != "" && bip39.IsMnemonicValid(mnemonic)
}

// Signer produces signatures for the wallet's inputs.
type Signer interface {
	// PubKey returns the compressed public key.
	PubKey() []byte

	// Address is where change is paid.
	Address() string

	// Sign returns a DER signature with the sighash byte appended for input
	// idx of tx spending prevOut.
	Sign(tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, idx int, prevOut *wire.TxOut) ([]byte, error)
}

// KeyPair is the wallet's single key and its P2WPKH address on one network.
type KeyPair struct {
	privKey  *btcec.PrivateKey
	pubKey   *btcec.PublicKey
	network  chain.Network
	address  *btcutil.AddressWitnessPubKeyHash
	pkScript []byte
}

// NewKeyPair derives the wallet key from a BIP39 phrase.
//
// There is no HD hierarchy: the private key is the first 32 bytes of the
// BIP39 seed (empty passphrase), so one phrase always maps to one address
// per network.
func NewKeyPair(mnemonic string, network chain.Network) (*KeyPair, error) {
	if mnemonic == "" {
		return nil, ErrInvalidPhrase
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhrase, err)
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(seed[:btcec.PrivKeyBytesLen])

	addr, err := p2wpkhAddress(pubKey, network)
	if err != nil {
		return nil, err
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to build locking script: %w", err)
	}

	return &KeyPair{
		privKey:  privKey,
		pubKey:   pubKey,
		network:  network,
		address:  addr,
		pkScript: pkScript,
	}, nil
}

// DeriveAddress returns the P2WPKH address for a phrase on a network.
func DeriveAddress(mnemonic string, network chain.Network) (string, error) {
	kp, err := NewKeyPair(mnemonic, network)
	if err != nil {
		return "", err
	}
	return kp.Address(), nil
}

// Network returns the network the address was encoded for.
func (k *KeyPair) Network() chain.Network {
	return k.network
}

// Address returns the bech32 P2WPKH address.
func (k *KeyPair) Address() string {
	return k.address.EncodeAddress()
}

// PkScript returns the locking script paying to this key.
func (k *KeyPair) PkScript() []byte {
	return append([]byte(nil), k.pkScript...)
}

// PubKey returns the compressed public key.
func (k *KeyPair) PubKey() []byte {
	return k.pubKey.SerializeCompressed()
}

// Sign signs a segwit v0 input with SIGHASH_ALL.
func (k *KeyPair) Sign(tx *wire.MsgTx, sigHashes *txscript.TxSigHashes, idx int, prevOut *wire.TxOut) ([]byte, error) {
	if prevOut == nil {
		return nil, fmt.Errorf("previous output for input %d not found", idx)
	}
	return txscript.RawTxInWitnessSignature(
		tx,
		sigHashes,
		idx,
		prevOut.Value,
		prevOut.PkScript,
		txscript.SigHashAll,
		k.privKey,
	)
}

var _ Signer = (*KeyPair)(nil)
