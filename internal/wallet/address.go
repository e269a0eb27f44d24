package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

// p2wpkhAddress derives a native SegWit address (bc1q... / tb1q...).
func p2wpkhAddress(pubKey *btcec.PublicKey, network chain.Network) (*btcutil.AddressWitnessPubKeyHash, error) {
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, network.ChainParams())
	if err != nil {
		return nil, fmt.Errorf("failed to create P2WPKH address: %w", err)
	}
	return addr, nil
}

// decodeAddress decodes an address and checks it belongs to network.
// Bare public keys are rejected; they decode but are not addresses.
func decodeAddress(address string, network chain.Network) (btcutil.Address, error) {
	if address == "" {
		return nil, ErrInvalidAddress
	}

	params := network.ChainParams()
	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if _, ok := decoded.(*btcutil.AddressPubKey); ok {
		return nil, fmt.Errorf("%w: public key is not an address", ErrInvalidAddress)
	}
	if !decoded.IsForNet(params) {
		return nil, fmt.Errorf("%w: not a %s address", ErrInvalidAddress, network)
	}
	return decoded, nil
}

// AddressToScript returns the locking script for an address on network.
func AddressToScript(address string, network chain.Network) ([]byte, error) {
	decoded, err := decodeAddress(address, network)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return script, nil
}

// ValidateAddress reports whether address decodes to a locking script on
// network. It never fails.
func ValidateAddress(address string, network chain.Network) bool {
	_, err := AddressToScript(address, network)
	return err == nil
}
