package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		network chain.Network
		want    bool
	}{
		{"mainnet p2wpkh", testDestMainnet, chain.Mainnet, true},
		{"testnet p2wpkh", testDestTestnet, chain.Testnet, true},
		{"mainnet p2pkh", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", chain.Mainnet, true},
		{"mainnet address on testnet", testDestMainnet, chain.Testnet, false},
		{"testnet address on mainnet", testDestTestnet, chain.Mainnet, false},
		{"empty", "", chain.Mainnet, false},
		{"garbage", "not-an-address", chain.Mainnet, false},
		{"bad checksum", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t5", chain.Mainnet, false},
		{"bare public key", "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", chain.Mainnet, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.address, tt.network))
		})
	}
}

func TestAddressToScript(t *testing.T) {
	script, err := AddressToScript(testDestMainnet, chain.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, "0014751e76e8199196d454941c45d1b3a323f1433bd6", hex.EncodeToString(script))

	_, err = AddressToScript(testDestMainnet, chain.Testnet)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = AddressToScript("", chain.Mainnet)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
