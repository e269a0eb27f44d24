package wallet

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	// BIP173 P2WPKH vectors.
	testDestMainnet = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	testDestTestnet = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
)

func testKeys(t *testing.T, network chain.Network) *KeyPair {
	t.Helper()
	kp, err := NewKeyPair(testMnemonic, network)
	require.NoError(t, err)
	return kp
}

func testTxID(n int) string {
	return fmt.Sprintf("%064x", n)
}

// fundedOutput is an output paying value to kp, numbered n.
func fundedOutput(kp *KeyPair, n int, value int64) UnspentOutput {
	return UnspentOutput{
		TxID:          testTxID(n),
		Vout:          uint32(n % 3),
		Value:         value,
		LockingScript: kp.PkScript(),
	}
}

func TestGenerateMnemonic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	require.NoError(t, err)

	assert.Len(t, strings.Fields(mnemonic), 12)
	assert.True(t, ValidateMnemonic(mnemonic))
}

func TestValidateMnemonic(t *testing.T) {
	assert.True(t, ValidateMnemonic(testMnemonic))
	assert.False(t, ValidateMnemonic(""))
	assert.False(t, ValidateMnemonic("invalid words"))
	assert.False(t, ValidateMnemonic(strings.Replace(testMnemonic, "about", "abandon", 1)))
}

func TestNewKeyPairUsesSeedPrefix(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)

	seed := bip39.NewSeed(testMnemonic, "")
	_, want := btcec.PrivKeyFromBytes(seed[:32])

	assert.Equal(t, want.SerializeCompressed(), kp.PubKey())
	assert.Len(t, kp.PubKey(), 33)
	assert.Equal(t, chain.Mainnet, kp.Network())
}

func TestNewKeyPairInvalidPhrase(t *testing.T) {
	for _, phrase := range []string{"", "not a phrase", "abandon abandon abandon"} {
		_, err := NewKeyPair(phrase, chain.Mainnet)
		assert.ErrorIs(t, err, ErrInvalidPhrase, "phrase %q", phrase)
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	main1, err := DeriveAddress(testMnemonic, chain.Mainnet)
	require.NoError(t, err)
	main2, err := DeriveAddress(testMnemonic, chain.Mainnet)
	require.NoError(t, err)
	test, err := DeriveAddress(testMnemonic, chain.Testnet)
	require.NoError(t, err)

	assert.Equal(t, main1, main2)
	assert.True(t, strings.HasPrefix(main1, "bc1q"), main1)
	assert.True(t, strings.HasPrefix(test, "tb1q"), test)
	assert.NotEqual(t, main1, test)

	assert.True(t, ValidateAddress(main1, chain.Mainnet))
	assert.True(t, ValidateAddress(test, chain.Testnet))
	assert.False(t, ValidateAddress(main1, chain.Testnet))
}

func TestKeyPairPkScript(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)

	script := kp.PkScript()
	require.Len(t, script, 22)
	assert.Equal(t, byte(0x00), script[0])
	assert.Equal(t, byte(0x14), script[1])

	fromAddr, err := AddressToScript(kp.Address(), chain.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, fromAddr, script)

	// callers get a copy
	script[0] = 0xff
	assert.Equal(t, byte(0x00), kp.PkScript()[0])
}

func TestKeyPairSignRequiresPrevOut(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	_, err := kp.Sign(nil, nil, 0, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidPhrase))
}
