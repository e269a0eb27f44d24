package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

func TestNewSession(t *testing.T) {
	sess := NewSession(chain.Testnet)

	assert.Equal(t, chain.Testnet, sess.Network())
	assert.False(t, sess.HasPhrase())
	assert.True(t, sess.UTXOs().IsEmpty())
	assert.Equal(t, int64(0), sess.Balance())

	_, err := sess.Address()
	assert.ErrorIs(t, err, ErrPhraseNotSet)
}

func TestSessionWithPhrase(t *testing.T) {
	base := NewSession(chain.Mainnet)

	sess, err := base.WithPhrase(testMnemonic)
	require.NoError(t, err)
	assert.True(t, sess.HasPhrase())
	assert.False(t, base.HasPhrase())

	address, err := sess.Address()
	require.NoError(t, err)
	assert.Equal(t, testKeys(t, chain.Mainnet).Address(), address)
}

func TestSessionWithInvalidPhrase(t *testing.T) {
	sess := fundedSession(t, 5000)

	same, err := sess.WithPhrase("definitely not a phrase")
	assert.ErrorIs(t, err, ErrInvalidPhrase)
	assert.True(t, same.HasPhrase())
	assert.Equal(t, int64(5000), same.Balance())
}

func TestSessionPurge(t *testing.T) {
	sess := fundedSession(t, 5000)

	for _, purged := range []Session{sess.Purged(), mustWithPhrase(t, sess, "")} {
		assert.False(t, purged.HasPhrase())
		assert.True(t, purged.UTXOs().IsEmpty())
		assert.Equal(t, chain.Mainnet, purged.Network())
	}

	assert.True(t, sess.HasPhrase())
	assert.Equal(t, int64(5000), sess.Balance())
}

func mustWithPhrase(t *testing.T, sess Session, phrase string) Session {
	t.Helper()
	next, err := sess.WithPhrase(phrase)
	require.NoError(t, err)
	return next
}

func TestSessionWithPhraseClearsUTXOs(t *testing.T) {
	sess := fundedSession(t, 5000)

	reloaded := mustWithPhrase(t, sess, testMnemonic)
	assert.True(t, reloaded.UTXOs().IsEmpty())
}

func TestSessionWithNetwork(t *testing.T) {
	sess := fundedSession(t, 5000)

	testnet, err := sess.WithNetwork(chain.Testnet)
	require.NoError(t, err)
	assert.Equal(t, chain.Testnet, testnet.Network())
	assert.True(t, testnet.HasPhrase())
	assert.True(t, testnet.UTXOs().IsEmpty())

	address, err := testnet.Address()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(address, "tb1q"), address)

	empty, err := NewSession(chain.Mainnet).WithNetwork(chain.Testnet)
	require.NoError(t, err)
	assert.False(t, empty.HasPhrase())
}

func TestSessionWithUTXOs(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	base := NewSession(chain.Mainnet)

	sess := base.WithUTXOs(NewUTXOSet([]UnspentOutput{fundedOutput(kp, 1, 1200)}))
	assert.Equal(t, int64(1200), sess.Balance())
	assert.Equal(t, int64(0), base.Balance())

	assert.True(t, sess.WithUTXOs(nil).UTXOs().IsEmpty())
}
