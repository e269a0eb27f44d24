package wallet

import (
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/internal/chain"
)

func TestNormalSize(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)

	one := []UnspentOutput{fundedOutput(kp, 1, 100000)}
	two := append(one, fundedOutput(kp, 2, 100000))

	// 10 + (41 + 22 + 1) + 2*34
	assert.Equal(t, 142, NormalSize(one))
	assert.Equal(t, 206, NormalSize(two))
	assert.Equal(t, 78, NormalSize(nil))
}

func TestNormalSizeMissingScript(t *testing.T) {
	inputs := []UnspentOutput{{TxID: testTxID(1), Value: 1000}}

	// 10 + (41 + 108 + 1) + 2*34
	assert.Equal(t, 228, NormalSize(inputs))
}

func TestVaultSize(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	inputs := []UnspentOutput{fundedOutput(kp, 1, 100000)}

	tests := []struct {
		name    string
		payload MemoPayload
		want    int
	}{
		// script: OP_RETURN OP_0
		{"empty", nil, 142 + 9 + 2},
		// script: OP_RETURN <5> hello
		{"short", CompileMemo("hello"), 142 + 9 + 7},
		// script: OP_RETURN OP_PUSHDATA1 <80> ...
		{"pushdata1", make(MemoPayload, 80), 142 + 9 + 83},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, err := VaultSize(inputs, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, size)
		})
	}
}

func TestNormalFee(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	inputs := []UnspentOutput{fundedOutput(kp, 1, 100000)}

	tests := []struct {
		rate float64
		want int64
	}{
		{0, 0},
		{1, 142},
		{0.5, 71},
		{1.5, 213},
		{2.01, 286}, // ceil(285.42)
		{20, 2840},
	}

	for _, tt := range tests {
		fee, err := NormalFee(inputs, tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, fee, "rate %v", tt.rate)
	}
}

func TestVaultFee(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	inputs := []UnspentOutput{fundedOutput(kp, 1, 100000)}

	fee, err := VaultFee(inputs, CompileMemo("hello"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(158), fee)

	normal, err := NormalFee(inputs, 1)
	require.NoError(t, err)
	assert.Greater(t, fee, normal)
}

func TestFeeRejectsInvalidRate(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	inputs := []UnspentOutput{fundedOutput(kp, 1, 100000)}

	for _, rate := range []float64{-1, -0.001, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := NormalFee(inputs, rate)
		assert.ErrorIs(t, err, ErrInvalidFeeRate, "rate %v", rate)

		_, err = VaultFee(inputs, nil, rate)
		assert.ErrorIs(t, err, ErrInvalidFeeRate, "rate %v", rate)
	}
}

func TestFeeRejectsRatesBeyondCoinSupply(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	inputs := []UnspentOutput{fundedOutput(kp, 1, 100000)}

	for _, rate := range []float64{1e17, math.MaxFloat64, float64(btcutil.MaxSatoshi) / 142} {
		_, err := NormalFee(inputs, rate)
		assert.ErrorIs(t, err, ErrInvalidFeeRate, "rate %v", rate)

		_, err = VaultFee(inputs, CompileMemo("hello"), rate)
		assert.ErrorIs(t, err, ErrInvalidFeeRate, "rate %v", rate)
	}

	// just below the supply
	fee, err := NormalFee(inputs, float64(btcutil.MaxSatoshi-1000)/142)
	require.NoError(t, err)
	assert.Less(t, fee, int64(btcutil.MaxSatoshi))

	set := NewUTXOSet(inputs)
	_, err = Quote(set, "", backend.FeeEstimates{"1": 1e17})
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
}

func TestFeeProperties(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	payloads := []MemoPayload{nil, CompileMemo("hello"), CompileMemo("=:ETH.ETH:0x1234567890abcdef")}

	for _, rate := range []float64{0, 0.5, 1, 2.01, 13.7, 250} {
		var inputs []UnspentOutput
		prevNormal := int64(-1)
		prevVault := make([]int64, len(payloads))
		for i := range prevVault {
			prevVault[i] = -1
		}

		for n := 1; n <= 6; n++ {
			inputs = append(inputs, fundedOutput(kp, n, int64(n)*10000))

			normal, err := NormalFee(inputs, rate)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, normal, int64(0))
			assert.GreaterOrEqual(t, normal, prevNormal, "normal fee fell at rate %v with %d inputs", rate, n)
			prevNormal = normal

			for i, payload := range payloads {
				vault, err := VaultFee(inputs, payload, rate)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, vault, normal, "vault below normal at rate %v with %d inputs", rate, n)
				assert.GreaterOrEqual(t, vault, prevVault[i], "vault fee fell at rate %v with %d inputs", rate, n)
				prevVault[i] = vault
			}
		}
	}
}

func TestNextBlockRate(t *testing.T) {
	tests := []struct {
		name      string
		estimates backend.FeeEstimates
		want      float64
	}{
		{"present", backend.FeeEstimates{"1": 12.5, "3": 8}, 12.5},
		{"missing", backend.FeeEstimates{"3": 8}, DefaultNextBlockFeeRate},
		{"zero", backend.FeeEstimates{"1": 0}, DefaultNextBlockFeeRate},
		{"negative", backend.FeeEstimates{"1": -3}, DefaultNextBlockFeeRate},
		{"nil", nil, DefaultNextBlockFeeRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextBlockRate(tt.estimates))
		})
	}
}

func TestQuote(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	set := NewUTXOSet([]UnspentOutput{fundedOutput(kp, 1, 100000)})

	schedule, err := Quote(set, "", backend.FeeEstimates{"1": 10})
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	assert.Equal(t, FeeQuote{FeeRate: 50, TotalFee: 7100}, schedule[FeeFast])
	assert.Equal(t, FeeQuote{FeeRate: 10, TotalFee: 1420}, schedule[FeeRegular])
	assert.Equal(t, FeeQuote{FeeRate: 5, TotalFee: 710}, schedule[FeeSlow])
}

func TestQuoteWithMemo(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	set := NewUTXOSet([]UnspentOutput{fundedOutput(kp, 1, 100000)})

	schedule, err := Quote(set, "hello", backend.FeeEstimates{"1": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(158), schedule[FeeRegular].TotalFee)
	assert.Equal(t, int64(790), schedule[FeeFast].TotalFee)
	assert.Equal(t, int64(79), schedule[FeeSlow].TotalFee)
}

func TestQuoteDefaultsAndUnroundedRates(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	set := NewUTXOSet([]UnspentOutput{fundedOutput(kp, 1, 100000)})

	schedule, err := Quote(set, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, schedule[FeeRegular].FeeRate)
	assert.Equal(t, 100.0, schedule[FeeFast].FeeRate)

	schedule, err = Quote(set, "", backend.FeeEstimates{"1": 1.3})
	require.NoError(t, err)
	assert.InDelta(t, 0.65, schedule[FeeSlow].FeeRate, 1e-9)
	assert.Equal(t, int64(93), schedule[FeeSlow].TotalFee) // ceil(92.3)
}

func TestQuoteIsIdempotent(t *testing.T) {
	kp := testKeys(t, chain.Mainnet)
	set := NewUTXOSet([]UnspentOutput{
		fundedOutput(kp, 1, 100000),
		fundedOutput(kp, 2, 40000),
		fundedOutput(kp, 3, 2500),
	})

	for _, memo := range []string{"", "hello"} {
		for _, estimates := range []backend.FeeEstimates{nil, {"1": 1.3}, {"1": 42, "6": 9}} {
			first, err := Quote(set, memo, estimates)
			require.NoError(t, err)
			second, err := Quote(set, memo, estimates)
			require.NoError(t, err)
			assert.Equal(t, first, second, "memo %q estimates %v", memo, estimates)
		}
	}
	assert.Equal(t, int64(142500), set.Balance())
}

func TestQuoteNoUTXOs(t *testing.T) {
	_, err := Quote(EmptyUTXOSet(), "", backend.FeeEstimates{"1": 1})
	assert.ErrorIs(t, err, ErrNoUTXOs)
}

func TestParseFeeTier(t *testing.T) {
	for _, tier := range FeeTiers {
		got, err := ParseFeeTier(string(tier))
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}

	_, err := ParseFeeTier("instant")
	assert.Error(t, err)
}
