package wallet

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txsizes"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
)

// DustThreshold is the largest change, in satoshis, that is folded into the
// fee instead of getting its own output.
const DustThreshold int64 = 1000

// DefaultNextBlockFeeRate (sat/byte) is used when the provider has no
// next-block estimate.
const DefaultNextBlockFeeRate = 20.0

// Size model, in bytes.
const (
	// version 4 + input count 1 + output count 1 + locktime 4
	txOverheadSize = 10

	// outpoint 36 + script length 1 + sequence 4
	inputBaseSize = txsizes.RedeemP2WPKHInputSize

	// charged instead of the locking script length when it is unknown
	missingScriptSize = txsizes.RedeemP2PKHSigScriptSize

	// one extra byte per input for the signature
	inputSignatureAllowance = 1

	// value 8 + script length 1 + 25 byte script
	regularOutputSize = txsizes.P2PKHOutputSize

	// value 8 + script length 1
	outputBaseSize = 8 + 1
)

func inputSize(u UnspentOutput) int {
	script := len(u.LockingScript)
	if script == 0 {
		script = missingScriptSize
	}
	return inputBaseSize + script + inputSignatureAllowance
}

// NormalSize returns the modelled size of a transaction spending inputs
// into a destination and a change output.
func NormalSize(inputs []UnspentOutput) int {
	size := txOverheadSize + 2*regularOutputSize
	for _, u := range inputs {
		size += inputSize(u)
	}
	return size
}

// VaultSize is NormalSize plus a memo output carrying payload.
func VaultSize(inputs []UnspentOutput, payload MemoPayload) (int, error) {
	script, err := NullDataScript(payload)
	if err != nil {
		return 0, err
	}
	return NormalSize(inputs) + outputBaseSize + len(script), nil
}

// feeForSize prices size bytes at rate. A fee that is not below the total
// coin supply is rejected before it reaches int64.
func feeForSize(size int, rate float64) (int64, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFeeRate, rate)
	}
	fee := math.Ceil(rate * float64(size))
	if fee >= btcutil.MaxSatoshi {
		return 0, fmt.Errorf("%w: %v sat/byte exceeds the coin supply for %d bytes", ErrInvalidFeeRate, rate, size)
	}
	return int64(fee), nil
}

// NormalFee returns the fee for spending inputs into two outputs at rate
// sat/byte. Fractional rates are accepted.
func NormalFee(inputs []UnspentOutput, rate float64) (int64, error) {
	return feeForSize(NormalSize(inputs), rate)
}

// VaultFee returns the fee for spending inputs into two outputs plus a memo
// output carrying payload.
func VaultFee(inputs []UnspentOutput, payload MemoPayload, rate float64) (int64, error) {
	size, err := VaultSize(inputs, payload)
	if err != nil {
		return 0, err
	}
	return feeForSize(size, rate)
}

// FeeTier names a confirmation speed.
type FeeTier string

const (
	FeeFast    FeeTier = "fast"
	FeeRegular FeeTier = "regular"
	FeeSlow    FeeTier = "slow"
)

// FeeTiers lists the tiers in display order.
var FeeTiers = []FeeTier{FeeFast, FeeRegular, FeeSlow}

var feeTierMultipliers = map[FeeTier]float64{
	FeeFast:    5,
	FeeRegular: 1,
	FeeSlow:    0.5,
}

// ParseFeeTier converts a tier name into a FeeTier.
func ParseFeeTier(s string) (FeeTier, error) {
	tier := FeeTier(s)
	if _, ok := feeTierMultipliers[tier]; !ok {
		return "", fmt.Errorf("unknown fee tier: %q", s)
	}
	return tier, nil
}

// FeeQuote is the rate and resulting fee for one tier.
type FeeQuote struct {
	FeeRate  float64 `json:"fee_rate" yaml:"fee_rate"`
	TotalFee int64   `json:"total_fee" yaml:"total_fee"`
}

// FeeSchedule maps each tier to its quote.
type FeeSchedule map[FeeTier]FeeQuote

// NextBlockRate returns the next-block ("1") rate from estimates, or
// DefaultNextBlockFeeRate when it is missing or not positive.
func NextBlockRate(estimates backend.FeeEstimates) float64 {
	rate, ok := estimates.Target(1)
	if !ok || !(rate > 0) || math.IsInf(rate, 0) {
		return DefaultNextBlockFeeRate
	}
	return rate
}

// Quote prices a transaction spending utxos for each tier. A non-empty memo
// selects the vault size model.
//
// Quoted rates are not rounded. Builders round the rate they are given, so
// the fee actually paid can differ slightly from the quoted one.
func Quote(utxos *UTXOSet, memo string, estimates backend.FeeEstimates) (FeeSchedule, error) {
	if utxos.IsEmpty() {
		return nil, ErrNoUTXOs
	}

	inputs := utxos.Outputs()
	payload := CompileMemo(memo)

	next := NextBlockRate(estimates)
	schedule := make(FeeSchedule, len(feeTierMultipliers))
	for tier, mult := range feeTierMultipliers {
		rate := next * mult

		var fee int64
		var err error
		if memo != "" {
			fee, err = VaultFee(inputs, payload, rate)
		} else {
			fee, err = NormalFee(inputs, rate)
		}
		if err != nil {
			return nil, err
		}

		schedule[tier] = FeeQuote{FeeRate: rate, TotalFee: fee}
	}
	return schedule, nil
}
