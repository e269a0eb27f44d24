package wallet

import "errors"

var (
	// ErrInvalidPhrase indicates the seed phrase fails BIP39 validation.
	ErrInvalidPhrase = errors.New("invalid phrase")

	// ErrPhraseNotSet indicates an operation needs a key but the session has none.
	ErrPhraseNotSet = errors.New("phrase not set")

	// ErrInvalidAddress indicates the address does not decode to a locking
	// script on the active network.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNoUTXOs indicates the UTXO set is empty.
	ErrNoUTXOs = errors.New("no utxos to send")

	// ErrInsufficientBalance indicates value plus fee exceeds the spendable balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidAmount indicates a negative output value.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidFeeRate indicates a negative or non-finite fee rate.
	ErrInvalidFeeRate = errors.New("invalid fee rate")

	// ErrScanFailed wraps the first provider error hit during a UTXO scan.
	ErrScanFailed = errors.New("utxo scan failed")

	// ErrSigningFailed indicates an input could not be signed, finalized or verified.
	ErrSigningFailed = errors.New("signing failed")

	// ErrProvider wraps failures from the chain data provider.
	ErrProvider = errors.New("chain data provider error")

	// ErrInvalidState indicates a draft step was called out of order.
	ErrInvalidState = errors.New("invalid draft state")
)
