package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"

	"github.com/klingon-exchange/vaultwallet/internal/backend"
	"github.com/klingon-exchange/vaultwallet/internal/chain"
	"github.com/klingon-exchange/vaultwallet/pkg/logging"
)

// OutputSpec is one output of a draft: a RegularOutput or a MemoOutput.
type OutputSpec interface {
	txOut(network chain.Network) (*wire.TxOut, error)
	isOutputSpec()
}

// RegularOutput pays Amount satoshis to Address.
type RegularOutput struct {
	Address string
	Amount  int64
}

func (o RegularOutput) txOut(network chain.Network) (*wire.TxOut, error) {
	script, err := AddressToScript(o.Address, network)
	if err != nil {
		return nil, err
	}
	return wire.NewTxOut(o.Amount, script), nil
}

func (RegularOutput) isOutputSpec() {}

// MemoOutput is a zero-value null-data output carrying Payload.
type MemoOutput struct {
	Payload MemoPayload
}

func (o MemoOutput) txOut(chain.Network) (*wire.TxOut, error) {
	script, err := NullDataScript(o.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build memo script: %w", err)
	}
	return wire.NewTxOut(0, script), nil
}

func (MemoOutput) isOutputSpec() {}

// draftState tracks how far a draft has progressed. States only move forward.
type draftState int

const (
	stateDraft draftState = iota
	stateInputsBound
	stateOutputsBound
	stateSigned
	stateFinalized
	stateSerialized
	stateBroadcast
)

func (s draftState) String() string {
	switch s {
	case stateDraft:
		return "draft"
	case stateInputsBound:
		return "inputs-bound"
	case stateOutputsBound:
		return "outputs-bound"
	case stateSigned:
		return "signed"
	case stateFinalized:
		return "finalized"
	case stateSerialized:
		return "serialized"
	case stateBroadcast:
		return "broadcast"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// draft is a transaction under construction. It is discarded once the
// pipeline finishes or fails.
type draft struct {
	id      string
	state   draftState
	network chain.Network

	inputs []UnspentOutput

	tx     *wire.MsgTx
	packet *psbt.Packet
	final  *wire.MsgTx
	raw    string
}

func newDraft(network chain.Network) *draft {
	return &draft{
		id:      uuid.New().String(),
		state:   stateDraft,
		network: network,
	}
}

func (d *draft) advance(from, to draftState) error {
	if d.state != from {
		return fmt.Errorf("%w: %s expected, draft is %s", ErrInvalidState, from, d.state)
	}
	d.state = to
	return nil
}

// bindInputs adds inputs in the given order.
func (d *draft) bindInputs(inputs []UnspentOutput) error {
	if d.state != stateDraft {
		return fmt.Errorf("%w: cannot bind inputs in %s", ErrInvalidState, d.state)
	}
	if len(inputs) == 0 {
		return ErrNoUTXOs
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, u := range inputs {
		outPoint, err := u.OutPoint()
		if err != nil {
			return err
		}
		tx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
	}

	d.tx = tx
	d.inputs = append([]UnspentOutput(nil), inputs...)
	return d.advance(stateDraft, stateInputsBound)
}

// bindOutputs adds outputs in the given order and wraps the unsigned
// transaction in a PSBT carrying each input's previous output.
func (d *draft) bindOutputs(outputs []OutputSpec) error {
	if d.state != stateInputsBound {
		return fmt.Errorf("%w: cannot bind outputs in %s", ErrInvalidState, d.state)
	}

	for _, o := range outputs {
		txOut, err := o.txOut(d.network)
		if err != nil {
			return err
		}
		d.tx.AddTxOut(txOut)
	}

	packet, err := psbt.NewFromUnsignedTx(d.tx)
	if err != nil {
		return fmt.Errorf("failed to create psbt: %w", err)
	}
	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return fmt.Errorf("failed to create psbt updater: %w", err)
	}
	for i, u := range d.inputs {
		if err := updater.AddInWitnessUtxo(u.TxOut(), i); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}

	d.packet = packet
	return d.advance(stateInputsBound, stateOutputsBound)
}

func (d *draft) prevOutFetcher() *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range d.tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, d.inputs[i].TxOut())
	}
	return fetcher
}

// sign adds one partial signature per input from signer.
func (d *draft) sign(signer Signer) error {
	if d.state != stateOutputsBound {
		return fmt.Errorf("%w: cannot sign in %s", ErrInvalidState, d.state)
	}

	sigHashes := txscript.NewTxSigHashes(d.tx, d.prevOutFetcher())
	updater, err := psbt.NewUpdater(d.packet)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	pubKey := signer.PubKey()
	for i, u := range d.inputs {
		sig, err := signer.Sign(d.tx, sigHashes, i, u.TxOut())
		if err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrSigningFailed, i, err)
		}
		if _, err := updater.Sign(i, sig, pubKey, nil, nil); err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrSigningFailed, i, err)
		}
	}

	return d.advance(stateOutputsBound, stateSigned)
}

// finalize builds the witnesses, extracts the network transaction and runs
// every input script against its previous output.
func (d *draft) finalize() error {
	if d.state != stateSigned {
		return fmt.Errorf("%w: cannot finalize in %s", ErrInvalidState, d.state)
	}

	if err := psbt.MaybeFinalizeAll(d.packet); err != nil {
		return fmt.Errorf("%w: finalize: %v", ErrSigningFailed, err)
	}
	final, err := psbt.Extract(d.packet)
	if err != nil {
		return fmt.Errorf("%w: extract: %v", ErrSigningFailed, err)
	}

	fetcher := d.prevOutFetcher()
	sigHashes := txscript.NewTxSigHashes(final, fetcher)
	for i, u := range d.inputs {
		vm, err := txscript.NewEngine(u.LockingScript, final, i,
			txscript.StandardVerifyFlags, nil, sigHashes, u.Value, fetcher)
		if err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrSigningFailed, i, err)
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrSigningFailed, i, err)
		}
	}

	d.final = final
	return d.advance(stateSigned, stateFinalized)
}

// serialize returns the hex wire encoding of the finalized transaction.
func (d *draft) serialize() (string, error) {
	if d.state != stateFinalized {
		return "", fmt.Errorf("%w: cannot serialize in %s", ErrInvalidState, d.state)
	}

	var buf bytes.Buffer
	if err := d.final.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	d.raw = hex.EncodeToString(buf.Bytes())

	if err := d.advance(stateFinalized, stateSerialized); err != nil {
		return "", err
	}
	return d.raw, nil
}

// broadcast submits the serialized transaction once. The draft is spent
// whether or not the provider accepts it.
func (d *draft) broadcast(ctx context.Context, b backend.Backend) (string, error) {
	if err := d.advance(stateSerialized, stateBroadcast); err != nil {
		return "", err
	}

	txid, err := b.BroadcastTransaction(ctx, d.raw)
	if err != nil {
		return "", fmt.Errorf("%w: broadcast: %w", ErrProvider, err)
	}
	if txid == "" {
		txid = d.final.TxHash().String()
	}
	return txid, nil
}

// witnessScaleFactor is the weight of a non-witness byte.
const witnessScaleFactor = 4

// vsize returns the virtual size of the finalized transaction: weight
// (stripped size times three plus full size) divided by four, rounded up.
func (d *draft) vsize() int64 {
	if d.final == nil {
		return 0
	}
	weight := int64(d.final.SerializeSizeStripped()*(witnessScaleFactor-1) + d.final.SerializeSize())
	return (weight + witnessScaleFactor - 1) / witnessScaleFactor
}

// BuildResult describes a built (and possibly broadcast) transaction.
type BuildResult struct {
	DraftID string
	TxID    string
	RawTx   string
	Fee     int64
	Change  int64
	VSize   int64
	Inputs  int
	Outputs int
}

// buildRequest parameterizes the single build pipeline shared by the normal
// and vault paths. A nil memo selects the normal path.
type buildRequest struct {
	network chain.Network
	utxos   *UTXOSet
	signer  Signer
	to      string
	value   int64
	rate    float64
	memo    *MemoPayload
}

func (r *buildRequest) fee(inputs []UnspentOutput, rate float64) (int64, error) {
	if r.memo != nil {
		return VaultFee(inputs, *r.memo, rate)
	}
	return NormalFee(inputs, rate)
}

// checkPreconditions rejects a request before any draft exists.
func (r *buildRequest) checkPreconditions() error {
	if r.utxos.IsEmpty() {
		return ErrNoUTXOs
	}
	if !ValidateAddress(r.to, r.network) {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, r.to)
	}
	if r.value < 0 || r.value > btcutil.MaxSatoshi {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, r.value)
	}
	if math.IsNaN(r.rate) || math.IsInf(r.rate, 0) || r.rate < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFeeRate, r.rate)
	}
	if r.signer == nil {
		return ErrPhraseNotSet
	}
	return nil
}

// builder runs build requests through a draft.
type builder struct {
	backend  backend.Backend
	selector InputSelector
	logger   *logging.Logger
}

// build plans, signs and serializes a transaction. When broadcast is set the
// result is also submitted to the backend.
func (b *builder) build(ctx context.Context, req *buildRequest, broadcast bool) (*BuildResult, error) {
	if err := req.checkPreconditions(); err != nil {
		return nil, err
	}

	rate := math.Round(req.rate)

	inputs, err := b.selector.Select(req.utxos, req.value)
	if err != nil {
		return nil, err
	}
	selected := sumValues(inputs)

	fee, err := req.fee(inputs, rate)
	if err != nil {
		return nil, err
	}
	if fee > selected || req.value > selected-fee {
		return nil, fmt.Errorf("%w: value %d + fee %d, have %d",
			ErrInsufficientBalance, req.value, fee, selected)
	}

	change := selected - req.value - fee
	outputs := []OutputSpec{RegularOutput{Address: req.to, Amount: req.value}}
	if change > DustThreshold {
		outputs = append(outputs, RegularOutput{Address: req.signer.Address(), Amount: change})
	} else {
		fee += change
		change = 0
	}
	if req.memo != nil {
		outputs = append(outputs, MemoOutput{Payload: *req.memo})
	}

	d := newDraft(req.network)
	log := b.logger.With("draft", d.id)
	log.Debug("building transaction",
		"to", req.to, "value", req.value, "rate", rate, "inputs", len(inputs), "memo", req.memo != nil)

	if err := d.bindInputs(inputs); err != nil {
		return nil, err
	}
	if err := d.bindOutputs(outputs); err != nil {
		return nil, err
	}
	if err := d.sign(req.signer); err != nil {
		log.Warn("signing failed", "error", err)
		return nil, err
	}
	if err := d.finalize(); err != nil {
		log.Warn("finalize failed", "error", err)
		return nil, err
	}
	raw, err := d.serialize()
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		DraftID: d.id,
		TxID:    d.final.TxHash().String(),
		RawTx:   raw,
		Fee:     fee,
		Change:  change,
		VSize:   d.vsize(),
		Inputs:  len(d.final.TxIn),
		Outputs: len(d.final.TxOut),
	}

	if broadcast {
		txid, err := d.broadcast(ctx, b.backend)
		if err != nil {
			log.Error("broadcast failed", "error", err)
			return nil, err
		}
		if txid != result.TxID {
			log.Warn("provider returned a different txid", "local", result.TxID, "provider", txid)
		}
		result.TxID = txid
	}

	log.Info("transaction built",
		"txid", result.TxID, "fee", result.Fee, "change", result.Change,
		"inputs", result.Inputs, "outputs", result.Outputs, "vsize", result.VSize,
		"broadcast", broadcast)
	return result, nil
}

// isPreconditionError reports whether err was raised before any draft existed.
func isPreconditionError(err error) bool {
	for _, target := range []error{
		ErrNoUTXOs, ErrInvalidAddress, ErrInvalidAmount,
		ErrInvalidFeeRate, ErrPhraseNotSet, ErrInsufficientBalance,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
