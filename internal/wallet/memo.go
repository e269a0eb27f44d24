package wallet

import (
	"github.com/btcsuite/btcd/txscript"
)

// MemoPayload is the byte payload carried by a null-data output.
type MemoPayload []byte

// CompileMemo encodes text as UTF-8. No length limit applies here; a memo
// too large for the network's relay policy fails at broadcast.
func CompileMemo(text string) MemoPayload {
	return MemoPayload(text)
}

// NullDataScript returns OP_RETURN followed by a single push of payload.
func NullDataScript(payload MemoPayload) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddFullData(payload).
		Script()
}

// ExtractMemo returns the payload of a null-data script built by
// NullDataScript. The second value is false for any other script.
func ExtractMemo(pkScript []byte) (MemoPayload, bool) {
	if len(pkScript) == 0 || pkScript[0] != txscript.OP_RETURN {
		return nil, false
	}

	var payload MemoPayload
	tokenizer := txscript.MakeScriptTokenizer(0, pkScript[1:])
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		case op == txscript.OP_0:
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			// minimal push of a single byte 1..16
			payload = append(payload, op-txscript.OP_1+1)
		case op == txscript.OP_1NEGATE:
			payload = append(payload, 0x81)
		case op <= txscript.OP_PUSHDATA4:
			payload = append(payload, tokenizer.Data()...)
		default:
			return nil, false
		}
	}
	if tokenizer.Err() != nil {
		return nil, false
	}
	return payload, true
}
