package phasetwo

import (
	"bytes"
	"encoding/binary"
	"fmt"

	apolloCbor "github.com/Salvionied/cbor/v2"
	"github.com/pkg/errors"
)

const (
	statusOK      byte = 0
	statusFailure byte = 1
)

// Trace tags used by the engine's result encoding.
const (
	traceTagLog   uint8 = 0
	traceTagLabel uint8 = 1
)

type wireTrace struct {
	_    struct{} `cbor:",toarray"`
	Tag  uint8
	Text string
}

type wireResult struct {
	_         struct{} `cbor:",toarray"`
	Remaining EngineBudget
	Initial   EngineBudget
	Traces    []wireTrace
}

type wireRedeemerResult struct {
	_        struct{} `cbor:",toarray"`
	Redeemer []byte
	Result   wireResult
}

// serializeUTxOs frames UTxO pairs for the engine: a little-endian u64 count,
// then for each pair the length-prefixed reference and output.
func serializeUTxOs(pairs []UTxOPair) []byte {
	var buf bytes.Buffer

	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(pairs)))

	for _, pair := range pairs {
		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(pair.Ref)))
		buf.Write(pair.Ref)

		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(pair.Output)))
		buf.Write(pair.Output)
	}

	return buf.Bytes()
}

// unpackPointer splits a packed guest return value into pointer and length.
func unpackPointer(packed uint64) (uint32, uint32) {
	return uint32(packed >> 32), uint32(packed)
}

// splitStatus checks the status byte of a result buffer. On failure it decodes
// the engine's EvalError into an *Error for op.
func splitStatus(op string, result []byte) ([]byte, error) {
	if len(result) == 0 {
		return nil, newError(op, KindEngine, "empty result from WASM evaluation")
	}

	switch result[0] {
	case statusOK:
		return result[1:], nil
	case statusFailure:
		var evalError EvalError
		if err := apolloCbor.Unmarshal(result[1:], &evalError); err != nil {
			return nil, wrapError(op, KindEngine, errors.Wrap(err, "decode engine failure"))
		}
		return nil, evalError.toError(op)
	default:
		return nil, newError(op, KindEngine, fmt.Sprintf("unknown result status %d", result[0]))
	}
}

func decodeEvalResult(result []byte) ([]RedeemerResult, error) {
	payload, err := splitStatus(OpEvalPhaseTwo, result)
	if err != nil {
		return nil, err
	}

	var wire []wireRedeemerResult
	if err := apolloCbor.Unmarshal(payload, &wire); err != nil {
		return nil, wrapError(OpEvalPhaseTwo, KindEngine, errors.Wrap(err, "decode engine results"))
	}

	results := make([]RedeemerResult, 0, len(wire))
	for i, w := range wire {
		traces := make([]EngineTrace, 0, len(w.Result.Traces))
		for _, t := range w.Result.Traces {
			switch t.Tag {
			case traceTagLog:
				traces = append(traces, LogTrace(t.Text))
			case traceTagLabel:
				traces = append(traces, LabelTrace(t.Text))
			default:
				be := newError(OpEvalPhaseTwo, KindEngine, fmt.Sprintf("unknown trace tag %d", t.Tag))
				be.ScriptIndex = i
				return nil, be
			}
		}
		results = append(results, RedeemerResult{
			Redeemer: w.Redeemer,
			Result: EngineResult{
				RemainingBudget: w.Result.Remaining,
				InitialBudget:   w.Result.Initial,
				Traces:          traces,
			},
		})
	}

	return results, nil
}

func decodeApplyResult(result []byte) ([]byte, error) {
	payload, err := splitStatus(OpApplyParams, result)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, newError(OpApplyParams, KindEngine, "engine returned an empty script")
	}
	script := make([]byte, len(payload))
	copy(script, payload)
	return script, nil
}
