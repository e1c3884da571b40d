package phasetwo

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	results  []RedeemerResult
	err      error
	applied  []byte
	applyErr error

	evalCalls  int
	applyCalls int
	gotArgs    PhaseTwoArgs
	gotParams  []byte
	gotScript  []byte
	closed     bool
}

func (f *fakeEngine) EvalPhaseTwo(_ context.Context, args PhaseTwoArgs, sink Sink) ([]RedeemerResult, error) {
	f.evalCalls++
	f.gotArgs = args
	for i, r := range f.results {
		sink.Accept(DiagnosticEvent{Kind: DiagnosticRedeemer, ScriptIndex: i, Payload: r.Redeemer})
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeEngine) ApplyParams(_ context.Context, params, script []byte) ([]byte, error) {
	f.applyCalls++
	f.gotParams = params
	f.gotScript = script
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return f.applied, nil
}

func (f *fakeEngine) Close(context.Context) error {
	f.closed = true
	return nil
}

func newTestEvaluator(engine Engine) *Evaluator {
	return NewEvaluatorWithEngine(engine, DefaultConfig())
}

func TestEvalPhaseTwoRawZipsUTxOsByPosition(t *testing.T) {
	engine := &fakeEngine{}
	ev := newTestEvaluator(engine)

	refs := [][]byte{[]byte("r0"), []byte("r1")}
	outputs := [][]byte{[]byte("o0"), []byte("o1")}

	_, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), refs, outputs, nil, 100, 200, SlotConfigPreview)
	require.NoError(t, err)

	assert.Equal(t, []UTxOPair{
		{Ref: []byte("r0"), Output: []byte("o0")},
		{Ref: []byte("r1"), Output: []byte("o1")},
	}, engine.gotArgs.UTxOs)
	assert.Equal(t, []byte("tx"), engine.gotArgs.Tx)
	assert.Equal(t, ExBudgetCeiling{CPU: 100, Mem: 200}, engine.gotArgs.Budget)
	assert.Equal(t, SlotConfigPreview, engine.gotArgs.Slot)
}

func TestEvalPhaseTwoRawRejectsMismatchedUTxOs(t *testing.T) {
	engine := &fakeEngine{}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"),
		[][]byte{[]byte("r0"), []byte("r1")}, [][]byte{[]byte("o0")},
		nil, 1, 1, SlotConfigMainnet)

	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.Equal(t, KindInputMismatch, KindOf(err))
	assert.Zero(t, engine.evalCalls)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "utxos_outputs_bytes", be.Field)
	assert.Equal(t, -1, be.ScriptIndex)
}

func TestEvalPhaseTwoRawForwardsCostModels(t *testing.T) {
	engine := &fakeEngine{}
	ev := newTestEvaluator(engine)

	_, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)
	assert.NotNil(t, engine.gotArgs.CostModels)
	assert.Empty(t, engine.gotArgs.CostModels)

	_, err = ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, []byte{0xa0}, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa0}, engine.gotArgs.CostModels)
}

func TestEvalPhaseTwoRawSingleScriptWithinBudget(t *testing.T) {
	redeemer := []byte{0x84, 0x00, 0x00, 0x18, 0x2a, 0x82, 0x19, 0x03, 0xe8, 0x19, 0x27, 0x10}
	engine := &fakeEngine{results: []RedeemerResult{{
		Redeemer: redeemer,
		Result: EngineResult{
			RemainingBudget: EngineBudget{CPU: 9_000_000_000, Mem: 13_000_000},
			InitialBudget:   EngineBudget{CPU: 10_000_000_000, Mem: 14_000_000},
		},
	}}}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil,
		10_000_000_000, 14_000_000, SlotConfigMainnet)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	o := outcomes[0]
	assert.Equal(t, redeemer, o.Redeemer)
	assert.LessOrEqual(t, o.RemainingBudget.CPU, o.InitialBudget.CPU)
	assert.LessOrEqual(t, o.RemainingBudget.Mem, o.InitialBudget.Mem)
	assert.Empty(t, o.Traces)
}

func TestEvalPhaseTwoRawTraces(t *testing.T) {
	engine := &fakeEngine{results: []RedeemerResult{{
		Redeemer: []byte{0x01},
		Result: EngineResult{
			Traces: []EngineTrace{LogTrace("checking owner"), LabelTrace("spend"), LogTrace("ok")},
		},
	}}}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, []Trace{
		{Kind: TraceLog, Value: "checking owner"},
		{Kind: TraceLabel, Value: "spend"},
		{Kind: TraceLog, Value: "ok"},
	}, outcomes[0].Traces)
}

func TestEvalPhaseTwoRawKeepsEngineOrder(t *testing.T) {
	engine := &fakeEngine{results: []RedeemerResult{
		{Redeemer: []byte{3}},
		{Redeemer: []byte{1}},
		{Redeemer: []byte{2}},
	}}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, []byte{3}, outcomes[0].Redeemer)
	assert.Equal(t, []byte{1}, outcomes[1].Redeemer)
	assert.Equal(t, []byte{2}, outcomes[2].Redeemer)
}

func TestEvalPhaseTwoRawOutcomesOutliveEngineResults(t *testing.T) {
	engine := &fakeEngine{results: []RedeemerResult{{
		Redeemer: []byte{7, 7},
		Result:   EngineResult{Traces: []EngineTrace{LogTrace("x")}},
	}}}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)

	engine.results[0].Redeemer[0] = 0
	engine.results[0].Result.Traces[0] = LabelTrace("y")

	assert.Equal(t, []byte{7, 7}, outcomes[0].Redeemer)
	assert.Equal(t, []Trace{{Kind: TraceLog, Value: "x"}}, outcomes[0].Traces)
}

func TestEvalPhaseTwoRawCollapsesEngineErrors(t *testing.T) {
	engine := &fakeEngine{
		results: []RedeemerResult{{Redeemer: []byte{1}}},
		err:     errors.New("decoding transaction: unexpected end of input"),
	}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte{0x84}, nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.Equal(t, KindEngine, KindOf(err))
	assert.NotEmpty(t, Message(err))
	assert.Contains(t, Message(err), "unexpected end of input")
}

func TestEvalPhaseTwoRawKeepsStructuredEngineErrors(t *testing.T) {
	idx := 2
	engine := &fakeEngine{err: EvalError{
		ErrorType:   "OutOfExError",
		Budget:      Budget{CPU: -10, Mem: 5},
		ScriptIndex: &idx,
	}.toError(OpEvalPhaseTwo)}
	ev := newTestEvaluator(engine)

	_, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.Error(t, err)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindBudgetExceeded, be.Kind)
	assert.Equal(t, 2, be.ScriptIndex)
	require.NotNil(t, be.Budget)
	assert.Equal(t, int64(-10), be.Budget.CPU)
}

func TestEvalPhaseTwoRawDeliversDiagnostics(t *testing.T) {
	var events []DiagnosticEvent
	cfg := DefaultConfig()
	cfg.Sink = SinkFunc(func(e DiagnosticEvent) { events = append(events, e) })

	engine := &fakeEngine{results: []RedeemerResult{{Redeemer: []byte{1}}, {Redeemer: []byte{2}}}}
	ev := NewEvaluatorWithEngine(engine, cfg)

	_, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].ScriptIndex)
	assert.Equal(t, []byte{2}, events[1].Payload)
}

func TestEvaluateRejectsMalformedTransaction(t *testing.T) {
	engine := &fakeEngine{}
	ev := newTestEvaluator(engine)

	outcomes, err := ev.Evaluate(context.Background(), []byte{0x84, 0xa4}, nil)
	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.Equal(t, KindDecode, KindOf(err))
	assert.NotEmpty(t, Message(err))
	assert.Zero(t, engine.evalCalls)
}

func TestApplyParamsToScript(t *testing.T) {
	script := []byte{0x46, 0x01, 0x00, 0x00, 0x22, 0x00, 0x11}
	applied := []byte{0x4a, 0x01, 0x00, 0x00, 0x33, 0x22, 0x00, 0x11, 0x00, 0x01, 0x02}
	engine := &fakeEngine{applied: applied}
	ev := newTestEvaluator(engine)

	params := []byte{0x82, 0x43, 0xab, 0xcd, 0xef, 0x18, 0x7b}
	out, err := ev.ApplyParamsToScript(context.Background(), params, script)
	require.NoError(t, err)
	assert.Equal(t, applied, out)
	assert.Equal(t, params, engine.gotParams)
	assert.Equal(t, script, engine.gotScript)

	out[0] = 0
	assert.Equal(t, byte(0x4a), engine.applied[0])
}

func TestApplyParamsToScriptEmptyParamsIsNoOp(t *testing.T) {
	engine := &fakeEngine{applied: []byte{0x42, 0x01, 0x02}}
	ev := newTestEvaluator(engine)

	applied, err := ev.ApplyParamsToScript(context.Background(), []byte{0x81, 0x01}, []byte{0x41, 0x00})
	require.NoError(t, err)
	require.Equal(t, 1, engine.applyCalls)

	for _, empty := range [][]byte{{0x80}, {0x9f, 0xff}} {
		again, err := ev.ApplyParamsToScript(context.Background(), empty, applied)
		require.NoError(t, err)
		assert.Equal(t, applied, again)
	}
	assert.Equal(t, 1, engine.applyCalls)
}

func TestApplyParamsToScriptErrors(t *testing.T) {
	t.Run("empty script", func(t *testing.T) {
		ev := newTestEvaluator(&fakeEngine{})
		out, err := ev.ApplyParamsToScript(context.Background(), []byte{0x80}, nil)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Equal(t, KindMalformedScript, KindOf(err))
	})

	t.Run("params not a list", func(t *testing.T) {
		engine := &fakeEngine{}
		ev := newTestEvaluator(engine)
		out, err := ev.ApplyParamsToScript(context.Background(), []byte{0x01}, []byte{0x41, 0x00})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Equal(t, KindDecode, KindOf(err))
		assert.Zero(t, engine.applyCalls)
	})

	t.Run("engine failure", func(t *testing.T) {
		engine := &fakeEngine{applyErr: EvalError{ErrorType: "ParameterArityMismatch", Message: "too many params"}.toError(OpApplyParams)}
		ev := newTestEvaluator(engine)
		out, err := ev.ApplyParamsToScript(context.Background(), []byte{0x81, 0x00}, []byte{0x41, 0x00})
		require.Error(t, err)
		assert.Nil(t, out)
		assert.Equal(t, KindParameterArity, KindOf(err))
		assert.Contains(t, Message(err), "too many params")
	})
}

func TestFailureDoesNotPoisonLaterCalls(t *testing.T) {
	engine := &fakeEngine{err: errors.New("boom")}
	ev := newTestEvaluator(engine)

	_, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.Error(t, err)

	engine.err = nil
	engine.results = []RedeemerResult{{Redeemer: []byte{1}}}
	outcomes, err := ev.EvalPhaseTwoRaw(context.Background(), []byte("tx"), nil, nil, nil, 1, 1, SlotConfigMainnet)
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)
}

func TestEvaluatorClose(t *testing.T) {
	engine := &fakeEngine{}
	require.NoError(t, newTestEvaluator(engine).Close(context.Background()))
	assert.True(t, engine.closed)
}
