package phasetwo

import (
	"context"
	"fmt"

	apolloUTxO "github.com/Salvionied/apollo/serialization/UTxO"
	"go.uber.org/zap"
)

// Evaluator runs phase-two validation of transactions and applies parameters
// to scripts through an Engine. It keeps no state between calls.
type Evaluator struct {
	engine Engine
	config EvaluatorConfig
}

// NewEvaluator creates an Evaluator backed by the WASM engine named in config.
func NewEvaluator(ctx context.Context, config EvaluatorConfig) (*Evaluator, error) {
	config = config.withDefaults()

	var engine *WasmEngine
	var err error
	if config.WasmFile != nil {
		engine, err = NewWasmEngineFromFile(ctx, *config.WasmFile, config.Logger)
	} else {
		engine, err = NewWasmEngine(ctx, config.WasmBytes, config.Logger)
	}
	if err != nil {
		return nil, err
	}

	return &Evaluator{engine: engine, config: config}, nil
}

// NewEvaluatorWithEngine creates an Evaluator that delegates to engine.
func NewEvaluatorWithEngine(engine Engine, config EvaluatorConfig) *Evaluator {
	return &Evaluator{engine: engine, config: config.withDefaults()}
}

// Close releases the engine.
func (e *Evaluator) Close(ctx context.Context) error {
	return e.engine.Close(ctx)
}

// EvalPhaseTwoRaw evaluates every script of the transaction in txBytes.
// refs[i] is the CBOR of the output reference whose output CBOR is
// outputs[i]; the two slices must have the same length. Outcomes are returned
// in the order the engine produced them. On failure no outcomes are returned
// and the error is an *Error.
func (e *Evaluator) EvalPhaseTwoRaw(
	ctx context.Context,
	txBytes []byte,
	refs, outputs [][]byte,
	costModels []byte,
	cpuBudget, memBudget uint64,
	slot SlotConfig,
) ([]Outcome, error) {
	pairs, err := zipUTxOs(refs, outputs)
	if err != nil {
		return nil, e.fail(OpEvalPhaseTwo, err)
	}

	outcomes, err := e.evalPhaseTwo(ctx, PhaseTwoArgs{
		Tx:         txBytes,
		UTxOs:      pairs,
		CostModels: costModels,
		Budget:     ExBudgetCeiling{CPU: cpuBudget, Mem: memBudget},
		Slot:       slot,
	})
	if err != nil {
		return nil, err
	}

	e.evaluated(outcomes)
	return outcomes, nil
}

// Evaluate evaluates the transaction in txBytes against utxos using the
// configured cost models, budget and slot configuration. Every transaction
// input must be present in utxos.
func (e *Evaluator) Evaluate(ctx context.Context, txBytes []byte, utxos []apolloUTxO.UTxO) ([]Outcome, error) {
	outcomes, err := e.evaluate(ctx, txBytes, utxos)
	if err != nil {
		return nil, err
	}

	e.evaluated(outcomes)
	return outcomes, nil
}

// EvaluateRedeemers is Evaluate returning the redeemer of each outcome with
// its execution units scaled by the configured over-estimation factors.
func (e *Evaluator) EvaluateRedeemers(ctx context.Context, txBytes []byte, utxos []apolloUTxO.UTxO) ([][]byte, error) {
	outcomes, err := e.evaluate(ctx, txBytes, utxos)
	if err != nil {
		return nil, err
	}

	redeemers := make([][]byte, 0, len(outcomes))
	for i, o := range outcomes {
		scaled, err := ScaleExUnits(o.Redeemer, e.config.OverEstimateSteps, e.config.OverEstimateMem)
		if err != nil {
			be := wrapError(OpEvalPhaseTwo, KindDecode, err)
			be.ScriptIndex = i
			be.Field = "redeemer"
			return nil, e.fail(OpEvalPhaseTwo, be)
		}
		redeemers = append(redeemers, scaled)
	}

	e.evaluated(outcomes)
	return redeemers, nil
}

func (e *Evaluator) evaluate(ctx context.Context, txBytes []byte, utxos []apolloUTxO.UTxO) ([]Outcome, error) {
	tx, err := GetTxFromBytes(txBytes)
	if err != nil {
		be := wrapError(OpEvalPhaseTwo, KindDecode, err)
		be.Field = "tx"
		return nil, e.fail(OpEvalPhaseTwo, be)
	}

	if err := checkInputsResolved(tx, utxos); err != nil {
		return nil, e.fail(OpEvalPhaseTwo, err)
	}

	pairs, err := utxoPairs(utxos)
	if err != nil {
		be := wrapError(OpEvalPhaseTwo, KindDecode, err)
		be.Field = "utxos"
		return nil, e.fail(OpEvalPhaseTwo, be)
	}

	return e.evalPhaseTwo(ctx, PhaseTwoArgs{
		Tx:         txBytes,
		UTxOs:      pairs,
		CostModels: e.config.CostModels,
		Budget:     e.config.ceiling(),
		Slot:       e.config.Slot,
	})
}

func (e *Evaluator) evalPhaseTwo(ctx context.Context, args PhaseTwoArgs) ([]Outcome, error) {
	// Absent cost models are forwarded as an empty buffer; the engine falls
	// back to its defaults.
	if args.CostModels == nil {
		args.CostModels = []byte{}
	}

	e.config.Logger.Debug("evaluating transaction",
		zap.Int("tx_size", len(args.Tx)),
		zap.Int("utxos", len(args.UTxOs)),
		zap.Uint64("cpu_budget", args.Budget.CPU),
		zap.Uint64("mem_budget", args.Budget.Mem),
	)

	results, err := e.engine.EvalPhaseTwo(ctx, args, e.config.Sink)
	if err != nil {
		return nil, e.fail(OpEvalPhaseTwo, err)
	}

	outcomes := make([]Outcome, 0, len(results))
	for i := range results {
		outcomes = append(outcomes, newOutcome(results[i].Redeemer, &results[i].Result))
	}

	return outcomes, nil
}

// evaluated records a completed evaluation.
func (e *Evaluator) evaluated(outcomes []Outcome) {
	e.config.Metrics.observeSuccess(OpEvalPhaseTwo)
	e.config.Metrics.observeOutcomes(outcomes)
	e.config.Logger.Debug("transaction evaluated", zap.Int("scripts", len(outcomes)))
}

// ApplyParamsToScript binds the CBOR list of Plutus data in params to the
// script. An empty parameter list returns the script unchanged.
func (e *Evaluator) ApplyParamsToScript(ctx context.Context, params, script []byte) ([]byte, error) {
	if len(script) == 0 {
		be := newError(OpApplyParams, KindMalformedScript, "empty script")
		be.Field = "script"
		return nil, e.fail(OpApplyParams, be)
	}

	n, err := paramCount(params)
	if err != nil {
		be := wrapError(OpApplyParams, KindDecode, err)
		be.Field = "params"
		return nil, e.fail(OpApplyParams, be)
	}

	var applied []byte
	if n == 0 {
		applied = script
	} else {
		applied, err = e.engine.ApplyParams(ctx, params, script)
		if err != nil {
			return nil, e.fail(OpApplyParams, err)
		}
	}

	e.config.Metrics.observeSuccess(OpApplyParams)

	out := make([]byte, len(applied))
	copy(out, applied)
	return out, nil
}

func (e *Evaluator) fail(op string, err error) error {
	be := asBoundaryError(op, err)
	e.config.Metrics.observeFailure(op, be)
	e.config.Logger.Debug("boundary call failed",
		zap.String("op", op),
		zap.String("kind", string(be.Kind)),
		zap.Error(be),
	)
	return be
}

// zipUTxOs pairs refs and outputs by position.
func zipUTxOs(refs, outputs [][]byte) ([]UTxOPair, error) {
	if len(refs) != len(outputs) {
		be := newError(OpEvalPhaseTwo, KindInputMismatch,
			fmt.Sprintf("%d utxo references but %d utxo outputs", len(refs), len(outputs)))
		be.Field = "utxos_outputs_bytes"
		return nil, be
	}

	pairs := make([]UTxOPair, len(refs))
	for i := range refs {
		pairs[i] = UTxOPair{Ref: refs[i], Output: outputs[i]}
	}
	return pairs, nil
}
