package phasetwo

import "context"

// Engine executes the validator scripts of a transaction and applies
// parameters to scripts. It is the only component that understands UPLC;
// everything in this package treats its inputs and outputs as opaque bytes.
type Engine interface {
	// EvalPhaseTwo returns one result per evaluated script, in the order the
	// engine evaluated them. Diagnostic events are delivered to sink.
	EvalPhaseTwo(ctx context.Context, args PhaseTwoArgs, sink Sink) ([]RedeemerResult, error)
	// ApplyParams returns script with params bound.
	ApplyParams(ctx context.Context, params, script []byte) ([]byte, error)
	Close(ctx context.Context) error
}

// UTxOPair is a resolved transaction input: the CBOR of the output reference
// and the CBOR of the output it points to.
type UTxOPair struct {
	Ref    []byte
	Output []byte
}

// ExBudgetCeiling is the maximum budget the engine may spend on the whole
// transaction.
type ExBudgetCeiling struct {
	CPU uint64
	Mem uint64
}

type PhaseTwoArgs struct {
	Tx         []byte
	UTxOs      []UTxOPair
	CostModels []byte
	Budget     ExBudgetCeiling
	Slot       SlotConfig
}

// EngineBudget is a budget as reported by the engine.
type EngineBudget struct {
	_   struct{} `cbor:",toarray"`
	CPU int64
	Mem int64
}

// EngineTrace is a trace as reported by the engine. The only implementations
// are LogTrace and LabelTrace.
type EngineTrace interface {
	isEngineTrace()
}

type LogTrace string

type LabelTrace string

func (LogTrace) isEngineTrace()   {}
func (LabelTrace) isEngineTrace() {}

// EngineResult is the engine's account of one script execution.
type EngineResult struct {
	RemainingBudget EngineBudget
	InitialBudget   EngineBudget
	Traces          []EngineTrace
}

// Logs returns the traces in emission order.
func (r *EngineResult) Logs() []EngineTrace {
	return r.Traces
}

// RedeemerResult pairs an engine result with the redeemer that produced it.
type RedeemerResult struct {
	Redeemer []byte
	Result   EngineResult
}
