package phasetwo

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failure of a boundary operation.
type ErrorKind string

const (
	KindDecode          ErrorKind = "decode"
	KindMissingUTxO     ErrorKind = "missing_utxo"
	KindBudgetExceeded  ErrorKind = "budget_exceeded"
	KindScriptTrap      ErrorKind = "script_trap"
	KindCostModel       ErrorKind = "cost_model"
	KindParameterArity  ErrorKind = "parameter_arity"
	KindMalformedScript ErrorKind = "malformed_script"
	KindInputMismatch   ErrorKind = "input_mismatch"
	KindEngine          ErrorKind = "engine"
)

const (
	OpEvalPhaseTwo = "eval_phase_two"
	OpApplyParams  = "apply_params"
)

// Error is the structured failure returned by every boundary operation.
// ScriptIndex is -1 when the failure is not tied to a script.
type Error struct {
	Kind        ErrorKind
	Op          string
	ScriptIndex int
	Field       string
	Message     string
	Budget      *Budget
	Traces      []string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.ScriptIndex >= 0 {
		fmt.Fprintf(&b, " (script %d)", e.ScriptIndex)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " [%s]", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, ScriptIndex: -1, Message: msg}
}

func wrapError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, ScriptIndex: -1, Err: err}
}

// asBoundaryError converts any error into a new *Error for op. Errors that
// already are *Error keep their kind and context.
func asBoundaryError(op string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		out := *be
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}
	return wrapError(op, KindEngine, err)
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// Message formats err for a caller that can only receive text. The result is
// never empty.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if msg == "" {
		return "evaluation failed"
	}
	return msg
}

// EvalError is the failure payload reported by the WASM engine.
type EvalError struct {
	ErrorType   string   `cbor:"error_type"`
	Message     string   `cbor:"message,omitempty"`
	Budget      Budget   `cbor:"budget"`
	DebugTrace  []string `cbor:"debug_trace"`
	ScriptIndex *int     `cbor:"script_index,omitempty"`
	Field       string   `cbor:"field,omitempty"`
}

// classifyErrorType maps an engine error_type to a kind.
func classifyErrorType(errorType string) ErrorKind {
	t := strings.ToLower(errorType)
	switch {
	case strings.Contains(t, "costmodel"), strings.Contains(t, "cost_model"), strings.Contains(t, "cost model"):
		return KindCostModel
	case strings.Contains(t, "budget"), strings.Contains(t, "outofex"), strings.Contains(t, "exhausted"):
		return KindBudgetExceeded
	case strings.Contains(t, "arity"), strings.Contains(t, "param"):
		return KindParameterArity
	case strings.Contains(t, "resolvedinput"), strings.Contains(t, "utxo"):
		return KindMissingUTxO
	case strings.Contains(t, "decod"), strings.Contains(t, "deserial"), strings.Contains(t, "cbor"):
		return KindDecode
	case strings.Contains(t, "malformed"), strings.Contains(t, "flat"):
		return KindMalformedScript
	case strings.Contains(t, "machine"), strings.Contains(t, "script"), strings.Contains(t, "eval"):
		return KindScriptTrap
	default:
		return KindEngine
	}
}

func (e EvalError) toError(op string) *Error {
	be := newError(op, classifyErrorType(e.ErrorType), e.Message)
	if be.Message == "" {
		be.Message = e.ErrorType
	}
	if e.ScriptIndex != nil {
		be.ScriptIndex = *e.ScriptIndex
	}
	be.Field = e.Field
	if e.Budget != (Budget{}) {
		budget := e.Budget
		be.Budget = &budget
	}
	be.Traces = e.DebugTrace
	return be
}
