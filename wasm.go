package phasetwo

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Host module the engine may import to push diagnostic events.
const (
	hostModuleName     = "phasetwo"
	hostDiagnosticFunc = "diagnostic"
)

// WasmEngine runs a UPLC evaluator compiled to WebAssembly. Calls into the
// guest are serialized.
type WasmEngine struct {
	mu              sync.Mutex
	runtime         wazero.Runtime
	module          api.Module
	evalPhaseTwoRaw api.Function
	applyParams     api.Function
	alloc           api.Function
	dealloc         api.Function
	logger          *zap.Logger
}

var _ Engine = (*WasmEngine)(nil)

// NewWasmEngine instantiates the engine module from wasmBytes.
func NewWasmEngine(ctx context.Context, wasmBytes []byte, logger *zap.Logger) (*WasmEngine, error) {
	if len(wasmBytes) == 0 {
		return nil, errors.New("no engine WASM module configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(err, "instantiate WASI")
	}

	_, err := runtime.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithFunc(hostDiagnostic).
		Export(hostDiagnosticFunc).
		Instantiate(ctx)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(err, "instantiate host module")
	}

	modConfig := wazero.NewModuleConfig().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	module, err := runtime.InstantiateWithConfig(ctx, wasmBytes, modConfig)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(err, "instantiate engine module")
	}

	engine := &WasmEngine{
		runtime:         runtime,
		module:          module,
		evalPhaseTwoRaw: module.ExportedFunction("eval_phase_two_raw"),
		applyParams:     module.ExportedFunction("apply_params_to_script"),
		alloc:           module.ExportedFunction("alloc"),
		dealloc:         module.ExportedFunction("dealloc"),
		logger:          logger,
	}

	for name, fn := range map[string]api.Function{
		"eval_phase_two_raw":     engine.evalPhaseTwoRaw,
		"apply_params_to_script": engine.applyParams,
		"alloc":                  engine.alloc,
		"dealloc":                engine.dealloc,
	} {
		if fn == nil {
			runtime.Close(ctx)
			return nil, errors.Errorf("engine module does not export %q", name)
		}
	}

	return engine, nil
}

// NewWasmEngineFromFile reads the engine module from path.
func NewWasmEngineFromFile(ctx context.Context, path string, logger *zap.Logger) (*WasmEngine, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read engine WASM file")
	}
	return NewWasmEngine(ctx, wasmBytes, logger)
}

// Close terminates the WASM runtime and releases resources.
func (e *WasmEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.Close(ctx)
}

func (e *WasmEngine) EvalPhaseTwo(ctx context.Context, args PhaseTwoArgs, sink Sink) ([]RedeemerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = withSink(ctx, sink)

	txPtr, txLen, err := e.writeToMemory(ctx, args.Tx)
	if err != nil {
		return nil, wrapError(OpEvalPhaseTwo, KindEngine, err)
	}
	defer e.deallocMemory(ctx, txPtr, txLen)

	utxosPtr, utxosLen, err := e.writeToMemory(ctx, serializeUTxOs(args.UTxOs))
	if err != nil {
		return nil, wrapError(OpEvalPhaseTwo, KindEngine, err)
	}
	defer e.deallocMemory(ctx, utxosPtr, utxosLen)

	costModelsPtr, costModelsLen, err := e.writeToMemory(ctx, args.CostModels)
	if err != nil {
		return nil, wrapError(OpEvalPhaseTwo, KindEngine, err)
	}
	defer e.deallocMemory(ctx, costModelsPtr, costModelsLen)

	result, err := e.callFunction(ctx, e.evalPhaseTwoRaw,
		txPtr, txLen,
		utxosPtr, utxosLen,
		costModelsPtr, costModelsLen,
		args.Budget.CPU, args.Budget.Mem,
		args.Slot.ZeroTime, args.Slot.ZeroSlot, uint64(args.Slot.SlotLength),
	)
	if err != nil {
		return nil, wrapError(OpEvalPhaseTwo, KindEngine, err)
	}

	return decodeEvalResult(result)
}

func (e *WasmEngine) ApplyParams(ctx context.Context, params, script []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	paramsPtr, paramsLen, err := e.writeToMemory(ctx, params)
	if err != nil {
		return nil, wrapError(OpApplyParams, KindEngine, err)
	}
	defer e.deallocMemory(ctx, paramsPtr, paramsLen)

	scriptPtr, scriptLen, err := e.writeToMemory(ctx, script)
	if err != nil {
		return nil, wrapError(OpApplyParams, KindEngine, err)
	}
	defer e.deallocMemory(ctx, scriptPtr, scriptLen)

	result, err := e.callFunction(ctx, e.applyParams, paramsPtr, paramsLen, scriptPtr, scriptLen)
	if err != nil {
		return nil, wrapError(OpApplyParams, KindEngine, err)
	}

	return decodeApplyResult(result)
}

// writeToMemory allocates memory in WASM and writes data to it.
func (e *WasmEngine) writeToMemory(ctx context.Context, data []byte) (uint64, uint64, error) {
	results, err := e.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to allocate guest memory")
	}
	ptr := results[0]
	if !e.module.Memory().Write(uint32(ptr), data) {
		e.deallocMemory(ctx, ptr, uint64(len(data)))
		return 0, 0, errors.New("failed to write data to guest memory")
	}
	return ptr, uint64(len(data)), nil
}

// deallocMemory deallocates memory in WASM.
func (e *WasmEngine) deallocMemory(ctx context.Context, ptr, size uint64) {
	if _, err := e.dealloc.Call(ctx, ptr, size); err != nil {
		e.logger.Warn("failed to deallocate guest memory",
			zap.Uint64("ptr", ptr), zap.Uint64("size", size), zap.Error(err))
	}
}

// callFunction invokes a guest function and copies its result buffer out of
// guest memory.
func (e *WasmEngine) callFunction(ctx context.Context, fn api.Function, args ...uint64) ([]byte, error) {
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(results) < 1 {
		return nil, errors.New("no results from function call")
	}

	resultPtr, resultLen := unpackPointer(results[0])

	resultBytes, ok := e.module.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, errors.New("failed to read function result memory")
	}

	resultCopy := make([]byte, len(resultBytes))
	copy(resultCopy, resultBytes)

	e.deallocMemory(ctx, uint64(resultPtr), uint64(resultLen))

	return resultCopy, nil
}

// hostDiagnostic is called by the guest to emit a diagnostic event.
func hostDiagnostic(ctx context.Context, m api.Module, kind, index, ptr, length uint32) {
	payload, ok := m.Memory().Read(ptr, length)
	if !ok {
		return
	}
	event := DiagnosticEvent{
		Kind:        DiagnosticKind(kind),
		ScriptIndex: int(int32(index)),
		Payload:     append([]byte(nil), payload...),
	}
	sinkFrom(ctx).Accept(event)
}
