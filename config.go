package phasetwo

import (
	"strings"

	"go.uber.org/zap"
)

// SlotConfig maps slots to POSIX time for validity-interval checks.
type SlotConfig struct {
	ZeroTime   uint64 // POSIX milliseconds at ZeroSlot
	ZeroSlot   uint64
	SlotLength uint32 // milliseconds
}

// Slot configurations starting at the Shelley era of each network.
var (
	SlotConfigMainnet = SlotConfig{ZeroTime: 1596059091000, ZeroSlot: 4492800, SlotLength: 1000}
	SlotConfigPreview = SlotConfig{ZeroTime: 1666656000000, ZeroSlot: 0, SlotLength: 1000}
	SlotConfigPreprod = SlotConfig{ZeroTime: 1654041600000 + 1728000000, ZeroSlot: 86400, SlotLength: 1000}
)

// SlotConfigForNetwork returns the slot configuration of a named network.
func SlotConfigForNetwork(network string) (SlotConfig, bool) {
	switch strings.ToLower(network) {
	case "mainnet":
		return SlotConfigMainnet, true
	case "preview":
		return SlotConfigPreview, true
	case "preprod":
		return SlotConfigPreprod, true
	default:
		return SlotConfig{}, false
	}
}

// Protocol limits on execution units per transaction.
const (
	DefaultMaxTxExSteps uint64 = 10_000_000_000
	DefaultMaxTxExMem   uint64 = 14_000_000
)

// EvaluatorConfig holds configuration parameters for the Evaluator.
type EvaluatorConfig struct {
	WasmFile     *string // Optional path to the engine WASM file
	WasmBytes    []byte  // Engine WASM module, used when WasmFile is nil
	CostModels   []byte  // Serialized cost models; empty selects engine defaults
	MaxTxExSteps uint64  // Maximum transaction execution steps
	MaxTxExMem   uint64  // Maximum transaction execution memory
	Slot         SlotConfig

	// Over-estimation factors applied by Evaluate and EvaluateRedeemers.
	// Values below 1 are treated as 1, so the ceiling never exceeds
	// MaxTxExSteps and MaxTxExMem.
	OverEstimateSteps float64
	OverEstimateMem   float64

	Logger  *zap.Logger
	Sink    Sink
	Metrics *Metrics
}

// DefaultConfig returns a mainnet configuration with protocol limits.
func DefaultConfig() EvaluatorConfig {
	return EvaluatorConfig{
		MaxTxExSteps:      DefaultMaxTxExSteps,
		MaxTxExMem:        DefaultMaxTxExMem,
		Slot:              SlotConfigMainnet,
		OverEstimateSteps: 1,
		OverEstimateMem:   1,
	}
}

func (c EvaluatorConfig) withDefaults() EvaluatorConfig {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Sink == nil {
		c.Sink = NopSink{}
	}
	if c.MaxTxExSteps == 0 {
		c.MaxTxExSteps = DefaultMaxTxExSteps
	}
	if c.MaxTxExMem == 0 {
		c.MaxTxExMem = DefaultMaxTxExMem
	}
	if !(c.OverEstimateSteps >= 1) {
		c.OverEstimateSteps = 1
	}
	if !(c.OverEstimateMem >= 1) {
		c.OverEstimateMem = 1
	}
	return c
}

// ceiling returns the budget handed to the engine: the configured maximum
// divided by the over-estimation factor.
func (c EvaluatorConfig) ceiling() ExBudgetCeiling {
	return ExBudgetCeiling{
		CPU: uint64(float64(c.MaxTxExSteps) / c.OverEstimateSteps),
		Mem: uint64(float64(c.MaxTxExMem) / c.OverEstimateMem),
	}
}
