package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mgpai22/phasetwo"
)

type evalOptions struct {
	txFile            string
	utxosFile         string
	costModelsFile    string
	network           string
	maxSteps          uint64
	maxMem            uint64
	overEstimateSteps float64
	overEstimateMem   float64
	redeemersOnly     bool
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// readHexFile reads a file holding hex text, ignoring surrounding whitespace.
func readHexFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, errors.Wrapf(err, "decode hex in %s", path)
	}
	return b, nil
}

func (o evalOptions) evaluatorConfig(wasm string, logger *zap.Logger) (phasetwo.EvaluatorConfig, error) {
	slot, ok := phasetwo.SlotConfigForNetwork(o.network)
	if !ok {
		return phasetwo.EvaluatorConfig{}, fmt.Errorf("unknown network %q", o.network)
	}

	cfg := phasetwo.DefaultConfig()
	cfg.WasmFile = &wasm
	cfg.Slot = slot
	cfg.Logger = logger
	cfg.Sink = phasetwo.LogSink{Logger: logger}
	if o.maxSteps > 0 {
		cfg.MaxTxExSteps = o.maxSteps
	}
	if o.maxMem > 0 {
		cfg.MaxTxExMem = o.maxMem
	}
	cfg.OverEstimateSteps = o.overEstimateSteps
	cfg.OverEstimateMem = o.overEstimateMem

	if o.costModelsFile != "" {
		costModels, err := readHexFile(o.costModelsFile)
		if err != nil {
			return phasetwo.EvaluatorConfig{}, err
		}
		cfg.CostModels = costModels
	}

	return cfg, nil
}
