package main

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgpai22/phasetwo"
)

var (
	applyParamsHex string
	applyScriptHex string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply parameters to a Plutus script",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := hex.DecodeString(applyParamsHex)
		if err != nil {
			return errors.Wrap(err, "decode --params")
		}
		script, err := hex.DecodeString(applyScriptHex)
		if err != nil {
			return errors.Wrap(err, "decode --script")
		}

		ctx := cmd.Context()
		cfg := phasetwo.DefaultConfig()
		cfg.WasmFile = &wasmPath
		cfg.Logger = logger
		evaluator, err := phasetwo.NewEvaluator(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := evaluator.Close(ctx); err != nil {
				logger.Warn("failed to close evaluator", zap.Error(err))
			}
		}()

		applied, err := evaluator.ApplyParamsToScript(ctx, params, script)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(applied))
		return err
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyParamsHex, "params", "", "CBOR list of Plutus data parameters as hex")
	applyCmd.Flags().StringVar(&applyScriptHex, "script", "", "script CBOR as hex")
	_ = applyCmd.MarkFlagRequired("params")
	_ = applyCmd.MarkFlagRequired("script")
}
