package main

import (
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgpai22/phasetwo"
)

var evalOpts evalOptions

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate every script of a transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := evalOpts.evaluatorConfig(wasmPath, logger)
		if err != nil {
			return err
		}

		txBytes, err := readHexFile(evalOpts.txFile)
		if err != nil {
			return err
		}
		tx, err := phasetwo.GetTxFromBytes(txBytes)
		if err != nil {
			return errors.Wrap(err, "decode transaction")
		}

		utxoJSON, err := os.ReadFile(evalOpts.utxosFile)
		if err != nil {
			return errors.Wrapf(err, "read %s", evalOpts.utxosFile)
		}
		utxos, err := phasetwo.ParseUTxOsFromJSON(utxoJSON, tx.TransactionBody.Inputs)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		evaluator, err := phasetwo.NewEvaluator(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := evaluator.Close(ctx); err != nil {
				logger.Warn("failed to close evaluator", zap.Error(err))
			}
		}()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if evalOpts.redeemersOnly {
			redeemers, err := evaluator.EvaluateRedeemers(ctx, txBytes, utxos)
			if err != nil {
				return err
			}
			out := make([]string, 0, len(redeemers))
			for _, r := range redeemers {
				out = append(out, hex.EncodeToString(r))
			}
			return enc.Encode(out)
		}

		outcomes, err := evaluator.Evaluate(ctx, txBytes, utxos)
		if err != nil {
			return err
		}
		return enc.Encode(outcomes)
	},
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalOpts.txFile, "tx", "", "file holding the transaction CBOR as hex")
	f.StringVar(&evalOpts.utxosFile, "utxos", "", "JSON file with the UTxOs spent by the transaction")
	f.StringVar(&evalOpts.costModelsFile, "cost-models", "", "file holding the cost models CBOR as hex")
	f.StringVar(&evalOpts.network, "network", "mainnet", "network slot configuration (mainnet, preview, preprod)")
	f.Uint64Var(&evalOpts.maxSteps, "max-steps", phasetwo.DefaultMaxTxExSteps, "maximum transaction execution steps")
	f.Uint64Var(&evalOpts.maxMem, "max-mem", phasetwo.DefaultMaxTxExMem, "maximum transaction execution memory")
	f.Float64Var(&evalOpts.overEstimateSteps, "overestimate-steps", 1, "execution steps over-estimation factor")
	f.Float64Var(&evalOpts.overEstimateMem, "overestimate-mem", 1, "memory over-estimation factor")
	f.BoolVar(&evalOpts.redeemersOnly, "redeemers", false, "print only the redeemers with scaled execution units")
	_ = evalCmd.MarkFlagRequired("tx")
	_ = evalCmd.MarkFlagRequired("utxos")
}
