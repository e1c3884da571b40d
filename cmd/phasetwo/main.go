package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgpai22/phasetwo"
)

var (
	wasmPath string
	logLevel string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "phasetwo",
	Short:         "Evaluate Plutus scripts of Cardano transactions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&wasmPath, "wasm", "", "path to the evaluator WASM module")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	_ = rootCmd.MarkPersistentFlagRequired("wasm")

	rootCmd.AddCommand(evalCmd, applyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, phasetwo.Message(err))
		os.Exit(1)
	}
}
