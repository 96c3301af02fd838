package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"meridian-hq/meridian/pkg/cli"
	"meridian-hq/meridian/pkg/engine"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/rules/source"
	"meridian-hq/meridian/pkg/store"
)

var evaluateFlags struct {
	definitions string
	ruleset     string
	environment string
	file        string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a transaction locally",
	Long: `Evaluate a single transaction against rulesets loaded from disk.

The command loads definition files into an in-memory store, evaluates the
transaction and prints the decision as JSON. No server, database or audit
trail is involved; use it to test rule changes before submitting them.

Examples:
  # Evaluate a transaction file
  meridian evaluate --definitions definitions/ --ruleset card-rules --file txn.json

  # Read the transaction from stdin
  cat txn.json | meridian evaluate --ruleset card-rules --file -`,
	RunE: evaluateTransaction,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.definitions, "definitions", "d", "./definitions", "directory of definition files")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.ruleset, "ruleset", "r", "", "ruleset ID to evaluate against")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.environment, "environment", "e", string(rules.EnvDev), "environment to evaluate in")
	evaluateCmd.Flags().StringVarP(&evaluateFlags.file, "file", "f", "", "transaction JSON file ('-' for stdin)")
}

func evaluateTransaction(cmd *cobra.Command, args []string) error {
	if evaluateFlags.ruleset == "" {
		return fmt.Errorf("--ruleset must be specified")
	}
	if evaluateFlags.file == "" {
		return fmt.Errorf("--file must be specified")
	}

	var txnData []byte
	var err error
	if evaluateFlags.file == "-" {
		txnData, err = io.ReadAll(os.Stdin)
	} else {
		txnData, err = os.ReadFile(evaluateFlags.file)
	}
	if err != nil {
		return fmt.Errorf("failed to read transaction: %w", err)
	}

	var txn rules.Transaction
	if err := json.Unmarshal(txnData, &txn); err != nil {
		return fmt.Errorf("invalid transaction JSON: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	env := rules.Environment(evaluateFlags.environment)
	versions := store.NewMemoryStore()
	loader := source.NewLoader(versions, &source.LoaderConfig{
		Path:        evaluateFlags.definitions,
		Environment: env,
	}, logger)

	ctx := context.Background()
	if _, err := loader.Sync(ctx); err != nil {
		return cli.NewCommandError("evaluate", fmt.Errorf("failed to load definitions: %w", err))
	}

	eng, err := engine.New(versions, nil, logger)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	decision, err := eng.Decide(ctx, evaluateFlags.ruleset, env, txn)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	formatter := cli.NewFormatter(cli.FormatJSON)
	return formatter.FormatTo(os.Stdout, decision)
}
