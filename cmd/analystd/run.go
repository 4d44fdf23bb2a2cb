package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var inputPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline pass over an input chunk file",
	Long: `Run ingests the chunks from --input, deduplicates against prior runs,
and drives the full analysis pipeline: context retrieval, parallel
provider analysis, attribution, consensus, and guardrail validation.

Examples:
  # Analyze a JSONL chunk file
  analystd run --config analystd.yaml --input chunks.jsonl`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&inputPath, "input", "", "JSONL file of newsletter chunks")
	_ = runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	runner, err := a.newRunner(inputPath)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	a.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("fetched", report.Fetched),
		zap.Int("ingested", report.Ingested),
		zap.Int("deduplicated", report.Deduplicated),
		zap.Int("decisions", report.Decisions),
		zap.Int("promoted", report.Promoted),
		zap.Int("eligible", report.Eligible),
		zap.Int("rejected", report.Rejected),
		zap.Duration("duration", report.Duration),
	)

	fmt.Printf("run %s: %d fetched, %d new, %d decisions, %d promoted, %d eligible\n",
		report.RunID, report.Fetched, report.Ingested,
		report.Decisions, report.Promoted, report.Eligible)
	return nil
}
