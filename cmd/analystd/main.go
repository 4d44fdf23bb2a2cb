// Analystd ingests financial newsletters, runs them through multiple
// generative-model providers in parallel, and promotes cross-provider
// consensus into a shared event timeline.
//
// Usage:
//
//	# One pipeline pass over a JSONL chunk file
//	analystd run --config analystd.yaml --input chunks.jsonl
//
//	# Serve the read API and metrics
//	analystd serve --config analystd.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "analystd",
	Short: "Multi-provider analysis and consensus engine",
	Long: `analystd turns financial newsletter chunks into attributed trading
decisions. Each chunk batch is deduplicated, enriched with historical
context from vector memory, analyzed by every configured provider in
parallel, and cross-provider agreement is promoted to a consensus
timeline after guardrail validation.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("analystd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
