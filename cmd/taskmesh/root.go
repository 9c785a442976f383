package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "taskmesh",
	Short: "Multi-agent task orchestration runtime",
	Long: `Taskmesh decomposes free-form task descriptions into typed steps,
allocates them across a pool of agents, and coordinates dependency-aware
concurrent execution with priority scheduling and retry.

Subcommands:
  run        Start the runtime and execute one or more tasks
  submit     Submit a single task and print its aggregated report
  decompose  Show the decomposition of a task without executing it`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: ./taskmesh.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. Verbose mode uses the development
// encoder for readable step-level debug output.
func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
