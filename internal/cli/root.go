// Package cli implements the primegate command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "primegate",
	Short: "Governance decision core for regulated conversational agents",
	Long:  "Mediates every agent action in a regulated banking assistant: fast-path safety\nclassification, LLM judgment, role-based permission enforcement, escalation\ntickets for human review, and a hash-chained audit trail.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.primegate/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
