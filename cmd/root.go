// Package cmd wires the lexora CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lexora",
	Short: "Lexora legal AI backend",
	Long: `Lexora is the backend for the Lexora legal AI assistant.

It serves contract drafting, compliance analysis, clause analysis, legal
research and case summarization over a JSON API backed by PostgreSQL with
pgvector and hosted LLM providers.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
