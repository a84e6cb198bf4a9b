// Package main provides the CLI entry point for Operator, an autonomous
// browser-agent service.
//
// Operator accepts a natural-language goal over HTTP, drives a remote
// hosted browser session through a reasoning model one step at a time,
// and streams progress back as newline-delimited JSON.
//
// # Basic Usage
//
// Start the server:
//
//	operator serve --config operator.yaml
//
// # Environment Variables
//
//   - OPERATOR_CONFIG: Path to configuration file
//   - OPERATOR_API_TOKEN: Static credential required on API routes
//   - BROWSERBASE_API_KEY: Browserbase API key
//   - BROWSERBASE_PROJECT_ID: Browserbase project identifier
//   - OPENAI_API_KEY: OpenAI API key for planning
//   - ANTHROPIC_API_KEY: Anthropic API key for planning
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "operator",
		Short:         "Autonomous browser-agent service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(buildServeCmd())
	root.AddCommand(buildVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the Operator version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
