// Package main provides the switchboard CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"switchboard/cli"
)

var (
	// Global flags
	backend string
	verbose bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "switchboard",
		Short: "Natural-language front end for tool providers",
		Long: `Switchboard routes free-text requests to the right place: a direct
answer, a tool call on a registered provider, a catalog management
operation, or a guided flow that builds a brand new provider for you.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Oracle backend (anthropic, openai, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(providersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), cli.Options{Backend: backend, Verbose: verbose})
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Handle a single request and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], cli.Options{Backend: backend, Verbose: verbose})
		},
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the provider catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Providers(context.Background(), cli.Options{Backend: backend, Verbose: verbose})
		},
	}
}
