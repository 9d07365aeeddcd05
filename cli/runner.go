// Command execution for CLI commands.
//
// Wires the application together: settings, oracle client, provider
// registry, tool executor, flows, and the per-conversation
// orchestrator.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"

	"switchboard/agent"
	"switchboard/config"
	"switchboard/flow"
	"switchboard/llm"
	"switchboard/mcp"
	"switchboard/registry"
)

// Options holds CLI execution options.
type Options struct {
	Backend string
	Verbose bool
}

var (
	promptColor    = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen)
	errorColor     = color.New(color.FgRed)
)

// Chat starts an interactive conversation.
func Chat(ctx context.Context, opts Options) error {
	app, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("switchboard (%s, %s). Type 'exit' to quit.\n\n",
		app.client.Provider().Name(), app.client.Provider().Model())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := app.orchestrator.HandleTurn(ctx, input)
		if err != nil {
			errorColor.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			continue
		}
		fmt.Println()
		assistantColor.Println(reply)
		fmt.Println()
	}

	return scanner.Err()
}

// Ask handles a single question and prints the reply.
func Ask(ctx context.Context, question string, opts Options) error {
	app, cleanup, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	reply, err := app.orchestrator.HandleTurn(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// Providers prints the provider catalog. No oracle is needed, so no API
// key is required either.
func Providers(ctx context.Context, opts Options) error {
	settings, err := config.New(opts.Backend)
	if err != nil {
		return err
	}
	logger := newLogger(settings.LogLevel, opts.Verbose)

	reg, closeStore, err := openRegistry(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	providers := reg.List()
	if len(providers) == 0 {
		fmt.Println("No providers registered.")
		return nil
	}

	for _, p := range providers {
		if p.Enabled {
			promptColor.Printf("%s\n", p.ID)
		} else {
			errorColor.Printf("%s (disabled)\n", p.ID)
		}
		if p.Description != "" {
			fmt.Printf("  %s\n", p.Description)
		}
		for _, tool := range p.Tools {
			fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
		}
		fmt.Println()
	}
	return nil
}

// app bundles the wired components of one CLI invocation.
type app struct {
	orchestrator *agent.Orchestrator
	registry     *registry.Registry
	client       *llm.Client
}

func setup(ctx context.Context, opts Options) (*app, func(), error) {
	settings, err := config.New(opts.Backend)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(settings.LogLevel, opts.Verbose)

	oracle, err := settings.BuildOracle()
	if err != nil {
		return nil, nil, err
	}
	client := llm.NewClient(oracle, settings.Oracle.Timeout)

	reg, closeStore, err := openRegistry(ctx, settings, logger)
	if err != nil {
		return nil, nil, err
	}

	executor := mcp.NewExecutor(reg, logger, mcp.WithTimeout(settings.Tools.Timeout))

	flows := flow.NewRegistry()
	flows.Register(flow.NewProviderCreation(
		client, reg, executor,
		settings.Catalog.FilesystemProvider, settings.Catalog.Workspace,
		logger,
	))

	orchestrator := agent.New(client, reg, executor, flows, logger,
		agent.WithMemoryCapacity(settings.Chat.MemoryCapacity),
		agent.WithHistoryWindow(settings.Chat.HistoryWindow),
	)

	return &app{orchestrator: orchestrator, registry: reg, client: client}, closeStore, nil
}

func openRegistry(ctx context.Context, settings config.Settings, logger *slog.Logger) (*registry.Registry, func(), error) {
	store, err := registry.OpenSqlite(settings.Catalog.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open provider catalog: %w", err)
	}

	reg := registry.New(store, logger)
	if err := reg.Load(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	if settings.Catalog.SeedFile != "" {
		seed, err := registry.LoadCatalogFile(settings.Catalog.SeedFile)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		if err := reg.SeedDefaults(ctx, seed); err != nil {
			store.Close()
			return nil, nil, err
		}
	}

	return reg, func() { _ = store.Close() }, nil
}

func newLogger(level string, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
