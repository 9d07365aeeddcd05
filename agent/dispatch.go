package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"switchboard/mcp"
	"switchboard/memory"
	"switchboard/registry"
	"switchboard/router"
)

// dispatch executes a validated decision. Dispatch never fails the
// turn: operational errors come back as conversational text.
func (a *Orchestrator) dispatch(ctx context.Context, decision router.Decision) string {
	switch decision.Action {
	case router.ActionDirectAnswer:
		return decision.Answer

	case router.ActionInvokeTool:
		return a.invokeTool(ctx, decision)

	case router.ActionListProviders:
		return a.listProviders()

	case router.ActionProviderStatus:
		return a.providerStatus()

	case router.ActionSetProviderEnabled:
		return a.setProviderEnabled(ctx, decision.ProviderID, decision.Enabled)

	case router.ActionRemoveProvider:
		return a.removeProvider(ctx, decision.ProviderID, decision.DeleteFiles)

	case router.ActionInstallProviderDeps:
		return a.installDeps(ctx, decision.ProviderID)

	default:
		a.logger.Error("dispatch reached with unvalidated action", "action", decision.Action)
		return "I wasn't able to work out how to handle that. Could you rephrase the request?"
	}
}

func (a *Orchestrator) invokeTool(ctx context.Context, decision router.Decision) string {
	if len(decision.MissingParams) > 0 {
		return fmt.Sprintf(
			"To run %s on %s I still need: %s. What should I use?",
			decision.ToolName, decision.ProviderID, strings.Join(decision.MissingParams, ", "),
		)
	}

	a.logger.Info("invoking tool", "provider", decision.ProviderID, "tool", decision.ToolName)
	result, err := a.executor.Execute(ctx, decision.ProviderID, decision.ToolName, decision.Args)
	if err != nil {
		return a.describeToolFailure(decision, err)
	}
	if result.IsError {
		return fmt.Sprintf("The %s tool reported an error: %s", decision.ToolName, result.Content)
	}
	return a.formatToolResult(ctx, decision, result)
}

func (a *Orchestrator) describeToolFailure(decision router.Decision, err error) string {
	switch {
	case errors.Is(err, mcp.ErrProviderNotFound):
		return fmt.Sprintf("The provider %q isn't available right now. Ask me to list providers to see what is.", decision.ProviderID)
	case errors.Is(err, mcp.ErrToolNotFound):
		return fmt.Sprintf("The provider %q doesn't have a tool called %q.", decision.ProviderID, decision.ToolName)
	case errors.Is(err, mcp.ErrTransport):
		a.logger.Warn("tool transport failure", "provider", decision.ProviderID, "tool", decision.ToolName, "error", err)
		return fmt.Sprintf("I couldn't reach the %q provider. It may be broken or mid-install; you can ask me to install its dependencies or check its status.", decision.ProviderID)
	default:
		a.logger.Warn("tool call failed", "provider", decision.ProviderID, "tool", decision.ToolName, "error", err)
		return fmt.Sprintf("Running %s on %s failed: %v", decision.ToolName, decision.ProviderID, err)
	}
}

const formatResultPrompt = `The user asked: %s

The %q tool answered with this raw output:
%s

Phrase the answer for the user in one or two sentences. Keep all numbers
and values exactly as given. Respond with the text only.`

// formatToolResult asks the oracle to phrase the raw tool output
// conversationally, falling back to the raw content when it cannot.
func (a *Orchestrator) formatToolResult(ctx context.Context, decision router.Decision, result mcp.Result) string {
	content := strings.TrimSpace(result.Content)
	if content == "" {
		return fmt.Sprintf("%s completed with no output.", decision.ToolName)
	}

	lastUser := ""
	for _, turn := range a.memory.Recent() {
		if turn.Role == memory.RoleUser {
			lastUser = turn.Text
		}
	}

	phrased, err := a.client.Generate(ctx, fmt.Sprintf(formatResultPrompt, lastUser, decision.ToolName, content))
	if err != nil || strings.TrimSpace(phrased) == "" {
		a.logger.Debug("result phrasing unavailable, returning raw output", "error", err)
		return content
	}
	return strings.TrimSpace(phrased)
}

func (a *Orchestrator) listProviders() string {
	providers := a.registry.List()
	if len(providers) == 0 {
		return "No providers are registered yet. Ask me to build one and I'll walk you through it."
	}

	var b strings.Builder
	b.WriteString("Registered providers:\n")
	for _, p := range providers {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", p.ID, state, p.Description)
		for _, tool := range p.Tools {
			fmt.Fprintf(&b, "    %s: %s\n", tool.Name, tool.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Orchestrator) providerStatus() string {
	providers := a.registry.List()
	if len(providers) == 0 {
		return "No providers are registered yet."
	}

	var enabled, disabled []string
	for _, p := range providers {
		if p.Enabled {
			enabled = append(enabled, p.ID)
		} else {
			disabled = append(disabled, p.ID)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d provider(s) registered.", len(providers))
	if len(enabled) > 0 {
		fmt.Fprintf(&b, " Enabled: %s.", strings.Join(enabled, ", "))
	}
	if len(disabled) > 0 {
		fmt.Fprintf(&b, " Disabled: %s.", strings.Join(disabled, ", "))
	}
	return b.String()
}

func (a *Orchestrator) setProviderEnabled(ctx context.Context, id string, enabled bool) string {
	if err := a.registry.SetEnabled(ctx, id, enabled); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Sprintf("I don't know a provider called %q.", id)
		}
		a.logger.Warn("set enabled failed", "provider", id, "error", err)
		return fmt.Sprintf("I couldn't update %q: %v", id, err)
	}
	if enabled {
		return fmt.Sprintf("Provider %q is enabled.", id)
	}
	return fmt.Sprintf("Provider %q is disabled. Its tools won't be used until you enable it again.", id)
}

func (a *Orchestrator) removeProvider(ctx context.Context, id string, deleteFiles bool) string {
	if err := a.registry.Remove(ctx, id, deleteFiles); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Sprintf("I don't know a provider called %q.", id)
		}
		a.logger.Warn("remove failed", "provider", id, "error", err)
		return fmt.Sprintf("I couldn't remove %q: %v", id, err)
	}
	if deleteFiles {
		return fmt.Sprintf("Provider %q is removed and its files are deleted.", id)
	}
	return fmt.Sprintf("Provider %q is removed from the catalog. Its files are untouched.", id)
}

func (a *Orchestrator) installDeps(ctx context.Context, id string) string {
	a.logger.Info("installing provider dependencies", "provider", id)
	output, err := a.registry.InstallDependencies(ctx, id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Sprintf("I don't know a provider called %q.", id)
		}
		a.logger.Warn("install failed", "provider", id, "error", err)
		return fmt.Sprintf("Installing dependencies for %q failed: %v", id, err)
	}
	if strings.TrimSpace(output) == "" {
		return fmt.Sprintf("Dependencies for %q are installed.", id)
	}
	return fmt.Sprintf("Dependencies for %q are installed:\n%s", id, strings.TrimSpace(output))
}
