package router

import (
	"fmt"
	"strings"

	"switchboard/registry"
)

const decisionPrompt = `You are the routing brain of a tool-using assistant. Decide how to
handle the user's latest request and respond with a single JSON object,
nothing else.

Actions:
- "direct_answer": answer from your own knowledge. Fields: "answer".
- "invoke_tool": call a tool on a registered provider. Fields:
  "provider", "tool", "args" (object mapping parameter names to values).
  Only choose tools listed in the catalog below. If the user has not
  supplied a required parameter, omit it from "args"; do not invent
  values.
- "list_providers": the user asks which providers or tools exist.
- "provider_status": the user asks whether providers are enabled.
- "set_provider_enabled": enable or disable a provider. Fields:
  "provider", "enabled" (boolean).
- "remove_provider": unregister a provider. Fields: "provider",
  "delete_files" (boolean, true only if the user asks to delete its
  files too).
- "install_provider_deps": install a provider's dependencies. Fields:
  "provider".

Provider catalog:
%s

Recent conversation:
%s

User request: %s

JSON decision:`

// renderPrompt assembles the classification prompt from the provider
// catalog, recent history, and the user's request.
func renderPrompt(providers []registry.ProviderDescriptor, history, userText string) string {
	if history == "" {
		history = "(none)"
	}
	return fmt.Sprintf(decisionPrompt, renderCatalog(providers), history, userText)
}

// renderCatalog lists providers and their tools in a compact form the
// oracle can match against.
func renderCatalog(providers []registry.ProviderDescriptor) string {
	if len(providers) == 0 {
		return "(no providers registered)"
	}

	var b strings.Builder
	for _, p := range providers {
		fmt.Fprintf(&b, "- %s: %s\n", p.ID, p.Description)
		for _, tool := range p.Tools {
			fmt.Fprintf(&b, "  - tool %q: %s", tool.Name, tool.Description)
			if len(tool.Parameters) > 0 {
				b.WriteString(" (params:")
				for _, param := range tool.Parameters {
					b.WriteString(" ")
					b.WriteString(param.Name)
					b.WriteString(" ")
					b.WriteString(param.Type)
					if param.Required {
						b.WriteString(" required")
					}
					b.WriteString(";")
				}
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
