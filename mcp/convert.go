// Conversions between MCP protocol types and catalog descriptors.

package mcp

import (
	"sort"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"switchboard/registry"
)

// toolsFromMCP converts a live tools/list result into catalog
// descriptors.
func toolsFromMCP(tools []mcptypes.Tool) []registry.ToolDescriptor {
	out := make([]registry.ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, registry.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  parametersFromSchema(t.InputSchema),
		})
	}
	return out
}

// parametersFromSchema flattens a JSON schema's top-level properties
// into parameter descriptors, sorted by name for deterministic prompt
// rendering.
func parametersFromSchema(schema mcptypes.ToolInputSchema) []registry.ToolParameter {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]registry.ToolParameter, 0, len(names))
	for _, name := range names {
		paramType := "string"
		description := ""
		if prop, ok := schema.Properties[name].(map[string]any); ok {
			if t, ok := prop["type"].(string); ok && t != "" {
				paramType = t
			}
			if d, ok := prop["description"].(string); ok {
				description = d
			}
		}
		params = append(params, registry.ToolParameter{
			Name:        name,
			Type:        paramType,
			Description: description,
			Required:    required[name],
		})
	}
	return params
}

// resultFromCall flattens a protocol call result into a Result,
// concatenating text content blocks.
func resultFromCall(raw *mcptypes.CallToolResult) Result {
	if raw == nil {
		return Result{}
	}

	var b strings.Builder
	for _, content := range raw.Content {
		if text, ok := content.(mcptypes.TextContent); ok {
			b.WriteString(text.Text)
		}
	}

	return Result{
		Content: b.String(),
		IsError: raw.IsError,
	}
}
