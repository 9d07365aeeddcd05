// Package registry manages the catalog of tool providers.
//
// A provider is an external MCP server reachable either by spawning a
// command and speaking over stdio, or by connecting to a server-sent
// event stream URL. The registry owns the mutable catalog and its
// enable/disable/remove/install lifecycle; the router reads only the
// enabled subset.
package registry

import "fmt"

// ToolParameter describes one parameter of a provider tool.
type ToolParameter struct {
	Name        string `json:"name" toml:"name"`
	Type        string `json:"type" toml:"type"`
	Description string `json:"description" toml:"description"`
	Required    bool   `json:"required" toml:"required"`
}

// ToolDescriptor describes a callable tool on a provider. Tool names are
// unique within their provider. Descriptors come from static catalog
// entries or from live tools/list introspection at session-open time.
type ToolDescriptor struct {
	Name        string          `json:"name" toml:"name"`
	Description string          `json:"description" toml:"description"`
	Parameters  []ToolParameter `json:"parameters" toml:"params"`
}

// RequiredParameters returns the names of all required parameters.
func (t ToolDescriptor) RequiredParameters() []string {
	var names []string
	for _, p := range t.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// ProviderDescriptor describes one tool provider. Identity key is ID;
// upserting the same ID replaces the descriptor in place.
type ProviderDescriptor struct {
	ID          string           `json:"id" toml:"id"`
	DisplayName string           `json:"display_name" toml:"display_name"`
	Description string           `json:"description" toml:"description"`
	Command     string           `json:"command,omitempty" toml:"command"`
	Args        []string         `json:"args,omitempty" toml:"args"`
	ServerURL   string           `json:"server_url,omitempty" toml:"server_url"`
	Tools       []ToolDescriptor `json:"tools" toml:"tools"`
	Enabled     bool             `json:"enabled" toml:"enabled"`

	// Path is the directory owning a file-backed provider's source,
	// if any. Removal with deleteFiles deletes this directory.
	Path string `json:"path,omitempty" toml:"path"`

	// InstallCommand, if set, is run in Path to install the
	// provider's dependencies.
	InstallCommand string   `json:"install_command,omitempty" toml:"install_command"`
	InstallArgs    []string `json:"install_args,omitempty" toml:"install_args"`
}

// IsRemote reports whether the provider is reached over a stream URL
// rather than a spawned process.
func (d ProviderDescriptor) IsRemote() bool {
	return d.ServerURL != ""
}

// Tool returns the named tool descriptor.
func (d ProviderDescriptor) Tool(name string) (ToolDescriptor, bool) {
	for _, t := range d.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDescriptor{}, false
}

// Validate checks the descriptor is well formed enough to register.
func (d ProviderDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("provider descriptor missing id")
	}
	if d.Command == "" && d.ServerURL == "" {
		return fmt.Errorf("provider %q has neither a command nor a server URL", d.ID)
	}
	seen := make(map[string]bool, len(d.Tools))
	for _, t := range d.Tools {
		if t.Name == "" {
			return fmt.Errorf("provider %q declares a tool with no name", d.ID)
		}
		if seen[t.Name] {
			return fmt.Errorf("provider %q declares duplicate tool %q", d.ID, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
