// Package router classifies user requests into typed decisions.
//
// The oracle's output is untrusted free text. The router's job is
// narrowing it into a closed, resolvable decision space: every decision
// is validated against the live provider catalog before anyone acts on
// it, and any parse or validation failure degrades to a recoverable
// direct-answer fallback instead of an error.
package router

// Action discriminates the decision union.
type Action string

const (
	// ActionDirectAnswer answers the user directly with text.
	ActionDirectAnswer Action = "direct_answer"
	// ActionInvokeTool invokes a named tool on a provider.
	ActionInvokeTool Action = "invoke_tool"
	// ActionListProviders lists the registered providers.
	ActionListProviders Action = "list_providers"
	// ActionProviderStatus reports provider enablement status.
	ActionProviderStatus Action = "provider_status"
	// ActionSetProviderEnabled enables or disables a provider.
	ActionSetProviderEnabled Action = "set_provider_enabled"
	// ActionRemoveProvider removes a provider from the catalog.
	ActionRemoveProvider Action = "remove_provider"
	// ActionInstallProviderDeps runs a provider's install step.
	ActionInstallProviderDeps Action = "install_provider_deps"
)

// Decision is the validated, typed outcome of one routing pass. Only
// the fields relevant to Action are populated.
type Decision struct {
	Action Action

	// Answer is the response text for a direct answer.
	Answer string

	// ProviderID targets a provider for invoke_tool and the
	// per-provider management actions.
	ProviderID string

	// ToolName and Args describe an invoke_tool call.
	ToolName string
	Args     map[string]any

	// MissingParams lists required tool parameters the user has not
	// supplied. A non-empty list means the call must not execute; the
	// caller asks for the values instead.
	MissingParams []string

	// Enabled is the target state for set_provider_enabled.
	Enabled bool

	// DeleteFiles requests deletion of the provider's files on
	// remove_provider.
	DeleteFiles bool
}

// wireDecision is the JSON shape the oracle is asked to produce.
// Decoded leniently; validation happens afterwards.
type wireDecision struct {
	Action      string         `json:"action"`
	Answer      string         `json:"answer,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	DeleteFiles bool           `json:"delete_files,omitempty"`
}
