package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"switchboard/internal/jsonx"
	"switchboard/llm"
	"switchboard/memory"
	"switchboard/registry"
)

// DefaultHistoryWindow is how many recent turns the classification
// prompt carries by default.
const DefaultHistoryWindow = 10

// Router turns a user request into a validated Decision by asking the
// oracle to classify it against the enabled provider catalog.
type Router struct {
	client        *llm.Client
	registry      *registry.Registry
	historyWindow int
	logger        *slog.Logger
}

// New creates a router. A non-positive historyWindow falls back to
// DefaultHistoryWindow.
func New(client *llm.Client, reg *registry.Registry, historyWindow int, logger *slog.Logger) *Router {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		client:        client,
		registry:      reg,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Decide classifies userText into a Decision.
//
// Oracle transport failure is the only error path; everything the
// oracle gets wrong, from malformed JSON to references to providers
// that do not exist, degrades to a direct-answer fallback so a single
// bad classification never poisons the turn.
func (r *Router) Decide(ctx context.Context, userText string, log *memory.Log) (Decision, error) {
	enabled := r.registry.Enabled()
	prompt := renderPrompt(enabled, log.Render(r.historyWindow), userText)

	raw, err := r.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return Decision{}, fmt.Errorf("oracle classification failed: %w", err)
	}

	wire, err := jsonx.Decode[wireDecision](raw)
	if err != nil {
		r.logger.Warn("routing decision unparseable, falling back to direct answer", "error", err)
		return r.fallback(raw), nil
	}

	decision, ok := r.validate(wire, enabled)
	if !ok {
		return r.fallback(raw), nil
	}
	return decision, nil
}

// validate narrows a wire decision into a typed one, checking every
// reference against the live enabled catalog.
func (r *Router) validate(wire wireDecision, enabled []registry.ProviderDescriptor) (Decision, bool) {
	switch Action(wire.Action) {
	case ActionDirectAnswer:
		if strings.TrimSpace(wire.Answer) == "" {
			r.logger.Warn("direct answer decision carries no answer text")
			return Decision{}, false
		}
		return Decision{Action: ActionDirectAnswer, Answer: wire.Answer}, true

	case ActionInvokeTool:
		return r.validateInvoke(wire, enabled)

	case ActionListProviders:
		return Decision{Action: ActionListProviders}, true

	case ActionProviderStatus:
		return Decision{Action: ActionProviderStatus}, true

	case ActionSetProviderEnabled:
		if wire.Provider == "" || wire.Enabled == nil {
			r.logger.Warn("enable/disable decision missing provider or target state")
			return Decision{}, false
		}
		return Decision{
			Action:     ActionSetProviderEnabled,
			ProviderID: wire.Provider,
			Enabled:    *wire.Enabled,
		}, true

	case ActionRemoveProvider:
		if wire.Provider == "" {
			r.logger.Warn("remove decision missing provider")
			return Decision{}, false
		}
		return Decision{
			Action:      ActionRemoveProvider,
			ProviderID:  wire.Provider,
			DeleteFiles: wire.DeleteFiles,
		}, true

	case ActionInstallProviderDeps:
		if wire.Provider == "" {
			r.logger.Warn("install decision missing provider")
			return Decision{}, false
		}
		return Decision{Action: ActionInstallProviderDeps, ProviderID: wire.Provider}, true

	default:
		r.logger.Warn("unknown routing action", "action", wire.Action)
		return Decision{}, false
	}
}

func (r *Router) validateInvoke(wire wireDecision, enabled []registry.ProviderDescriptor) (Decision, bool) {
	var provider *registry.ProviderDescriptor
	for i := range enabled {
		if enabled[i].ID == wire.Provider {
			provider = &enabled[i]
			break
		}
	}
	if provider == nil {
		r.logger.Warn("decision names unknown or disabled provider", "provider", wire.Provider)
		return Decision{}, false
	}

	tool, ok := provider.Tool(wire.Tool)
	if !ok && len(provider.Tools) > 0 {
		r.logger.Warn("decision names unknown tool", "provider", wire.Provider, "tool", wire.Tool)
		return Decision{}, false
	}
	if wire.Tool == "" {
		r.logger.Warn("invoke decision missing tool name", "provider", wire.Provider)
		return Decision{}, false
	}

	args := wire.Args
	if args == nil {
		args = make(map[string]any)
	}

	return Decision{
		Action:        ActionInvokeTool,
		ProviderID:    wire.Provider,
		ToolName:      wire.Tool,
		Args:          args,
		MissingParams: missingParameters(tool, args),
	}, true
}

// missingParameters returns the required parameter names absent from
// args. An explicit null or empty string counts as absent.
func missingParameters(tool registry.ToolDescriptor, args map[string]any) []string {
	var missing []string
	for _, name := range tool.RequiredParameters() {
		value, present := args[name]
		if !present || value == nil {
			missing = append(missing, name)
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// fallback builds the direct-answer decision used when the oracle's
// output cannot be trusted. If the raw response reads like prose it is
// salvaged as the answer; otherwise a generic clarification is used.
func (r *Router) fallback(raw string) Decision {
	return Decision{Action: ActionDirectAnswer, Answer: salvageAnswer(raw)}
}

const clarificationAnswer = "I wasn't able to work out how to handle that. Could you rephrase the request?"

func salvageAnswer(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" || strings.ContainsAny(text, "{}") || len(text) > 400 {
		return clarificationAnswer
	}
	return text
}
