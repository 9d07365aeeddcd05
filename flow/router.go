package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"switchboard/internal/jsonx"
	"switchboard/llm"
)

const matchPrompt = `Decide whether the user's request should start one of the guided flows
below. Respond with a single JSON object:
{"flow": "<flow id>", "params": {}} to start a flow, or {"flow": ""} for
everything else. "params" may carry details the user already gave, as
string values.

Only start a flow when the user clearly asks to do the thing the flow
does. Requests to list, inspect, enable, disable, remove, or use
existing providers and tools are NOT flow requests. When in doubt,
answer {"flow": ""}.

Flows:
%s

User request: %s

JSON:`

// Router decides whether a fresh turn should enter a guided flow. It
// only runs when no flow is active; an active flow owns its turns
// without re-classification.
type Router struct {
	client *llm.Client
	flows  *Registry
	logger *slog.Logger
}

// NewRouter creates a flow router over the given flow registry.
func NewRouter(client *llm.Client, flows *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{client: client, flows: flows, logger: logger}
}

type wireMatch struct {
	Flow   string            `json:"flow"`
	Params map[string]string `json:"params,omitempty"`
}

// Match returns fresh state for the flow the request should start, if
// any, seeded with whatever params the classification extracted.
// Malformed oracle output and references to unregistered flows mean no
// match; only oracle transport failure is an error.
func (r *Router) Match(ctx context.Context, userText string) (*State, bool, error) {
	handlers := r.flows.List()
	if len(handlers) == 0 {
		return nil, false, nil
	}

	var b strings.Builder
	for _, h := range handlers {
		fmt.Fprintf(&b, "- %s: %s\n", h.ID(), h.Description())
	}

	raw, err := r.client.GenerateJSON(ctx, fmt.Sprintf(matchPrompt, strings.TrimRight(b.String(), "\n"), userText))
	if err != nil {
		return nil, false, fmt.Errorf("flow classification failed: %w", err)
	}

	match, err := jsonx.Decode[wireMatch](raw)
	if err != nil {
		r.logger.Warn("flow classification unparseable, treating as no match", "error", err)
		return nil, false, nil
	}
	if match.Flow == "" {
		return nil, false, nil
	}
	if _, ok := r.flows.Get(match.Flow); !ok {
		r.logger.Warn("flow classification names unknown flow", "flow", match.Flow)
		return nil, false, nil
	}

	state := NewState(match.Flow)
	for k, v := range match.Params {
		state.Params[k] = v
	}
	return state, true, nil
}
