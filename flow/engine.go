package flow

import (
	"context"
	"fmt"
	"log/slog"
)

// Engine dispatches turns to the active flow's handler and enforces the
// forward-only stage discipline around it.
type Engine struct {
	flows  *Registry
	logger *slog.Logger
}

// NewEngine creates an engine over the given flow registry.
func NewEngine(flows *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{flows: flows, logger: logger}
}

// Run feeds one user turn to the flow named by state. The handler may
// advance the stage; a handler error leaves the stage where it was so
// the user can retry the same step. A completed flow answers with a
// closing note and stays complete.
func (e *Engine) Run(ctx context.Context, state *State, userText string) (string, error) {
	handler, ok := e.flows.Get(state.FlowID)
	if !ok {
		// The flow was unregistered mid-conversation. Terminate the
		// state so the next turn routes normally.
		state.Stage = StageComplete
		return "", fmt.Errorf("flow %q is no longer available", state.FlowID)
	}

	if state.Stage == StageComplete {
		return "That flow has already finished. Ask me anything else.", nil
	}

	before := state.Stage
	reply, err := handler.Handle(ctx, state, userText)
	if err != nil {
		e.logger.Warn("flow turn failed", "flow", state.FlowID, "stage", before, "error", err)
		return "", err
	}

	if stageOrder[state.Stage] < stageOrder[before] {
		// Handlers must not rewind. Pin the stage rather than trusting
		// the regression.
		e.logger.Warn("flow handler attempted stage regression", "flow", state.FlowID, "from", before, "to", state.Stage)
		state.Stage = before
	}

	e.logger.Debug("flow turn handled", "flow", state.FlowID, "from", before, "to", state.Stage)
	return reply, nil
}
