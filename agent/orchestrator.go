// Package agent owns the per-conversation turn loop.
//
// The Orchestrator ties the pieces together: conversation memory, the
// flow router and engine, the query router, the tool executor, and the
// provider registry. One Orchestrator serves one conversation.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"switchboard/flow"
	"switchboard/llm"
	"switchboard/mcp"
	"switchboard/memory"
	"switchboard/registry"
	"switchboard/router"
)

// ToolExecutor executes one tool call on a provider. *mcp.Executor
// satisfies it.
type ToolExecutor interface {
	Execute(ctx context.Context, providerID, toolName string, args map[string]any) (mcp.Result, error)
}

// Orchestrator routes each user turn to a direct answer, a tool
// invocation, a management operation, or an active guided flow.
type Orchestrator struct {
	sessionID  string
	memory     *memory.Log
	registry   *registry.Registry
	executor   ToolExecutor
	router     *router.Router
	flowRouter *flow.Router
	flowEngine *flow.Engine
	client     *llm.Client
	flowState  *flow.State
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	memoryCapacity int
	historyWindow  int
}

// WithMemoryCapacity bounds the conversation log.
func WithMemoryCapacity(capacity int) Option {
	return func(o *options) { o.memoryCapacity = capacity }
}

// WithHistoryWindow sets how many recent turns routing prompts carry.
func WithHistoryWindow(window int) Option {
	return func(o *options) { o.historyWindow = window }
}

// New creates an orchestrator for a fresh conversation.
func New(client *llm.Client, reg *registry.Registry, executor ToolExecutor, flows *flow.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)

	return &Orchestrator{
		sessionID:  sessionID,
		memory:     memory.NewLog(o.memoryCapacity),
		registry:   reg,
		executor:   executor,
		router:     router.New(client, reg, o.historyWindow, logger),
		flowRouter: flow.NewRouter(client, flows, logger),
		flowEngine: flow.NewEngine(flows, logger),
		client:     client,
		logger:     logger,
	}
}

// SessionID returns the conversation's id.
func (a *Orchestrator) SessionID() string { return a.sessionID }

// Memory returns the conversation log.
func (a *Orchestrator) Memory() *memory.Log { return a.memory }

// InFlow reports whether a guided flow currently owns the conversation.
func (a *Orchestrator) InFlow() bool { return a.flowState.Active() }

// Reset clears the conversation log and abandons any active flow.
func (a *Orchestrator) Reset() {
	a.memory.Clear()
	a.flowState = nil
}

// HandleTurn processes one user message and returns the reply.
//
// An active flow consumes the turn outright. Otherwise the flow router
// gets first refusal, then the query router classifies the request and
// the decision is dispatched. Every fallible step short of oracle
// transport failure degrades to a conversational reply; an error return
// means the turn could not be processed at all.
func (a *Orchestrator) HandleTurn(ctx context.Context, userText string) (string, error) {
	a.memory.Append(memory.UserTurn(userText))

	reply, err := a.processTurn(ctx, userText)
	if err != nil {
		return "", err
	}

	a.memory.Append(memory.AssistantTurn(reply))
	return reply, nil
}

func (a *Orchestrator) processTurn(ctx context.Context, userText string) (string, error) {
	if a.flowState.Active() {
		return a.runFlow(ctx, userText)
	}

	state, matched, err := a.flowRouter.Match(ctx, userText)
	if err != nil {
		return "", err
	}
	if matched {
		a.logger.Info("entering flow", "flow", state.FlowID)
		a.flowState = state
		return a.runFlow(ctx, userText)
	}

	decision, err := a.router.Decide(ctx, userText, a.memory)
	if err != nil {
		return "", err
	}
	return a.dispatch(ctx, decision), nil
}

// runFlow feeds the turn to the active flow. Flow errors are
// conversational: the stage holds, so the user can retry or walk away.
func (a *Orchestrator) runFlow(ctx context.Context, userText string) (string, error) {
	reply, err := a.flowEngine.Run(ctx, a.flowState, userText)
	if err != nil {
		a.logger.Warn("flow turn failed", "flow", a.flowState.FlowID, "stage", a.flowState.Stage, "error", err)
		return fmt.Sprintf("I ran into a problem with that step: %v. Tell me to try again when you're ready.", err), nil
	}
	if !a.flowState.Active() {
		a.flowState = nil
	}
	return reply, nil
}
