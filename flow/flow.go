// Package flow runs multi-turn guided interactions.
//
// A flow is a staged state machine that owns the conversation until it
// completes: once a turn enters an active flow, the normal routing path
// is bypassed and the flow's handler consumes every subsequent turn.
// Stages only move forward. The complete stage is absorbing.
package flow

import (
	"context"
	"sort"
	"sync"
)

// Stage identifies a position in a flow's state machine.
type Stage string

const (
	// StageIntro greets the user and frames the flow.
	StageIntro Stage = "intro"
	// StageGathering collects requirements over as many turns as needed.
	StageGathering Stage = "gathering_requirements"
	// StageCodeGeneration produces the server implementation.
	StageCodeGeneration Stage = "code_generation"
	// StageSaveCode persists the generated files.
	StageSaveCode Stage = "save_code"
	// StageRegisterServer registers the new provider in the catalog.
	StageRegisterServer Stage = "register_server"
	// StageComplete is terminal. A completed flow never reactivates.
	StageComplete Stage = "complete"
)

// stageOrder fixes the forward ordering of stages. Transitions may only
// move to a later stage, never back.
var stageOrder = map[Stage]int{
	StageIntro:          0,
	StageGathering:      1,
	StageCodeGeneration: 2,
	StageSaveCode:       3,
	StageRegisterServer: 4,
	StageComplete:       5,
}

// State is one conversation's progress through a flow. It is owned by a
// single conversation and mutated only by the flow's handler.
type State struct {
	FlowID string
	Stage  Stage
	Params map[string]string
}

// NewState creates flow state positioned at the intro stage.
func NewState(flowID string) *State {
	return &State{
		FlowID: flowID,
		Stage:  StageIntro,
		Params: make(map[string]string),
	}
}

// Active reports whether the state still owns the conversation.
func (s *State) Active() bool {
	return s != nil && s.FlowID != "" && s.Stage != StageComplete
}

// Advance moves to a later stage. Backward and same-stage transitions
// are ignored, and nothing leaves the complete stage.
func (s *State) Advance(to Stage) {
	if stageOrder[to] > stageOrder[s.Stage] {
		s.Stage = to
	}
}

// Handler drives one flow. Handle consumes a user turn, may mutate the
// state's stage and params, and returns the reply text.
type Handler interface {
	ID() string
	Description() string
	Handle(ctx context.Context, state *State, userText string) (string, error)
}

// Registry holds the available flows, keyed by id. Registering an id
// twice replaces the earlier handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty flow registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces a flow.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.ID()] = h
}

// Get returns the flow with the given id.
func (r *Registry) Get(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// List returns all registered flows sorted by id.
func (r *Registry) List() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handlers := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	sort.Slice(handlers, func(i, j int) bool { return handlers[i].ID() < handlers[j].ID() })
	return handlers
}
