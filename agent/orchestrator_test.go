package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"switchboard/flow"
	"switchboard/llm"
	"switchboard/mcp"
	"switchboard/memory"
	"switchboard/registry"
)

// scriptedOracle returns canned responses in order.
type scriptedOracle struct {
	responses []string
	err       error
	calls     int
}

func (o *scriptedOracle) Name() string  { return "scripted" }
func (o *scriptedOracle) Model() string { return "scripted-1" }

func (o *scriptedOracle) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	return o.ChatWithFormat(ctx, messages, nil)
}

func (o *scriptedOracle) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, _ *llm.ResponseFormat) (llm.Response, error) {
	if o.err != nil {
		return llm.Response{}, o.err
	}
	if o.calls >= len(o.responses) {
		return llm.Response{}, errors.New("script exhausted")
	}
	response := o.responses[o.calls]
	o.calls++
	return llm.Response{Content: response}, nil
}

var _ llm.Provider = (*scriptedOracle)(nil)

// fakeExecutor returns a fixed result or error and records invocations.
type fakeExecutor struct {
	result mcp.Result
	err    error
	calls  int
}

func (e *fakeExecutor) Execute(_ context.Context, provider, tool string, args map[string]any) (mcp.Result, error) {
	e.calls++
	if e.err != nil {
		return mcp.Result{}, e.err
	}
	return e.result, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func calculatorRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(nil, quietLogger())
	err := reg.Upsert(context.Background(), registry.ProviderDescriptor{
		ID:          "calculator",
		Description: "basic arithmetic",
		Command:     "calculator-server",
		Enabled:     true,
		Tools: []registry.ToolDescriptor{
			{
				Name:        "add",
				Description: "add two numbers",
				Parameters: []registry.ToolParameter{
					{Name: "a", Type: "number", Required: true},
					{Name: "b", Type: "number", Required: true},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("seed registry: %v", err)
	}
	return reg
}

func newOrchestrator(t *testing.T, oracle *scriptedOracle, executor ToolExecutor, flows *flow.Registry) *Orchestrator {
	t.Helper()
	if flows == nil {
		flows = flow.NewRegistry()
	}
	return New(llm.NewClient(oracle, 0), calculatorRegistry(t), executor, flows, quietLogger())
}

func TestHandleTurnDirectAnswer(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"direct_answer","answer":"Paris."}`,
	}}
	a := newOrchestrator(t, oracle, &fakeExecutor{}, nil)

	reply, err := a.HandleTurn(context.Background(), "capital of France?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply != "Paris." {
		t.Errorf("reply = %q", reply)
	}
	if a.Memory().Len() != 2 {
		t.Errorf("expected user + assistant turns, got %d", a.Memory().Len())
	}
}

func TestHandleTurnInvokesToolAndPhrasesResult(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":5,"b":3}}`,
		"5 plus 3 is 8.",
	}}
	executor := &fakeExecutor{result: mcp.Result{Content: "8"}}
	a := newOrchestrator(t, oracle, executor, nil)

	reply, err := a.HandleTurn(context.Background(), "add 5 and 3")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if executor.calls != 1 {
		t.Fatalf("executor calls = %d", executor.calls)
	}
	if reply != "5 plus 3 is 8." {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleTurnRawResultWhenPhrasingFails(t *testing.T) {
	// Script has only the routing decision; the phrasing call exhausts it.
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":5,"b":3}}`,
	}}
	executor := &fakeExecutor{result: mcp.Result{Content: "8"}}
	a := newOrchestrator(t, oracle, executor, nil)

	reply, err := a.HandleTurn(context.Background(), "add 5 and 3")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if reply != "8" {
		t.Errorf("expected raw tool output fallback, got %q", reply)
	}
}

func TestHandleTurnMissingParamsAsksInsteadOfExecuting(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{}}`,
	}}
	executor := &fakeExecutor{}
	a := newOrchestrator(t, oracle, executor, nil)

	reply, err := a.HandleTurn(context.Background(), "add two numbers")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if executor.calls != 0 {
		t.Fatal("tool must not execute with missing required params")
	}
	if !strings.Contains(reply, "a") || !strings.Contains(reply, "b") {
		t.Errorf("reply should name the missing params, got %q", reply)
	}
}

func TestHandleTurnToolErrorsAreConversational(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"provider gone", fmt.Errorf("%w: calculator", mcp.ErrProviderNotFound), "isn't available"},
		{"tool gone", fmt.Errorf("%w: add", mcp.ErrToolNotFound), "doesn't have a tool"},
		{"transport", fmt.Errorf("%w: connect: refused", mcp.ErrTransport), "couldn't reach"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &scriptedOracle{responses: []string{
				`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":1,"b":2}}`,
			}}
			a := newOrchestrator(t, oracle, &fakeExecutor{err: tt.err}, nil)

			reply, err := a.HandleTurn(context.Background(), "add 1 and 2")
			if err != nil {
				t.Fatalf("tool failures must not fail the turn: %v", err)
			}
			if !strings.Contains(reply, tt.want) {
				t.Errorf("reply %q missing %q", reply, tt.want)
			}
		})
	}
}

func TestHandleTurnRemoteToolError(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":1,"b":0}}`,
	}}
	executor := &fakeExecutor{result: mcp.Result{Content: "division by zero", IsError: true}}
	a := newOrchestrator(t, oracle, executor, nil)

	reply, err := a.HandleTurn(context.Background(), "divide")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(reply, "division by zero") {
		t.Errorf("remote error content should be surfaced, got %q", reply)
	}
}

func TestHandleTurnManagementOps(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"list", `{"action":"list_providers"}`, "calculator"},
		{"status", `{"action":"provider_status"}`, "Enabled: calculator"},
		{"disable", `{"action":"set_provider_enabled","provider":"calculator","enabled":false}`, "disabled"},
		{"unknown target", `{"action":"set_provider_enabled","provider":"nope","enabled":true}`, "don't know a provider"},
		{"remove", `{"action":"remove_provider","provider":"calculator","delete_files":false}`, "removed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &scriptedOracle{responses: []string{tt.response}}
			a := newOrchestrator(t, oracle, &fakeExecutor{}, nil)

			reply, err := a.HandleTurn(context.Background(), "manage")
			if err != nil {
				t.Fatalf("HandleTurn: %v", err)
			}
			if !strings.Contains(reply, tt.want) {
				t.Errorf("reply %q missing %q", reply, tt.want)
			}
		})
	}
}

func TestHandleTurnOracleDownFailsTurn(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("connection refused")}
	a := newOrchestrator(t, oracle, &fakeExecutor{}, nil)

	if _, err := a.HandleTurn(context.Background(), "hi"); err == nil {
		t.Fatal("oracle transport failure must fail the turn")
	}
	// The user turn is logged; no assistant turn was produced.
	turns := a.Memory().Recent()
	if len(turns) != 1 || turns[0].Role != memory.RoleUser {
		t.Errorf("memory = %+v", turns)
	}
}

// togglingFlow stays active for one handled turn, then completes.
type togglingFlow struct {
	id      string
	handled int
}

func (f *togglingFlow) ID() string          { return f.id }
func (f *togglingFlow) Description() string { return "test flow" }
func (f *togglingFlow) Handle(_ context.Context, state *flow.State, _ string) (string, error) {
	f.handled++
	if f.handled >= 2 {
		state.Advance(flow.StageComplete)
		return "all done", nil
	}
	state.Advance(flow.StageGathering)
	return "tell me more", nil
}

func TestHandleTurnFlowOwnsConversation(t *testing.T) {
	flows := flow.NewRegistry()
	handler := &togglingFlow{id: "builder"}
	flows.Register(handler)

	// Turn 1 consults the flow router; turns 2 goes straight to the
	// active flow. Turn 3 consults the flow router again (no match) and
	// routes normally.
	oracle := &scriptedOracle{responses: []string{
		`{"flow":"builder"}`,
		`{"flow":""}`,
		`{"action":"direct_answer","answer":"Paris."}`,
	}}
	a := newOrchestrator(t, oracle, &fakeExecutor{}, flows)

	reply, err := a.HandleTurn(context.Background(), "build me a provider")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if reply != "tell me more" || !a.InFlow() {
		t.Fatalf("flow should be active, reply %q", reply)
	}

	reply, err = a.HandleTurn(context.Background(), "it rolls dice")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if reply != "all done" {
		t.Fatalf("reply = %q", reply)
	}
	if a.InFlow() {
		t.Fatal("completed flow must release the conversation")
	}
	if handler.handled != 2 {
		t.Errorf("handler turns = %d", handler.handled)
	}

	reply, err = a.HandleTurn(context.Background(), "capital of France?")
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if reply != "Paris." {
		t.Errorf("normal routing should resume, got %q", reply)
	}
}

func TestHandleTurnFlowErrorIsConversational(t *testing.T) {
	flows := flow.NewRegistry()
	flows.Register(&failingFlow{id: "builder"})

	oracle := &scriptedOracle{responses: []string{`{"flow":"builder"}`}}
	a := newOrchestrator(t, oracle, &fakeExecutor{}, flows)

	reply, err := a.HandleTurn(context.Background(), "build me a provider")
	if err != nil {
		t.Fatalf("flow step failures must not fail the turn: %v", err)
	}
	if !strings.Contains(reply, "problem") {
		t.Errorf("reply = %q", reply)
	}
	if !a.InFlow() {
		t.Error("flow should stay active for a retry")
	}
}

type failingFlow struct{ id string }

func (f *failingFlow) ID() string          { return f.id }
func (f *failingFlow) Description() string { return "always fails" }
func (f *failingFlow) Handle(context.Context, *flow.State, string) (string, error) {
	return "", errors.New("disk full")
}

func TestReset(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"direct_answer","answer":"hi"}`,
	}}
	a := newOrchestrator(t, oracle, &fakeExecutor{}, nil)

	if _, err := a.HandleTurn(context.Background(), "hello"); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	a.Reset()
	if a.Memory().Len() != 0 || a.InFlow() {
		t.Error("reset must clear memory and flow state")
	}
}
