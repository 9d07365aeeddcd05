package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"switchboard/llm"
	"switchboard/memory"
	"switchboard/registry"
)

// scriptedOracle returns canned responses in order, or a fixed error.
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

func newTestRouter(oracle *scriptedOracle, reg *registry.Registry) *Router {
	return New(llm.NewClient(oracle, 0), reg, 0, quietLogger())
}

func TestDecideInvokeTool(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":5,"b":3}}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "add 5 and 3", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionInvokeTool {
		t.Fatalf("expected invoke_tool, got %q", decision.Action)
	}
	if decision.ProviderID != "calculator" || decision.ToolName != "add" {
		t.Errorf("wrong target: %s/%s", decision.ProviderID, decision.ToolName)
	}
	if len(decision.MissingParams) != 0 {
		t.Errorf("unexpected missing params: %v", decision.MissingParams)
	}
	if decision.Args["a"] != float64(5) {
		t.Errorf("args lost in decoding: %v", decision.Args)
	}
}

func TestDecideDirectAnswer(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"direct_answer","answer":"The capital of France is Paris."}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "what is the capital of France?", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Fatalf("expected direct_answer, got %q", decision.Action)
	}
	if decision.Answer == "" {
		t.Error("empty answer")
	}
}

func TestDecideMissingRequiredParams(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{}}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "add two numbers for me", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionInvokeTool {
		t.Fatalf("expected invoke_tool, got %q", decision.Action)
	}
	if len(decision.MissingParams) != 2 {
		t.Fatalf("expected both params flagged missing, got %v", decision.MissingParams)
	}
	for i, want := range []string{"a", "b"} {
		if decision.MissingParams[i] != want {
			t.Errorf("missing[%d] = %q, want %q", i, decision.MissingParams[i], want)
		}
	}
}

func TestDecideNullAndEmptyArgsCountAsMissing(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":null,"b":"  "}}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "add them", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(decision.MissingParams) != 2 {
		t.Errorf("null and blank values should count as missing, got %v", decision.MissingParams)
	}
}

func TestDecideUnknownProviderFallsBack(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"weather","tool":"forecast","args":{}}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "weather in Lagos", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Fatalf("unknown provider must fall back to direct_answer, got %q", decision.Action)
	}
}

func TestDecideDisabledProviderFallsBack(t *testing.T) {
	reg := calculatorRegistry(t)
	if err := reg.SetEnabled(context.Background(), "calculator", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"add","args":{"a":1,"b":2}}`,
	}}
	r := newTestRouter(oracle, reg)

	decision, err := r.Decide(context.Background(), "add 1 and 2", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Errorf("disabled provider must not be invokable, got %q", decision.Action)
	}
}

func TestDecideUnknownToolFallsBack(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"invoke_tool","provider":"calculator","tool":"subtract","args":{}}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "subtract", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Errorf("unknown tool must fall back, got %q", decision.Action)
	}
}

func TestDecideMalformedJSONFallsBack(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`I think you should use the calculator {"action": "invoke_tool", ...`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "hm", memory.NewLog(0))
	if err != nil {
		t.Fatalf("malformed oracle output must not be an error: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Fatalf("expected fallback direct_answer, got %q", decision.Action)
	}
	if decision.Answer == "" {
		t.Error("fallback must still answer the user")
	}
}

func TestDecideProseResponseSalvaged(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		"Paris is the capital of France.",
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "capital of France?", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Answer != "Paris is the capital of France." {
		t.Errorf("plain prose should be salvaged as the answer, got %q", decision.Answer)
	}
}

func TestDecideUnknownActionFallsBack(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"launch_rocket"}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "go", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Errorf("unknown action must fall back, got %q", decision.Action)
	}
}

func TestDecideManagementActions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Decision
	}{
		{
			name:     "list",
			response: `{"action":"list_providers"}`,
			want:     Decision{Action: ActionListProviders},
		},
		{
			name:     "status",
			response: `{"action":"provider_status"}`,
			want:     Decision{Action: ActionProviderStatus},
		},
		{
			name:     "disable",
			response: `{"action":"set_provider_enabled","provider":"calculator","enabled":false}`,
			want:     Decision{Action: ActionSetProviderEnabled, ProviderID: "calculator", Enabled: false},
		},
		{
			name:     "remove with files",
			response: `{"action":"remove_provider","provider":"calculator","delete_files":true}`,
			want:     Decision{Action: ActionRemoveProvider, ProviderID: "calculator", DeleteFiles: true},
		},
		{
			name:     "install",
			response: `{"action":"install_provider_deps","provider":"calculator"}`,
			want:     Decision{Action: ActionInstallProviderDeps, ProviderID: "calculator"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &scriptedOracle{responses: []string{tt.response}}
			r := newTestRouter(oracle, calculatorRegistry(t))

			got, err := r.Decide(context.Background(), "manage", memory.NewLog(0))
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if got.Action != tt.want.Action {
				t.Fatalf("action = %q, want %q", got.Action, tt.want.Action)
			}
			if got.ProviderID != tt.want.ProviderID || got.Enabled != tt.want.Enabled || got.DeleteFiles != tt.want.DeleteFiles {
				t.Errorf("decision = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecideSetEnabledWithoutTargetFallsBack(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"action":"set_provider_enabled","enabled":true}`,
	}}
	r := newTestRouter(oracle, calculatorRegistry(t))

	decision, err := r.Decide(context.Background(), "enable it", memory.NewLog(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Action != ActionDirectAnswer {
		t.Errorf("management op without a target must fall back, got %q", decision.Action)
	}
}

func TestDecideOracleFailurePropagates(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("connection refused")}
	r := newTestRouter(oracle, calculatorRegistry(t))

	if _, err := r.Decide(context.Background(), "hi", memory.NewLog(0)); err == nil {
		t.Fatal("oracle transport failure must surface as an error")
	}
}

func TestDecidePromptCarriesCatalog(t *testing.T) {
	reg := calculatorRegistry(t)
	catalog := renderCatalog(reg.Enabled())
	for _, want := range []string{"calculator", "add", "a number required"} {
		if !strings.Contains(catalog, want) {
			t.Errorf("catalog missing %q:\n%s", want, catalog)
		}
	}
}
