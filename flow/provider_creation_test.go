package flow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"switchboard/llm"
	"switchboard/mcp"
	"switchboard/registry"
)

// recordingCaller records tool calls and optionally fails the first n.
type recordingCaller struct {
	calls    []recordedCall
	failNext int
}

type recordedCall struct {
	provider string
	tool     string
	args     map[string]any
}

func (c *recordingCaller) Execute(_ context.Context, provider, tool string, args map[string]any) (mcp.Result, error) {
	c.calls = append(c.calls, recordedCall{provider: provider, tool: tool, args: args})
	if c.failNext > 0 {
		c.failNext--
		return mcp.Result{}, errors.New("disk full")
	}
	return mcp.Result{Content: "ok"}, nil
}

const generationResponse = `{
  "name": "Dice Roller",
  "description": "rolls dice",
  "files": [{"path": "server.py", "content": "print('hi')"}],
  "command": "python3",
  "args": ["server.py"],
  "install_command": "",
  "install_args": [],
  "tools": [{"name": "roll", "description": "roll dice",
             "parameters": [{"name": "sides", "type": "number",
                             "description": "die sides", "required": true}]}]
}`

func newCreationFlow(t *testing.T, oracle *scriptedOracle, caller ToolCaller) (*ProviderCreation, *registry.Registry) {
	t.Helper()
	reg := registry.New(nil, quietLogger())
	f := NewProviderCreation(llm.NewClient(oracle, 0), reg, caller, "", t.TempDir(), quietLogger())
	return f, reg
}

func TestProviderCreationHappyPath(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"advance": false, "reply": "What inputs does it take?", "requirements": "a dice rolling tool"}`,
		`{"advance": true, "reply": "", "requirements": "a dice rolling tool taking the number of sides"}`,
		generationResponse,
	}}
	caller := &recordingCaller{}
	f, reg := newCreationFlow(t, oracle, caller)
	state := NewState(f.ID())

	// Intro turn advances to gathering without consulting the oracle.
	reply, err := f.Handle(context.Background(), state, "I want to build a provider")
	if err != nil {
		t.Fatalf("intro turn: %v", err)
	}
	if state.Stage != StageGathering {
		t.Fatalf("expected gathering after intro, got %q", state.Stage)
	}
	if reply == "" {
		t.Fatal("intro must greet the user")
	}

	// First gathering turn: oracle wants more detail, stage holds.
	reply, err = f.Handle(context.Background(), state, "a dice roller")
	if err != nil {
		t.Fatalf("gathering turn: %v", err)
	}
	if state.Stage != StageGathering {
		t.Fatalf("stage must hold while gathering, got %q", state.Stage)
	}
	if !strings.Contains(reply, "inputs") {
		t.Errorf("expected the oracle's follow-up question, got %q", reply)
	}

	// Second gathering turn advances and runs the build to completion.
	reply, err = f.Handle(context.Background(), state, "it takes the number of sides, that's everything")
	if err != nil {
		t.Fatalf("build turn: %v", err)
	}
	if state.Stage != StageComplete {
		t.Fatalf("expected complete, got %q", state.Stage)
	}
	if !strings.Contains(reply, "dice-roller") {
		t.Errorf("final reply should name the provider, got %q", reply)
	}

	// Files and the manifest went through the filesystem provider.
	if len(caller.calls) != 3 {
		t.Fatalf("expected create_directory + 2 write_file, got %d calls", len(caller.calls))
	}
	if caller.calls[0].tool != "create_directory" || caller.calls[0].provider != DefaultFilesystemProvider {
		t.Errorf("first call = %+v", caller.calls[0])
	}
	wroteTo, _ := caller.calls[1].args["path"].(string)
	if caller.calls[1].tool != "write_file" || filepath.Base(wroteTo) != "server.py" {
		t.Errorf("second call = %+v", caller.calls[1])
	}
	manifestPath, _ := caller.calls[2].args["path"].(string)
	if filepath.Base(manifestPath) != "provider.json" {
		t.Errorf("third call should write the manifest, got %+v", caller.calls[2])
	}
	manifest, _ := caller.calls[2].args["content"].(string)
	if !strings.Contains(manifest, `"roll"`) {
		t.Errorf("manifest should list the tools:\n%s", manifest)
	}

	// Registration happened and the server path is absolute in args.
	d, ok := reg.Get("dice-roller")
	if !ok {
		t.Fatal("generated provider not registered")
	}
	if !d.Enabled {
		t.Error("generated provider should be enabled")
	}
	if len(d.Tools) != 1 || d.Tools[0].Name != "roll" {
		t.Errorf("tools not carried over: %+v", d.Tools)
	}
	if len(d.Args) != 1 || !filepath.IsAbs(d.Args[0]) {
		t.Errorf("server file arg should be absolute, got %v", d.Args)
	}
	if d.Path == "" {
		t.Error("descriptor should record the server directory")
	}
}

func TestProviderCreationSaveFailureRetriesSameStage(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"advance": true, "reply": "", "requirements": "a dice roller"}`,
		generationResponse,
	}}
	caller := &recordingCaller{failNext: 1}
	f, reg := newCreationFlow(t, oracle, caller)

	state := NewState(f.ID())
	state.Stage = StageGathering

	if _, err := f.Handle(context.Background(), state, "that's everything"); err == nil {
		t.Fatal("expected save failure to surface")
	}
	if state.Stage != StageSaveCode {
		t.Fatalf("failure must leave the flow at save_code, got %q", state.Stage)
	}
	if _, ok := reg.Get("dice-roller"); ok {
		t.Fatal("registration must not happen before code is saved")
	}

	// Retry resumes from save_code without regenerating.
	reply, err := f.Handle(context.Background(), state, "try again")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if state.Stage != StageComplete {
		t.Fatalf("expected complete after retry, got %q", state.Stage)
	}
	if reply == "" {
		t.Error("retry should produce the completion reply")
	}
	if _, ok := reg.Get("dice-roller"); !ok {
		t.Error("provider should be registered after retry")
	}
}

func TestProviderCreationMalformedGatherHoldsStage(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{"not json at all, sorry"}}
	f, _ := newCreationFlow(t, oracle, &recordingCaller{})

	state := NewState(f.ID())
	state.Stage = StageGathering

	reply, err := f.Handle(context.Background(), state, "a dice roller")
	if err != nil {
		t.Fatalf("malformed gather output must be absorbed: %v", err)
	}
	if state.Stage != StageGathering {
		t.Errorf("stage must hold, got %q", state.Stage)
	}
	if reply == "" {
		t.Error("the user still needs a reply")
	}
}

func TestProviderCreationIncompleteGenerationFails(t *testing.T) {
	oracle := &scriptedOracle{responses: []string{
		`{"advance": true, "reply": "", "requirements": "something"}`,
		`{"name": "", "command": "", "files": []}`,
	}}
	f, _ := newCreationFlow(t, oracle, &recordingCaller{})

	state := NewState(f.ID())
	state.Stage = StageGathering

	if _, err := f.Handle(context.Background(), state, "done"); err == nil {
		t.Fatal("incomplete generation output must fail")
	}
	if state.Stage != StageCodeGeneration {
		t.Errorf("failure must leave the flow at code_generation, got %q", state.Stage)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Dice Roller", "dice-roller"},
		{"  Weather_API v2  ", "weather-api-v2"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := slug(tt.in); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
