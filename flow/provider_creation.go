package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"switchboard/internal/jsonx"
	"switchboard/llm"
	"switchboard/mcp"
	"switchboard/registry"
)

// ProviderCreationID is the flow id for the guided server builder.
const ProviderCreationID = "provider_creation"

// DefaultFilesystemProvider is the provider id the flow writes generated
// files through.
const DefaultFilesystemProvider = "filesystem"

// State param keys.
const (
	paramRequirements = "requirements"
	paramGenerated    = "generated"
	paramServerDir    = "server_dir"
)

// ToolCaller executes one tool call on a provider. *mcp.Executor
// satisfies it; tests substitute a fake.
type ToolCaller interface {
	Execute(ctx context.Context, providerID, toolName string, args map[string]any) (mcp.Result, error)
}

// ProviderCreation walks the user through building and registering a new
// tool provider: gather requirements over as many turns as needed, have
// the oracle generate the server code, save it through the filesystem
// provider, and register the result in the catalog.
type ProviderCreation struct {
	client     *llm.Client
	registry   *registry.Registry
	tools      ToolCaller
	fsProvider string
	workspace  string
	logger     *slog.Logger
}

// NewProviderCreation creates the flow. workspace is the directory new
// servers are created under; fsProvider may be empty to use
// DefaultFilesystemProvider.
func NewProviderCreation(client *llm.Client, reg *registry.Registry, tools ToolCaller, fsProvider, workspace string, logger *slog.Logger) *ProviderCreation {
	if fsProvider == "" {
		fsProvider = DefaultFilesystemProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderCreation{
		client:     client,
		registry:   reg,
		tools:      tools,
		fsProvider: fsProvider,
		workspace:  workspace,
		logger:     logger,
	}
}

// ID implements Handler.
func (f *ProviderCreation) ID() string { return ProviderCreationID }

// Description implements Handler.
func (f *ProviderCreation) Description() string {
	return "build a new tool provider from a description of what it should do, save its code, and register it"
}

const introReply = `Let's build a new tool provider. Describe what it should do: what tools it exposes, what inputs they take, and anything it needs to talk to. Say "that's everything" when you're done.`

// Handle implements Handler.
func (f *ProviderCreation) Handle(ctx context.Context, state *State, userText string) (string, error) {
	switch state.Stage {
	case StageIntro:
		state.Advance(StageGathering)
		return introReply, nil
	case StageGathering:
		return f.gather(ctx, state, userText)
	case StageCodeGeneration, StageSaveCode, StageRegisterServer:
		// Build stages run without user input. Landing here means an
		// earlier turn failed partway; resume from the failing stage.
		return f.build(ctx, state)
	default:
		return "", fmt.Errorf("provider creation flow in unknown stage %q", state.Stage)
	}
}

const gatherPrompt = `You are collecting requirements for a new tool server the user wants
built. Merge what you know so far with the user's latest message and
respond with a single JSON object:

{"advance": <bool>, "reply": "<text>", "requirements": "<summary>"}

Set "advance" to true only when the requirements are complete enough to
implement: the server's purpose, its tools, and their inputs are all
clear, or the user says they are done. Otherwise set it to false and use
"reply" to ask for what is still missing. "requirements" is always the
full merged summary.

Requirements so far:
%s

User message: %s

JSON:`

func (f *ProviderCreation) gather(ctx context.Context, state *State, userText string) (string, error) {
	known := state.Params[paramRequirements]
	if known == "" {
		known = "(none yet)"
	}

	raw, err := f.client.GenerateJSON(ctx, fmt.Sprintf(gatherPrompt, known, userText))
	if err != nil {
		return "", fmt.Errorf("requirements gathering failed: %w", err)
	}

	type wireGather struct {
		Advance      bool   `json:"advance"`
		Reply        string `json:"reply"`
		Requirements string `json:"requirements"`
	}
	gathered, err := jsonx.Decode[wireGather](raw)
	if err != nil {
		f.logger.Warn("gathering response unparseable, staying in stage", "error", err)
		return "Sorry, I lost track there. Could you restate that?", nil
	}

	if gathered.Requirements != "" {
		state.Params[paramRequirements] = gathered.Requirements
	}
	if !gathered.Advance {
		if gathered.Reply == "" {
			return "Got it. What else should the provider do?", nil
		}
		return gathered.Reply, nil
	}

	state.Advance(StageCodeGeneration)
	return f.build(ctx, state)
}

// generatedServer is the oracle's code-generation output.
type generatedServer struct {
	Name           string                    `json:"name"`
	Description    string                    `json:"description"`
	Files          []generatedFile           `json:"files"`
	Command        string                    `json:"command"`
	Args           []string                  `json:"args"`
	InstallCommand string                    `json:"install_command"`
	InstallArgs    []string                  `json:"install_args"`
	Tools          []registry.ToolDescriptor `json:"tools"`
}

type generatedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// build runs the machine stages in order, picking up from whichever one
// state is at. Any failure returns with the stage unadvanced so the next
// turn retries from the same point.
func (f *ProviderCreation) build(ctx context.Context, state *State) (string, error) {
	if state.Stage == StageCodeGeneration {
		if err := f.generate(ctx, state); err != nil {
			return "", err
		}
		state.Advance(StageSaveCode)
	}

	generated, err := f.loadGenerated(state)
	if err != nil {
		return "", err
	}

	if state.Stage == StageSaveCode {
		if err := f.saveCode(ctx, state, generated); err != nil {
			return "", err
		}
		state.Advance(StageRegisterServer)
	}

	if state.Stage == StageRegisterServer {
		if err := f.register(ctx, state, generated); err != nil {
			return "", err
		}
		state.Advance(StageComplete)
	}

	return fmt.Sprintf(
		"Done. Provider %q is registered and enabled with %d tool(s); its code lives in %s. Try it out, or ask me to install its dependencies if it needs any.",
		slug(generated.Name), len(generated.Tools), state.Params[paramServerDir],
	), nil
}

const generatePrompt = `Write a complete, runnable MCP server over stdio that implements these
requirements:

%s

Respond with a single JSON object:

{
  "name": "<short server name>",
  "description": "<one sentence>",
  "files": [{"path": "<relative path>", "content": "<full file content>"}],
  "command": "<command to run the server>",
  "args": ["<args, file paths relative to the server directory>"],
  "install_command": "<dependency install command, or empty>",
  "install_args": ["<install args>"],
  "tools": [{"name": "...", "description": "...",
             "parameters": [{"name": "...", "type": "...",
                             "description": "...", "required": <bool>}]}]
}

The files must be complete; no placeholders.

JSON:`

func (f *ProviderCreation) generate(ctx context.Context, state *State) error {
	raw, err := f.client.GenerateJSON(ctx, fmt.Sprintf(generatePrompt, state.Params[paramRequirements]))
	if err != nil {
		return fmt.Errorf("code generation failed: %w", err)
	}

	generated, err := jsonx.Decode[generatedServer](raw)
	if err != nil {
		return fmt.Errorf("code generation produced unusable output: %w", err)
	}
	if generated.Name == "" || generated.Command == "" || len(generated.Files) == 0 {
		return fmt.Errorf("code generation output incomplete: name, command, and files are all required")
	}

	encoded, err := json.Marshal(generated)
	if err != nil {
		return fmt.Errorf("encode generated server: %w", err)
	}
	state.Params[paramGenerated] = string(encoded)
	return nil
}

func (f *ProviderCreation) loadGenerated(state *State) (generatedServer, error) {
	var generated generatedServer
	encoded := state.Params[paramGenerated]
	if encoded == "" {
		return generated, fmt.Errorf("no generated server in flow state")
	}
	if err := json.Unmarshal([]byte(encoded), &generated); err != nil {
		return generated, fmt.Errorf("decode generated server: %w", err)
	}
	return generated, nil
}

// saveCode writes the generated files and a manifest through the
// filesystem provider.
func (f *ProviderCreation) saveCode(ctx context.Context, state *State, generated generatedServer) error {
	dir := filepath.Join(f.workspace, slug(generated.Name))

	if err := f.call(ctx, "create_directory", map[string]any{"path": dir}); err != nil {
		return err
	}
	for _, file := range generated.Files {
		args := map[string]any{
			"path":    filepath.Join(dir, file.Path),
			"content": file.Content,
		}
		if err := f.call(ctx, "write_file", args); err != nil {
			return err
		}
	}

	manifest, err := manifestJSON(generated)
	if err != nil {
		return err
	}
	args := map[string]any{
		"path":    filepath.Join(dir, "provider.json"),
		"content": manifest,
	}
	if err := f.call(ctx, "write_file", args); err != nil {
		return err
	}

	state.Params[paramServerDir] = dir
	return nil
}

// manifestJSON renders the server's description minus file contents.
func manifestJSON(generated generatedServer) (string, error) {
	manifest := struct {
		Name           string                    `json:"name"`
		Description    string                    `json:"description"`
		Command        string                    `json:"command"`
		Args           []string                  `json:"args,omitempty"`
		InstallCommand string                    `json:"install_command,omitempty"`
		InstallArgs    []string                  `json:"install_args,omitempty"`
		Tools          []registry.ToolDescriptor `json:"tools"`
	}{
		Name:           generated.Name,
		Description:    generated.Description,
		Command:        generated.Command,
		Args:           generated.Args,
		InstallCommand: generated.InstallCommand,
		InstallArgs:    generated.InstallArgs,
		Tools:          generated.Tools,
	}

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode provider manifest: %w", err)
	}
	return string(encoded) + "\n", nil
}

func (f *ProviderCreation) call(ctx context.Context, tool string, args map[string]any) error {
	result, err := f.tools.Execute(ctx, f.fsProvider, tool, args)
	if err != nil {
		return fmt.Errorf("%s via provider %q: %w", tool, f.fsProvider, err)
	}
	if result.IsError {
		return fmt.Errorf("%s via provider %q: %s", tool, f.fsProvider, result.Content)
	}
	return nil
}

// register upserts the new provider, enabled, into the catalog.
func (f *ProviderCreation) register(ctx context.Context, state *State, generated generatedServer) error {
	dir := state.Params[paramServerDir]

	descriptor := registry.ProviderDescriptor{
		ID:             slug(generated.Name),
		DisplayName:    generated.Name,
		Description:    generated.Description,
		Command:        generated.Command,
		Args:           absoluteArgs(generated, dir),
		Tools:          generated.Tools,
		Enabled:        true,
		Path:           dir,
		InstallCommand: generated.InstallCommand,
		InstallArgs:    generated.InstallArgs,
	}
	if err := f.registry.Upsert(ctx, descriptor); err != nil {
		return fmt.Errorf("register generated provider: %w", err)
	}

	f.logger.Info("registered generated provider", "provider", descriptor.ID, "dir", dir)
	return nil
}

// absoluteArgs rewrites args that name generated files into paths under
// the server directory, so the spawned process does not depend on its
// working directory.
func absoluteArgs(generated generatedServer, dir string) []string {
	files := make(map[string]bool, len(generated.Files))
	for _, file := range generated.Files {
		files[file.Path] = true
	}

	args := make([]string, len(generated.Args))
	for i, arg := range generated.Args {
		if files[arg] {
			args[i] = filepath.Join(dir, arg)
		} else {
			args[i] = arg
		}
	}
	return args
}

// slug derives a catalog id from a display name.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
