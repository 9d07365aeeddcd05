// Package mcp executes tool calls against providers speaking the Model
// Context Protocol.
//
// Sessions are strictly request-scoped: Execute opens a transport to the
// provider, performs the initialize handshake, invokes one tool, and
// unconditionally tears the session down. Local providers are spawned as
// a child process speaking stdio; remote providers are reached over an
// SSE stream URL.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"switchboard/registry"
)

const protocolVersion = "2025-06-18"

// Transport-layer failure sentinels. Remote-reported tool errors are not
// errors; they come back as a Result with IsError set.
var (
	// ErrProviderNotFound means the referenced provider is absent from
	// the live catalog or disabled.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrToolNotFound means the provider exists but does not expose
	// the referenced tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrTransport covers spawn/connect/handshake failures and
	// timeouts.
	ErrTransport = errors.New("transport failure")
)

// session is one live connection to a provider. Local sessions keep the
// spawned command so teardown can force-kill a hung child.
type session struct {
	client *client.Client
	cmd    *exec.Cmd
}

// openSession connects to the provider and completes the initialize
// handshake. On any failure the partially opened session is torn down
// before returning.
func openSession(ctx context.Context, d registry.ProviderDescriptor) (*session, error) {
	s := &session{}

	var err error
	if d.IsRemote() {
		err = s.connectStream(ctx, d)
	} else {
		err = s.spawnProcess(ctx, d)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "switchboard",
				Version: "1.0.0",
			},
		},
	}
	if _, err := s.client.Initialize(ctx, initReq); err != nil {
		s.close()
		return nil, fmt.Errorf("%w: initialize %s: %v", ErrTransport, d.ID, err)
	}

	return s, nil
}

func (s *session) spawnProcess(ctx context.Context, d registry.ProviderDescriptor) error {
	command := d.Command
	args := d.Args

	// Capture the spawned command so close() can kill it if the
	// transport shutdown stalls.
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		s.cmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		command,
		os.Environ(),
		args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", command, err)
	}

	s.client = mcpClient
	return nil
}

func (s *session) connectStream(ctx context.Context, d registry.ProviderDescriptor) error {
	mcpClient, err := client.NewSSEMCPClient(d.ServerURL)
	if err != nil {
		return fmt.Errorf("connect %s: %w", d.ServerURL, err)
	}
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return fmt.Errorf("start stream to %s: %w", d.ServerURL, err)
	}

	s.client = mcpClient
	return nil
}

// listTools introspects the provider's live tool list.
func (s *session) listTools(ctx context.Context) ([]mcptypes.Tool, error) {
	result, err := s.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %v", ErrTransport, err)
	}
	return result.Tools, nil
}

// callTool invokes one tool and returns the raw protocol result.
func (s *session) callTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	result, err := s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: call %s: %v", ErrTransport, name, err)
	}
	return result, nil
}

// close tears the session down. The client gets a bounded window to shut
// down cleanly; a local child that outlives it is killed.
func (s *session) close() {
	if s.client != nil {
		done := make(chan struct{})
		go func() {
			_ = s.client.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}
