package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"switchboard/registry"
)

// Result is the outcome of one tool invocation. A provider-reported
// failure sets IsError; it is ordinary data, not a Go error.
type Result struct {
	Content string
	IsError bool
}

// DefaultTimeout bounds one Execute call end to end, spawn to teardown.
const DefaultTimeout = 60 * time.Second

// Executor runs tool calls against registered providers, one session
// per call, no pooling.
type Executor struct {
	registry *registry.Registry
	timeout  time.Duration
	logger   *slog.Logger

	// refresh controls whether the live tools/list replaces the
	// descriptor's static catalog entries at session-open time.
	refresh bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithoutRefresh disables live tool-list introspection.
func WithoutRefresh() Option {
	return func(e *Executor) { e.refresh = false }
}

// NewExecutor creates an executor over the given catalog.
func NewExecutor(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		registry: reg,
		timeout:  DefaultTimeout,
		logger:   logger,
		refresh:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes toolName on providerID with args.
//
// Provider and tool resolution fail fast before any session opens.
// Connect or handshake failures, and the per-call timeout, surface as
// ErrTransport. A tool error reported by the provider comes back as a
// Result with IsError set. No retry is attempted.
func (e *Executor) Execute(ctx context.Context, providerID, toolName string, args map[string]any) (Result, error) {
	d, ok := e.registry.Get(providerID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrProviderNotFound, providerID)
	}
	if !d.Enabled {
		return Result{}, fmt.Errorf("%w: %q is disabled", ErrProviderNotFound, providerID)
	}

	// Static catalog check before paying for a session. Providers with
	// no static entries defer the check to live introspection.
	if len(d.Tools) > 0 {
		if _, ok := d.Tool(toolName); !ok {
			return Result{}, fmt.Errorf("%w: %q on provider %q", ErrToolNotFound, toolName, providerID)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sess, err := openSession(ctx, d)
	if err != nil {
		return Result{}, err
	}
	defer sess.close()

	if e.refresh {
		if err := e.refreshTools(ctx, sess, d, toolName); err != nil {
			return Result{}, err
		}
	}

	raw, err := sess.callTool(ctx, toolName, args)
	if err != nil {
		return Result{}, err
	}

	result := resultFromCall(raw)
	if result.IsError {
		e.logger.Debug("provider reported tool error",
			"provider", providerID, "tool", toolName)
	}
	return result, nil
}

// refreshTools replaces the descriptor's tool catalog with the live
// list and re-checks that the requested tool exists. Persistence of the
// refreshed catalog is best-effort.
func (e *Executor) refreshTools(ctx context.Context, sess *session, d registry.ProviderDescriptor, toolName string) error {
	live, err := sess.listTools(ctx)
	if err != nil {
		return err
	}

	d.Tools = toolsFromMCP(live)
	if err := e.registry.Upsert(ctx, d); err != nil {
		e.logger.Warn("failed to persist refreshed tool catalog",
			"provider", d.ID, "error", err)
	}

	if _, ok := d.Tool(toolName); !ok {
		return fmt.Errorf("%w: %q on provider %q", ErrToolNotFound, toolName, d.ID)
	}
	return nil
}
