package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
)

// ErrNotFound is returned when an operation names a provider absent
// from the catalog.
var ErrNotFound = errors.New("provider not found")

// Store persists the catalog across restarts. Implementations need only
// satisfy get/list/upsert/remove semantics; SqliteStore is the default.
type Store interface {
	UpsertProvider(ctx context.Context, d ProviderDescriptor) error
	RemoveProvider(ctx context.Context, id string) error
	ListProviders(ctx context.Context) ([]ProviderDescriptor, error)
}

// Registry is the mutable, lock-guarded provider catalog. Mutating
// operations are serialized; reads take a shared lock. Conversations
// hold a reference to a shared Registry, never a copy.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderDescriptor
	store     Store
	logger    *slog.Logger
}

// New creates an empty registry. store may be nil for a purely
// in-memory catalog.
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]ProviderDescriptor),
		store:     store,
		logger:    logger,
	}
}

// Load hydrates the catalog from the store. Call once at startup.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	descriptors, err := r.store.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("load provider catalog: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range descriptors {
		r.providers[d.ID] = d
	}
	return nil
}

// Upsert inserts or replaces a descriptor by id and persists it if a
// store is configured.
func (r *Registry) Upsert(ctx context.Context, d ProviderDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.providers[d.ID] = d
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertProvider(ctx, d); err != nil {
			return fmt.Errorf("persist provider %q: %w", d.ID, err)
		}
	}
	return nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (ProviderDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.providers[id]
	return d, ok
}

// List returns all descriptors, disabled ones included, sorted by id.
func (r *Registry) List() []ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderDescriptor, 0, len(r.providers))
	for _, d := range r.providers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled returns only the enabled descriptors, sorted by id. This is
// the router's catalog view.
func (r *Registry) Enabled() []ProviderDescriptor {
	var out []ProviderDescriptor
	for _, d := range r.List() {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// SetEnabled flips a provider's enabled flag.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	d, ok := r.providers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("provider %q: %w", id, ErrNotFound)
	}
	d.Enabled = enabled
	r.providers[id] = d
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertProvider(ctx, d); err != nil {
			return fmt.Errorf("persist provider %q: %w", id, err)
		}
	}
	return nil
}

// Remove deletes a provider from the catalog. With deleteFiles set, the
// provider's owning directory is removed best-effort: a filesystem
// failure is logged but does not block catalog removal.
func (r *Registry) Remove(ctx context.Context, id string, deleteFiles bool) error {
	r.mu.Lock()
	d, ok := r.providers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("provider %q: %w", id, ErrNotFound)
	}
	delete(r.providers, id)
	r.mu.Unlock()

	if deleteFiles && d.Path != "" {
		if err := os.RemoveAll(d.Path); err != nil {
			r.logger.Warn("failed to delete provider directory",
				"provider", id, "path", d.Path, "error", err)
		}
	}

	if r.store != nil {
		if err := r.store.RemoveProvider(ctx, id); err != nil {
			return fmt.Errorf("remove provider %q from store: %w", id, err)
		}
	}
	return nil
}

// InstallDependencies runs the provider's declared install step as a
// child process in its directory. A missing install step or a non-zero
// exit is surfaced as an error carrying the captured output.
func (r *Registry) InstallDependencies(ctx context.Context, id string) (string, error) {
	d, ok := r.Get(id)
	if !ok {
		return "", fmt.Errorf("provider %q: %w", id, ErrNotFound)
	}
	if d.InstallCommand == "" {
		return "", fmt.Errorf("provider %q declares no install step", id)
	}

	cmd := exec.CommandContext(ctx, d.InstallCommand, d.InstallArgs...)
	if d.Path != "" {
		cmd.Dir = d.Path
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("install step for %q failed: %w\n%s", id, err, output)
	}

	r.logger.Info("installed provider dependencies", "provider", id)
	return string(output), nil
}
