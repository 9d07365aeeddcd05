// Static provider catalog file support.
//
// A TOML file declares the default providers seeded into the registry
// on first run:
//
//	[[providers]]
//	id = "calculator"
//	display_name = "Calculator"
//	command = "npx"
//	args = ["-y", "@example/calculator-server"]
//	enabled = true
//
//	[[providers.tools]]
//	name = "add"
//	description = "Add two numbers"
//
//	[[providers.tools.params]]
//	name = "a"
//	type = "number"
//	required = true

package registry

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
)

// CatalogFile is the decoded shape of a static catalog file.
type CatalogFile struct {
	Providers []ProviderDescriptor `toml:"providers"`
}

// LoadCatalogFile parses a TOML catalog file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	var file CatalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	for _, d := range file.Providers {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("catalog file %s: %w", path, err)
		}
	}
	return &file, nil
}

// SeedDefaults upserts catalog-file providers that are not already
// registered. Existing descriptors win so runtime edits survive restarts.
func (r *Registry) SeedDefaults(ctx context.Context, file *CatalogFile) error {
	for _, d := range file.Providers {
		if _, exists := r.Get(d.ID); exists {
			continue
		}
		if err := r.Upsert(ctx, d); err != nil {
			return err
		}
	}
	return nil
}
