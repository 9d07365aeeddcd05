// SQLite-backed catalog persistence.
//
// Descriptors are stored one row per provider with the variable-shape
// fields (args, tools, install step) serialized as JSON columns.
// Thread-safe via sql.DB's connection pooling.

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore implements Store using a SQLite database file.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a catalog database at the given path,
// creating parent directories as needed.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	return store, nil
}

// OpenSqliteInMemory creates an in-memory catalog store, useful for tests.
func OpenSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory catalog: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			command TEXT NOT NULL DEFAULT '',
			args TEXT NOT NULL DEFAULT '[]',
			server_url TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			install_command TEXT NOT NULL DEFAULT '',
			install_args TEXT NOT NULL DEFAULT '[]',
			tools TEXT NOT NULL DEFAULT '[]',
			enabled INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertProvider inserts or replaces a descriptor row.
func (s *SqliteStore) UpsertProvider(ctx context.Context, d ProviderDescriptor) error {
	args, err := json.Marshal(d.Args)
	if err != nil {
		return fmt.Errorf("marshal args for %q: %w", d.ID, err)
	}
	installArgs, err := json.Marshal(d.InstallArgs)
	if err != nil {
		return fmt.Errorf("marshal install args for %q: %w", d.ID, err)
	}
	tools, err := json.Marshal(d.Tools)
	if err != nil {
		return fmt.Errorf("marshal tools for %q: %w", d.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO providers
			(id, display_name, description, command, args, server_url,
			 path, install_command, install_args, tools, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			command = excluded.command,
			args = excluded.args,
			server_url = excluded.server_url,
			path = excluded.path,
			install_command = excluded.install_command,
			install_args = excluded.install_args,
			tools = excluded.tools,
			enabled = excluded.enabled,
			updated_at = datetime('now')`,
		d.ID, d.DisplayName, d.Description, d.Command, string(args),
		d.ServerURL, d.Path, d.InstallCommand, string(installArgs),
		string(tools), boolToInt(d.Enabled))
	if err != nil {
		return fmt.Errorf("upsert provider %q: %w", d.ID, err)
	}
	return nil
}

// RemoveProvider deletes a descriptor row. Removing an absent id is not
// an error.
func (s *SqliteStore) RemoveProvider(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM providers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete provider %q: %w", id, err)
	}
	return nil
}

// ListProviders loads every stored descriptor.
func (s *SqliteStore) ListProviders(ctx context.Context) ([]ProviderDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, description, command, args, server_url,
		       path, install_command, install_args, tools, enabled
		FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []ProviderDescriptor
	for rows.Next() {
		var d ProviderDescriptor
		var args, installArgs, tools string
		var enabled int
		if err := rows.Scan(&d.ID, &d.DisplayName, &d.Description,
			&d.Command, &args, &d.ServerURL, &d.Path,
			&d.InstallCommand, &installArgs, &tools, &enabled); err != nil {
			return nil, fmt.Errorf("scan provider row: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &d.Args); err != nil {
			return nil, fmt.Errorf("decode args for %q: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(installArgs), &d.InstallArgs); err != nil {
			return nil, fmt.Errorf("decode install args for %q: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(tools), &d.Tools); err != nil {
			return nil, fmt.Errorf("decode tools for %q: %w", d.ID, err)
		}
		d.Enabled = enabled != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
