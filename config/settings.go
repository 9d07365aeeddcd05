// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Oracle backend selection and model lookup

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"switchboard/llm"
)

// Settings holds all application configuration.
type Settings struct {
	Oracle   OracleConfig
	Chat     ChatConfig
	Tools    ToolConfig
	Catalog  CatalogConfig
	LogLevel string
}

// OracleConfig holds oracle backend configuration.
type OracleConfig struct {
	Backend     llm.Backend
	Model       string
	MaxTokens   uint32
	Temperature float32
	Timeout     time.Duration
}

// ChatConfig holds per-conversation configuration.
type ChatConfig struct {
	MemoryCapacity int
	HistoryWindow  int
}

// ToolConfig holds tool execution configuration.
type ToolConfig struct {
	Timeout time.Duration
}

// CatalogConfig holds provider catalog configuration.
type CatalogConfig struct {
	// DBPath is the sqlite file backing the provider catalog.
	DBPath string
	// SeedFile is an optional TOML file of default providers.
	SeedFile string
	// Workspace is the directory generated servers are created under.
	Workspace string
	// FilesystemProvider is the provider id used to write generated code.
	FilesystemProvider string
}

// New creates settings for the given oracle backend name, loading values
// from environment variables. An empty backend name falls back to
// ORACLE_BACKEND, then to anthropic.
func New(backend string) (Settings, error) {
	if backend == "" {
		backend = os.Getenv("ORACLE_BACKEND")
	}
	if backend == "" {
		backend = "anthropic"
	}
	parsed, err := llm.ParseBackend(backend)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("ORACLE_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat32("ORACLE_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	oracleTimeout, err := getEnvSeconds("ORACLE_TIMEOUT_SECONDS", 120*time.Second)
	if err != nil {
		return Settings{}, err
	}

	toolTimeout, err := getEnvSeconds("TOOL_TIMEOUT_SECONDS", 60*time.Second)
	if err != nil {
		return Settings{}, err
	}

	memoryCapacity, err := getEnvInt("MEMORY_CAPACITY", 50)
	if err != nil {
		return Settings{}, err
	}

	historyWindow, err := getEnvInt("HISTORY_WINDOW", 10)
	if err != nil {
		return Settings{}, err
	}

	// Model from environment or the backend's default
	model := os.Getenv("ORACLE_MODEL")
	if model == "" {
		model = parsed.DefaultModel()
	}

	dataDir := os.Getenv("SWITCHBOARD_DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	return Settings{
		Oracle: OracleConfig{
			Backend:     parsed,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			Timeout:     oracleTimeout,
		},
		Chat: ChatConfig{
			MemoryCapacity: memoryCapacity,
			HistoryWindow:  historyWindow,
		},
		Tools: ToolConfig{
			Timeout: toolTimeout,
		},
		Catalog: CatalogConfig{
			DBPath:             getEnv("REGISTRY_DB_PATH", filepath.Join(dataDir, "providers.db")),
			SeedFile:           os.Getenv("PROVIDER_CATALOG"),
			Workspace:          getEnv("SERVER_WORKSPACE", filepath.Join(dataDir, "servers")),
			FilesystemProvider: os.Getenv("FILESYSTEM_PROVIDER"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

// MustNew creates settings for the given backend name.
// Panics if the backend is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(backend string) Settings {
	settings, err := New(backend)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// BuildOracle constructs the configured oracle backend, reading its API
// key from the environment.
func (s Settings) BuildOracle() (llm.Provider, error) {
	return llm.NewBuilder(s.Oracle.Backend).
		Model(s.Oracle.Model).
		MaxTokens(s.Oracle.MaxTokens).
		Temperature(s.Oracle.Temperature).
		FromEnv()
}

// defaultDataDir places application state under the user's home
// directory, falling back to the working directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".switchboard"
	}
	return filepath.Join(home, ".switchboard")
}

// Environment variable helpers with proper error handling

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat32(key string, defaultVal float32) (float32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return float32(f), nil
}

func getEnvSeconds(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return time.Duration(secs) * time.Second, nil
}
