// Oracle backend factory with a builder-first API.
//
//	// Simplest: defaults, API key from environment
//	oracle, err := llm.BackendAnthropic.FromEnv()
//
//	// Full configuration
//	oracle, err := llm.BackendOpenAI.
//	    Model(llm.ModelOpenAIGPT4oMini).
//	    MaxTokens(2048).
//	    Temperature(0.2).
//	    FromEnv()

package llm

import (
	"fmt"
	"os"
	"strings"
)

// Backend identifies a supported oracle backend.
type Backend int

const (
	// BackendAnthropic is the Anthropic backend (Claude models).
	BackendAnthropic Backend = iota
	// BackendOpenAI is the OpenAI backend (GPT models).
	BackendOpenAI
	// BackendDeepSeek is the DeepSeek backend.
	BackendDeepSeek
	// BackendGemini is the Google Gemini backend.
	BackendGemini
)

// String returns the backend's canonical name.
func (b Backend) String() string {
	switch b {
	case BackendAnthropic:
		return "anthropic"
	case BackendOpenAI:
		return "openai"
	case BackendDeepSeek:
		return "deepseek"
	case BackendGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable holding this backend's API key.
func (b Backend) EnvVar() string {
	switch b {
	case BackendAnthropic:
		return "ANTHROPIC_API_KEY"
	case BackendOpenAI:
		return "OPENAI_API_KEY"
	case BackendDeepSeek:
		return "DEEPSEEK_API_KEY"
	case BackendGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this backend.
func (b Backend) DefaultModel() string {
	switch b {
	case BackendAnthropic:
		return ModelAnthropicClaudeSonnet4
	case BackendOpenAI:
		return ModelOpenAIGPT4o
	case BackendDeepSeek:
		return ModelDeepSeekChat
	case BackendGemini:
		return ModelGeminiFlash25
	default:
		return ""
	}
}

// ParseBackend parses a backend name, case-insensitive, with common
// aliases.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "anthropic", "claude":
		return BackendAnthropic, nil
	case "openai", "gpt":
		return BackendOpenAI, nil
	case "deepseek":
		return BackendDeepSeek, nil
	case "gemini", "google":
		return BackendGemini, nil
	default:
		return 0, fmt.Errorf("unknown oracle backend: %s", s)
	}
}

// FromEnv creates a backend with defaults, reading the API key from the
// environment.
func (b Backend) FromEnv() (Provider, error) {
	return NewBuilder(b).FromEnv()
}

// Model starts configuring this backend with a specific model.
func (b Backend) Model(model string) *Builder {
	return NewBuilder(b).Model(model)
}

// Builder configures an oracle backend.
type Builder struct {
	backend     Backend
	model       string
	maxTokens   uint32
	temperature *float32
}

// NewBuilder creates a builder for the given backend.
func NewBuilder(backend Backend) *Builder {
	return &Builder{backend: backend}
}

// Model sets the model to use.
func (b *Builder) Model(model string) *Builder {
	b.model = model
	return b
}

// MaxTokens sets the maximum response tokens.
func (b *Builder) MaxTokens(tokens uint32) *Builder {
	b.maxTokens = tokens
	return b
}

// Temperature sets the sampling temperature.
func (b *Builder) Temperature(temp float32) *Builder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider, reading the API key from the environment.
func (b *Builder) FromEnv() (Provider, error) {
	envVar := b.backend.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.backend, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *Builder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *Builder) build(apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.backend.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.backend {
	case BackendAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case BackendOpenAI:
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature), nil
	case BackendDeepSeek:
		return NewDeepSeekProvider(apiKey, model, maxTokens, temperature), nil
	case BackendGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown oracle backend: %v", b.backend)
	}
}

// Model identifier constants for all supported backends.

// Anthropic model identifiers
const (
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelAnthropicClaudeHaiku4  = "claude-haiku-4-20250514"
)

// OpenAI model identifiers
const (
	ModelOpenAIGPT4o     = "gpt-4o"
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
	ModelOpenAIO3Mini    = "o3-mini"
)

// DeepSeek model identifiers
const (
	ModelDeepSeekChat     = "deepseek-chat"
	ModelDeepSeekReasoner = "deepseek-reasoner"
)

// Gemini model identifiers
const (
	ModelGeminiFlash25 = "gemini-2.5-flash"
	ModelGeminiPro25   = "gemini-2.5-pro"
)
