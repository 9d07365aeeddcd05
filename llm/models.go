// Shared data models for oracle backends.
package llm

// ChatMessage is one message in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// Response is a completion from an oracle backend.
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token accounting for one completion.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// ResponseFormatType selects how the backend should shape its output.
type ResponseFormatType string

const (
	ResponseFormatText       ResponseFormatType = "text"
	ResponseFormatJSONObject ResponseFormatType = "json_object"
)

// ResponseFormat is a hint that the completion should be a bare JSON
// object. Backends without native support ignore it; callers must still
// treat the output as untrusted free text.
type ResponseFormat struct {
	Type ResponseFormatType `json:"type"`
}

// JSONObjectFormat returns the JSON-object response format hint.
func JSONObjectFormat() *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatJSONObject}
}
