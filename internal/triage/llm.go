// internal/triage/llm.go
package triage

import "context"

// Provider is the interface for any LLM backend.
type Provider interface {
	// Name is the human-readable backend name used in logs and error reports.
	Name() string
	Model() string
	Send(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
}

// Preparer is implemented by providers that need setup before the first
// ticket, such as pulling a local model.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// LLMRequest represents the input to the LLM provider.
type LLMRequest struct {
	MaxTokens int
	System    string
	Messages  []Message
}

// LLMResponse represents the output from the LLM provider, including the generated text, stop reason, and token usage.
type LLMResponse struct {
	Text       string
	Model      string
	StopReason string
	Usage      Usage
}

// Message is a single conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
