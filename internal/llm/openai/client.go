// Package openai triages tickets with an OpenAI compatible chat completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/tickettriage/internal/tracehttp"
	"github.com/linnemanlabs/tickettriage/internal/triage"
)

// Name is the backend name used in logs and error reports.
const Name = "OpenAI"

// Client implements triage.Provider for chat completions.
type Client struct {
	sdk   *openai.Client
	model string
}

// New creates a client. baseURL may point at any OpenAI compatible server;
// empty keeps the public endpoint.
func New(apiKey, model, baseURL string) *Client {
	cc := openai.DefaultConfig(apiKey)
	cc.HTTPClient = tracehttp.NewClient(0)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	return &Client{
		sdk:   openai.NewClientWithConfig(cc),
		model: model,
	}
}

// Name returns the backend display name.
func (c *Client) Name() string { return Name }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Send issues a single chat completion.
func (c *Client) Send(ctx context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	resp, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  toChatMessages(req.System, req.Messages),
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai api: %w", err)
	}

	out := &triage.LLMResponse{
		Model: resp.Model,
		Usage: triage.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
		out.StopReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

func toChatMessages(system string, msgs []triage.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		if m.Role == triage.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
