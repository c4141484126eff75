// Package gemini triages tickets with the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/linnemanlabs/tickettriage/internal/tracehttp"
	"github.com/linnemanlabs/tickettriage/internal/triage"
)

// Name is the backend name used in logs and error reports.
const Name = "Gemini"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Client implements triage.Provider for the Gemini API.
type Client struct {
	sdk   *genai.Client
	model string
}

// New creates a Gemini client. baseURL is optional and only needed to point
// at a proxy or a test server.
func New(ctx context.Context, apiKey, model, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: tracehttp.NewClient(0),
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	sdk, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{sdk: sdk, model: model}, nil
}

// Name returns the backend display name.
func (c *Client) Name() string { return Name }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Send issues a single GenerateContent call.
func (c *Client) Send(ctx context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens), //nolint:gosec // G115: bounded by config validation
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, toContents(req.Messages), config)
	if err != nil {
		return nil, fmt.Errorf("gemini api: %w", err)
	}
	return fromResponse(resp), nil
}

func toContents(msgs []triage.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == triage.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

// fromResponse keeps the first candidate's visible text. Thought parts are
// dropped so thinking models do not leak reasoning into the report.
func fromResponse(resp *genai.GenerateContentResponse) *triage.LLMResponse {
	out := &triage.LLMResponse{Model: resp.ModelVersion}
	if resp.UsageMetadata != nil {
		out.Usage = triage.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	out.StopReason = string(cand.FinishReason)
	if cand.Content == nil {
		return out
	}
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		text.WriteString(p.Text)
	}
	out.Text = text.String()
	return out
}
