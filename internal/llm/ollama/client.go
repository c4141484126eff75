// Package ollama triages tickets with a locally running Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/linnemanlabs/go-core/log"
	"github.com/ollama/ollama/api"

	"github.com/linnemanlabs/tickettriage/internal/tracehttp"
	"github.com/linnemanlabs/tickettriage/internal/triage"
)

const (
	// Name is the backend name used in logs and error reports.
	Name = "Ollama"

	// DefaultHost is the address of a local Ollama install.
	DefaultHost = "http://localhost:11434"
)

// Client implements triage.Provider and triage.Preparer for Ollama.
type Client struct {
	api    *api.Client
	model  string
	logger log.Logger
}

// New creates a client for the server at host. An empty host means
// DefaultHost; a bare host:port is treated as http.
func New(host, model string, logger log.Logger) (*Client, error) {
	if model == "" {
		return nil, errors.New("ollama model is required")
	}
	base, err := parseHost(host)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		api:    api.NewClient(base, tracehttp.NewClient(0)),
		model:  model,
		logger: logger,
	}, nil
}

func parseHost(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse ollama host %q: missing host", host)
	}
	return u, nil
}

// Name returns the backend display name.
func (c *Client) Name() string { return Name }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Send runs one non-streaming chat call.
func (c *Client) Send(ctx context.Context, req *triage.LLMRequest) (*triage.LLMResponse, error) {
	stream := false
	chat := &api.ChatRequest{
		Model:    c.model,
		Messages: toMessages(req.System, req.Messages),
		Stream:   &stream,
	}
	if req.MaxTokens > 0 {
		chat.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	var out triage.LLMResponse
	var text strings.Builder
	err := c.api.Chat(ctx, chat, func(r api.ChatResponse) error {
		text.WriteString(r.Message.Content)
		if r.Done {
			out.Model = r.Model
			out.StopReason = r.DoneReason
			out.Usage = triage.Usage{
				InputTokens:  r.PromptEvalCount,
				OutputTokens: r.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	out.Text = text.String()
	return &out, nil
}

func toMessages(system string, msgs []triage.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs)+1)
	if system != "" {
		out = append(out, api.Message{Role: "system", Content: system})
	}
	for _, m := range msgs {
		out = append(out, api.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// Prepare makes sure the model is available locally, pulling it when it is
// not listed.
func (c *Client) Prepare(ctx context.Context) error {
	L := c.logger.With("backend", Name, "model", c.model)

	list, err := c.api.List(ctx)
	if err != nil {
		return fmt.Errorf("list ollama models: %w", err)
	}
	for _, m := range list.Models {
		if sameModel(m.Name, c.model) || sameModel(m.Model, c.model) {
			L.Info(ctx, "ollama model available locally")
			return nil
		}
	}

	L.Info(ctx, "ollama model not found locally, pulling it now")
	p := &pullProgress{logger: L}
	err = c.api.Pull(ctx, &api.PullRequest{Model: c.model}, func(r api.ProgressResponse) error {
		p.observe(ctx, r)
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull ollama model %s: %w", c.model, err)
	}
	L.Info(ctx, "successfully pulled ollama model")
	return nil
}

// sameModel compares model references, treating a missing tag as :latest.
func sameModel(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	// the tag separator is the last colon after the final path segment
	if i := strings.LastIndex(name, "/"); !strings.Contains(name[i+1:], ":") {
		name += ":latest"
	}
	return name
}

// pullProgress logs each new status line and download progress in 10% steps.
type pullProgress struct {
	logger     log.Logger
	lastStatus string
	lastDigest string
	lastDecile int64
}

func (p *pullProgress) observe(ctx context.Context, r api.ProgressResponse) {
	if r.Status != p.lastStatus {
		p.lastStatus = r.Status
		p.logger.Info(ctx, "pull status", "status", r.Status)
	}
	if r.Total <= 0 {
		return
	}
	if r.Digest != p.lastDigest {
		p.lastDigest = r.Digest
		p.lastDecile = -1
	}
	decile := r.Completed * 10 / r.Total
	if decile == p.lastDecile {
		return
	}
	p.lastDecile = decile
	p.logger.Info(ctx, "downloading layer",
		"percent", fmt.Sprintf("%.2f", float64(r.Completed)/float64(r.Total)*100),
		"completed", humanize.Bytes(uint64(r.Completed)), //nolint:gosec // G115: non-negative progress counter
		"total", humanize.Bytes(uint64(r.Total)), //nolint:gosec // G115: checked positive above
	)
}
