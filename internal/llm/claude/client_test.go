package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/tickettriage/internal/triage"
)

func TestToSDKMessages(t *testing.T) {
	t.Parallel()

	msgs := []triage.Message{
		{Role: triage.RoleUser, Content: "hello"},
		{Role: triage.RoleAssistant, Content: "hi"},
	}

	result := toSDKMessages(msgs)

	if len(result) != 2 {
		t.Fatalf("len = %d, want 2", len(result))
	}
	if result[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("role = %q, want %q", result[0].Role, "user")
	}
	if result[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("role = %q, want %q", result[1].Role, "assistant")
	}
	if len(result[0].Content) != 1 {
		t.Fatalf("content len = %d, want 1", len(result[0].Content))
	}
	if result[0].Content[0].OfText == nil {
		t.Fatal("expected OfText to be set")
	}
	if result[0].Content[0].OfText.Text != "hello" {
		t.Errorf("text = %q, want %q", result[0].Content[0].OfText.Text, "hello")
	}
}

func TestFromSDKResponse_TextContent(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Model: anthropic.Model("claude-test"),
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Urgency: High\n"},
			{Type: "thinking", Thinking: "ignored"},
			{Type: "text", Text: "Category: Hardware"},
		},
		StopReason: anthropic.StopReasonEndTurn,
		Usage:      anthropic.Usage{InputTokens: 100, OutputTokens: 50},
	}

	result := fromSDKResponse(msg)

	if result.Text != "Urgency: High\nCategory: Hardware" {
		t.Errorf("text = %q", result.Text)
	}
	if result.Model != "claude-test" {
		t.Errorf("model = %q, want %q", result.Model, "claude-test")
	}
	if result.StopReason != "end_turn" {
		t.Errorf("stop reason = %q, want %q", result.StopReason, "end_turn")
	}
}

func TestFromSDKResponse_Usage(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		StopReason: anthropic.StopReasonMaxTokens,
		Usage:      anthropic.Usage{InputTokens: 1234, OutputTokens: 567},
	}

	result := fromSDKResponse(msg)

	if result.Usage.InputTokens != 1234 {
		t.Errorf("input tokens = %d, want 1234", result.Usage.InputTokens)
	}
	if result.Usage.OutputTokens != 567 {
		t.Errorf("output tokens = %d, want 567", result.Usage.OutputTokens)
	}
	if result.Text != "" {
		t.Errorf("text = %q, want empty", result.Text)
	}
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Urgency: Low"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`))
	}))
	defer srv.Close()

	c := New("test-key", "claude-test", option.WithBaseURL(srv.URL))
	if c.Name() != "Claude" || c.Model() != "claude-test" {
		t.Errorf("name/model = %q/%q", c.Name(), c.Model())
	}

	resp, err := c.Send(context.Background(), &triage.LLMRequest{
		MaxTokens: 256,
		System:    "you triage tickets",
		Messages:  []triage.Message{{Role: triage.RoleUser, Content: "printer on fire"}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Text != "Urgency: Low" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	if got["model"] != "claude-test" {
		t.Errorf("request model = %v", got["model"])
	}
	if got["max_tokens"] != float64(256) {
		t.Errorf("request max_tokens = %v", got["max_tokens"])
	}
	system, _ := json.Marshal(got["system"])
	if !strings.Contains(string(system), "you triage tickets") {
		t.Errorf("request system = %s", system)
	}
}

func TestClient_SendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	c := New("bad-key", "claude-test", option.WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), &triage.LLMRequest{
		MaxTokens: 16,
		Messages:  []triage.Message{{Role: triage.RoleUser, Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "claude api:") {
		t.Errorf("err = %v, want claude api prefix", err)
	}
}

func TestClient_SendDoesNotRetry(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := New("k", "claude-test", option.WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), &triage.LLMRequest{
		MaxTokens: 16,
		Messages:  []triage.Message{{Role: triage.RoleUser, Content: "x"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}
