package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	slackapi "github.com/slack-go/slack"

	"github.com/linnemanlabs/tickettriage/internal/triage"
)

func testSummary() *triage.Summary {
	return &triage.Summary{
		RunID:     "01JN123",
		Backend:   "Claude",
		Model:     "claude-sonnet-4-20250514",
		StartedAt: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
		Duration:  23.4,
		Processed: 2,
		Failed:    1,
		Results: []*triage.Result{
			{
				Ticket:     "001-printer.md",
				Status:     triage.StatusComplete,
				Report:     triage.Report{Urgency: "High", Category: "Hardware"},
				OutputPath: "tickets-triaged/001-printer.md",
				TokensIn:   800,
				TokensOut:  450,
			},
			{
				Ticket:     "002-vpn.md",
				Status:     triage.StatusFailed,
				OutputPath: "tickets-triaged/002-vpn.md",
			},
		},
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	if err := n.Send(context.Background(), testSummary()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, tickets, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Fatalf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "2 processed, 1 failed via Claude") {
		t.Errorf("header text = %q", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Errorf("header should contain red circle when a ticket failed")
	}

	tickets := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(tickets, "`001-printer.md` High/Hardware (complete)") {
		t.Errorf("tickets text = %q", tickets)
	}
	if !strings.Contains(tickets, "`002-vpn.md` unlabeled (failed)") {
		t.Errorf("tickets text = %q", tickets)
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	model := fields[1].(map[string]any)["text"].(string)
	if model != "*Model:* claude-sonnet-4" {
		t.Errorf("model field = %q", model)
	}
	tokens := fields[5].(map[string]any)["text"].(string)
	if tokens != "*Tokens:* 1250" {
		t.Errorf("tokens field = %q", tokens)
	}

	ctxText := blocks[6].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "run 01JN123") || !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context text = %q", ctxText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	if err := n.Send(context.Background(), &triage.Summary{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestTicketsBlock_TruncatesLongRuns(t *testing.T) {
	t.Parallel()

	s := &triage.Summary{}
	for i := range 500 {
		s.Results = append(s.Results, &triage.Result{
			Ticket: fmt.Sprintf("%04d-some-fairly-long-ticket-name.md", i),
			Status: triage.StatusComplete,
			Report: triage.Report{Urgency: "Medium", Category: "Software"},
		})
	}

	text := ticketsBlock(s).Text.Text

	if len(text) > maxTicketsLen {
		t.Errorf("tickets text length = %d, want <= %d", len(text), maxTicketsLen)
	}
	if !strings.Contains(text, "more_") {
		t.Error("expected a trailing count of omitted tickets")
	}
	if !strings.Contains(text, "0000-some-fairly-long-ticket-name.md") {
		t.Error("expected the first ticket to be listed")
	}
}

func TestTicketLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		r    *triage.Result
		want string
	}{
		{
			"complete",
			&triage.Result{Ticket: "a.md", Status: triage.StatusComplete, OutputPath: "x", Report: triage.Report{Urgency: "Low"}},
			"• `a.md` Low (complete)\n",
		},
		{
			"moved",
			&triage.Result{Ticket: "a.md", Status: triage.StatusComplete, OutputPath: "x", Moved: true},
			"• `a.md` unlabeled (complete, moved)\n",
		},
		{
			"skipped",
			&triage.Result{Ticket: "a.md", Status: triage.StatusFailed},
			"• `a.md` unlabeled (failed, left untriaged)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ticketLine(tt.r); got != tt.want {
				t.Errorf("ticketLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeverityEmoji(t *testing.T) {
	t.Parallel()

	withUrgency := func(failed int, urgencies ...string) *triage.Summary {
		s := &triage.Summary{Failed: failed}
		for _, u := range urgencies {
			s.Results = append(s.Results, &triage.Result{Report: triage.Report{Urgency: u}})
		}
		return s
	}

	tests := []struct {
		name string
		s    *triage.Summary
		want string
	}{
		{"failed", withUrgency(1, "Low"), "\U0001f534"},
		{"critical", withUrgency(0, "Low", "Critical"), "\U0001f534"},
		{"high", withUrgency(0, "High", "Low"), "\U0001f7e1"},
		{"low", withUrgency(0, "Low", "Medium"), "\U0001f7e2"},
		{"empty", withUrgency(0), "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := severityEmoji(tt.s); got != tt.want {
				t.Errorf("severityEmoji() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"claude-sonnet-4-20250514", "claude-sonnet-4"},
		{"gemini-2.5-flash", "gemini-2.5-flash"},
		{"gemma3:12b", "gemma3:12b"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := shortModel(tt.input); got != tt.want {
				t.Errorf("shortModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("printer.md", "High", "Hardware", "claude-sonnet-4-20250514")
	f.Add("", "", "", "")
	f.Add("<@U123> mention.md", "critical", "*bold* _italic_ ~strike~", "model")
	f.Add("ticket\x00\x01\x02", "sev\nline", "cat\ttab", "m\x00del")
	f.Add(strings.Repeat("A", 5000), "Critical", strings.Repeat("x", 10000), "model-name-20260101")
	f.Add("test", "Low", "```code block``` and <http://example.com|link>", "gemma3:12b")

	f.Fuzz(func(t *testing.T, name, urgency, category, model string) {
		s := &triage.Summary{
			RunID:     "fuzz-id",
			Backend:   "Ollama",
			Model:     model,
			Processed: 1,
			Duration:  1.0,
			StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Results: []*triage.Result{{
				Ticket: name,
				Status: triage.StatusComplete,
				Report: triage.Report{Urgency: urgency, Category: category},
			}},
		}

		// Must not panic
		msg := buildMessage(s)

		for _, b := range msg.Blocks.BlockSet {
			if h, ok := b.(*slackapi.HeaderBlock); ok && !utf8.ValidString(h.Text.Text) {
				t.Fatalf("header text is not valid UTF-8: %q", h.Text.Text)
			}
		}

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 10, "abc"},
		{"ascii", "abcdefghij", 8, "abcde..."},
		// "é" is two bytes; cutting at 5 would land inside it
		{"multibyte", "abcdéfgh", 8, "abcd..."},
		{"emoji", "\U0001f534 Ticket triage", 7, "\U0001f534..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := truncate(tt.in, tt.limit)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.limit)
			}
			if len(got) > tt.limit {
				t.Errorf("len = %d, want <= %d", len(got), tt.limit)
			}
		})
	}
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(), testSummary())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
