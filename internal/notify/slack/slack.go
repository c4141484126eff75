// Package slack sends triage run summaries to Slack via incoming webhooks.
package slack

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
	slackapi "github.com/slack-go/slack"

	"github.com/linnemanlabs/tickettriage/internal/tracehttp"
	"github.com/linnemanlabs/tickettriage/internal/triage"
)

const (
	maxTicketsLen = 3000
	maxHeaderLen  = 150
	httpTimeout   = 10 * time.Second
)

// Notifier sends run summaries to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     tracehttp.NewClient(httpTimeout),
		logger:     logger,
	}
}

// Send posts a run summary to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, s *triage.Summary) error {
	if n.webhookURL == "" {
		return nil
	}

	if err := slackapi.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, buildMessage(s)); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}

	n.logger.Info(ctx, "posted run summary to slack", "run_id", s.RunID, "tickets", s.Processed)
	return nil
}

func buildMessage(s *triage.Summary) *slackapi.WebhookMessage {
	return &slackapi.WebhookMessage{
		Blocks: &slackapi.Blocks{BlockSet: []slackapi.Block{
			headerBlock(s),
			slackapi.NewDividerBlock(),
			fieldsBlock(s),
			slackapi.NewDividerBlock(),
			ticketsBlock(s),
			slackapi.NewDividerBlock(),
			contextBlock(s),
		}},
	}
}

func mrkdwn(text string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.MarkdownType, text, false, false)
}

func headerBlock(s *triage.Summary) *slackapi.HeaderBlock {
	emoji := severityEmoji(s)
	text := fmt.Sprintf("%s Ticket triage: %d processed, %d failed via %s",
		emoji, s.Processed, s.Failed, s.Backend)

	return slackapi.NewHeaderBlock(
		slackapi.NewTextBlockObject(slackapi.PlainTextType, truncate(text, maxHeaderLen), true, false),
	)
}

func fieldsBlock(s *triage.Summary) *slackapi.SectionBlock {
	var tokens int
	for _, r := range s.Results {
		tokens += r.TokensIn + r.TokensOut
	}

	fields := []*slackapi.TextBlockObject{
		mrkdwn(fmt.Sprintf("*Backend:* %s", s.Backend)),
		mrkdwn(fmt.Sprintf("*Model:* %s", shortModel(s.Model))),
		mrkdwn(fmt.Sprintf("*Processed:* %d", s.Processed)),
		mrkdwn(fmt.Sprintf("*Failed:* %d  *Skipped:* %d", s.Failed, s.Skipped)),
		mrkdwn(fmt.Sprintf("*Duration:* %.1fs", s.Duration)),
		mrkdwn(fmt.Sprintf("*Tokens:* %d", tokens)),
	}

	return slackapi.NewSectionBlock(nil, fields, nil)
}

// ticketsBlock lists one line per ticket, dropping lines that would push the
// section past Slack's text limit.
func ticketsBlock(s *triage.Summary) *slackapi.SectionBlock {
	const prefix = "*Tickets*\n\n"

	var b strings.Builder
	shown := 0
	for _, r := range s.Results {
		line := ticketLine(r)
		if len(prefix)+b.Len()+len(line)+len(moreLine(len(s.Results))) > maxTicketsLen {
			break
		}
		b.WriteString(line)
		shown++
	}
	if rest := len(s.Results) - shown; rest > 0 {
		b.WriteString(moreLine(rest))
	}

	text := b.String()
	if text == "" {
		text = "_No tickets processed._"
	}

	return slackapi.NewSectionBlock(mrkdwn(truncate(prefix+text, maxTicketsLen)), nil, nil)
}

func ticketLine(r *triage.Result) string {
	state := string(r.Status)
	switch {
	case r.Status == triage.StatusFailed && !r.Written():
		state = "failed, left untriaged"
	case r.Moved:
		state += ", moved"
	}
	return fmt.Sprintf("• `%s` %s (%s)\n", r.Ticket, r.Report.Label(), state)
}

func moreLine(n int) string {
	return fmt.Sprintf("_...and %d more_", n)
}

func contextBlock(s *triage.Summary) *slackapi.ContextBlock {
	ts := s.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return slackapi.NewContextBlock("",
		mrkdwn(fmt.Sprintf("ticket-triage • run %s • %s", s.RunID, ts.UTC().Format("2006-01-02 15:04 UTC"))),
	)
}

// severityEmoji is red when any ticket failed or was rated critical, yellow
// when any was rated high, green otherwise.
func severityEmoji(s *triage.Summary) string {
	if s.Failed > 0 {
		return "\U0001f534" // red circle
	}
	worst := ""
	for _, r := range s.Results {
		switch strings.ToLower(r.Report.Urgency) {
		case "critical":
			return "\U0001f534"
		case "high":
			worst = "high"
		}
	}
	if worst == "high" {
		return "\U0001f7e1" // yellow circle
	}
	return "\U0001f7e2" // green circle
}

// dateModelRe matches model names ending with a YYYYMMDD date suffix.
var dateModelRe = regexp.MustCompile(`-\d{8}$`)

func shortModel(model string) string {
	return dateModelRe.ReplaceAllString(model, "")
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary so
// multi-byte characters are never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
