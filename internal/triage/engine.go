// internal/triage/engine.go
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/tickettriage/internal/ticket"
)

const (
	// ResponseTokens is the default cap on report length.
	ResponseTokens = 2048

	tracerName = "github.com/linnemanlabs/tickettriage/internal/triage"
)

// errEmptyResponse marks a model call that succeeded but produced no text.
var errEmptyResponse = errors.New("empty response")

// EngineHooks receives instrumentation callbacks from the engine. Nil fields are skipped.
type EngineHooks struct {
	OnLLMCall  func(backend string, inputTokens, outputTokens int, duration float64, err error)
	OnComplete func(e *CompleteEvent)
}

// CompleteEvent describes a finished ticket triage.
type CompleteEvent struct {
	Status    Status
	Backend   string
	Model     string
	Duration  float64
	TokensIn  int
	TokensOut int
	Urgency   string
	Category  string
}

// RunResult is the outcome of Engine.Run for one ticket.
type RunResult struct {
	Status           Status
	Report           Report
	Err              error
	Model            string
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         float64
	InputTokensUsed  int
	OutputTokensUsed int
}

// Engine sends tickets to a Provider and interprets the reply.
type Engine struct {
	provider  Provider
	logger    log.Logger
	hooks     EngineHooks
	tracer    trace.Tracer
	maxTokens int
	timeout   time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxTokens caps the length of the generated report.
func WithMaxTokens(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithRequestTimeout bounds each model call. Zero means no extra deadline.
func WithRequestTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.timeout = d }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// NewEngine creates a new triage engine with the given dependencies.
func NewEngine(provider Provider, logger log.Logger, hooks EngineHooks, opts ...EngineOption) *Engine {
	if provider == nil {
		panic(xerrors.New("triage provider is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	e := &Engine{
		provider:  provider,
		logger:    logger,
		hooks:     hooks,
		tracer:    otel.Tracer(tracerName),
		maxTokens: ResponseTokens,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Backend returns the provider's display name.
func (e *Engine) Backend() string { return e.provider.Name() }

// Model returns the configured model of the provider.
func (e *Engine) Model() string { return e.provider.Model() }

// Run triages a single ticket with one model call. Failures are reported in
// the result, never returned: the report text then carries the error message
// so the ticket can still be written out.
func (e *Engine) Run(ctx context.Context, id string, t *ticket.Ticket) *RunResult {
	start := time.Now()
	backend := e.provider.Name()

	ctx, span := e.tracer.Start(ctx, "triage.Run", trace.WithAttributes(
		attribute.String("triage.id", id),
		attribute.String("triage.ticket", t.Name),
		attribute.String("llm.backend", backend),
		attribute.String("llm.model", e.provider.Model()),
	))
	defer span.End()

	L := e.logger.With(
		"triage_id", id,
		"ticket", t.Name,
		"backend", backend,
	)

	rr := &RunResult{StartedAt: start, Model: e.provider.Model()}

	L.Info(ctx, "sending ticket for triage", "model", e.provider.Model())

	resp, err := e.send(ctx, &LLMRequest{
		MaxTokens: e.maxTokens,
		System:    buildSystemPrompt(),
		Messages: []Message{
			{Role: RoleUser, Content: buildTicketPrompt(t.Content)},
		},
	})
	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = errEmptyResponse
	}

	if err != nil {
		L.Error(ctx, err, "triage failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		rr.Status = StatusFailed
		rr.Err = err
		rr.Report = Report{Raw: failureText(backend, err)}
		if resp != nil {
			rr.InputTokensUsed = resp.Usage.InputTokens
			rr.OutputTokensUsed = resp.Usage.OutputTokens
		}
	} else {
		rr.Status = StatusComplete
		rr.Report = ParseReport(resp.Text)
		rr.InputTokensUsed = resp.Usage.InputTokens
		rr.OutputTokensUsed = resp.Usage.OutputTokens
		if resp.Model != "" {
			rr.Model = resp.Model
		}
		L.Info(ctx, "received triage report",
			"label", rr.Report.Label(),
			"new_status", rr.Report.Status,
			"stop_reason", resp.StopReason,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
	}

	rr.CompletedAt = time.Now()
	rr.Duration = rr.CompletedAt.Sub(start).Seconds()

	span.SetAttributes(
		attribute.String("triage.status", string(rr.Status)),
		attribute.String("triage.label", rr.Report.Label()),
		attribute.Int("llm.tokens.input", rr.InputTokensUsed),
		attribute.Int("llm.tokens.output", rr.OutputTokensUsed),
	)

	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(&CompleteEvent{
			Status:    rr.Status,
			Backend:   backend,
			Model:     rr.Model,
			Duration:  rr.Duration,
			TokensIn:  rr.InputTokensUsed,
			TokensOut: rr.OutputTokensUsed,
			Urgency:   rr.Report.Urgency,
			Category:  rr.Report.Category,
		})
	}

	return rr
}

func (e *Engine) send(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	callStart := time.Now()
	resp, err := e.provider.Send(ctx, req)
	if e.hooks.OnLLMCall != nil {
		var in, out int
		if resp != nil {
			in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
		}
		e.hooks.OnLLMCall(e.provider.Name(), in, out, time.Since(callStart).Seconds(), err)
	}
	return resp, err
}

// failureText is the report written in place of a triage when the model call fails.
func failureText(backend string, err error) string {
	if errors.Is(err, errEmptyResponse) {
		return fmt.Sprintf("Error: Empty response from %s.", backend)
	}
	return fmt.Sprintf("Error during %s triage: %v", backend, err)
}
