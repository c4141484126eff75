// Triage classifies IT support tickets with a local or hosted language model
// and writes triaged copies next to the originals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	vc "github.com/linnemanlabs/tickettriage/internal/cfg"
	"github.com/linnemanlabs/tickettriage/internal/llm/claude"
	"github.com/linnemanlabs/tickettriage/internal/llm/gemini"
	"github.com/linnemanlabs/tickettriage/internal/llm/ollama"
	"github.com/linnemanlabs/tickettriage/internal/llm/openai"
	"github.com/linnemanlabs/tickettriage/internal/notify/slack"
	"github.com/linnemanlabs/tickettriage/internal/triage"
	"github.com/linnemanlabs/tickettriage/internal/triage/memstore"
)

const appName = "ticket-triage"
const component = "triage"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	// cancel the run on SIGINT/SIGTERM, the ticket in flight is left untriaged
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	// .env values become plain environment variables, so flags still win
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	// Register flags for each package config
	var (
		appCfg   vc.Config
		logCfg   log.Config
		traceCfg otelx.Config
	)
	appCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	// TRIAGE_ prefixed variables fill flags not given on the command line,
	// then the vendor conventional variables fill whatever is still empty
	cfg.FillFromEnv(flag.CommandLine, "TRIAGE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	appCfg.ApplyEnv(os.LookupEnv)

	// Validate all configs
	if err := errors.Join(
		appCfg.Validate(),
		logCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Setup logger
	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"backend", appCfg.Backend,
		"model", appCfg.ModelName(),
		"input_dir", appCfg.InputDir,
		"output_dir", appCfg.OutputDir,
		"move", appCfg.Move,
		"skip_failed", appCfg.SkipFailed,
		"enable_tracing", traceCfg.EnableTracing,
	)

	// Setup otel for tracing, model and webhook calls become child spans of
	// the per-ticket span
	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	// Setup metrics, only written out when a metrics file is configured
	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, v.Component, &vi)
	triageMetrics := triage.NewMetrics(m.Registry())

	// Initialize the selected LLM provider
	provider, err := newProvider(ctx, &appCfg, L)
	if err != nil {
		return fmt.Errorf("init %s provider: %w", appCfg.Backend, err)
	}
	L.Info(ctx, "initialized LLM provider", "provider", provider.Name(), "model", provider.Model())

	// Backends that need local setup (pulling an Ollama model) do it before
	// the first ticket
	if p, ok := provider.(triage.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare %s: %w", provider.Name(), err)
		}
	}

	// Initialize the triage engine with metrics hooks
	engine := triage.NewEngine(provider, L, triageMetrics.Hooks(),
		triage.WithMaxTokens(appCfg.MaxTokens),
		triage.WithRequestTimeout(time.Duration(appCfg.RequestTimeoutSeconds)*time.Second),
	)

	// Setup notifier if configured
	var notifier triage.Notifier
	if appCfg.SlackWebhookURL != "" {
		notifier = slack.New(appCfg.SlackWebhookURL, L)
		L.Info(ctx, "notifier enabled", "type", "slack")
	}

	// Results only need to live for one run, so the in-memory store is enough
	svc := triage.NewService(memstore.New(), engine, L, triageMetrics, notifier)

	_, runErr := svc.Process(ctx, triage.Options{
		InputDir:    appCfg.InputDir,
		OutputDir:   appCfg.OutputDir,
		Ext:         appCfg.Ext,
		Move:        appCfg.Move,
		SkipFailed:  appCfg.SkipFailed,
		FrontMatter: appCfg.FrontMatter,
	})

	if appCfg.MetricsFile != "" {
		if err := writeMetrics(appCfg.MetricsFile, m.Registry()); err != nil {
			L.Error(ctx, err, "failed to write metrics file", "path", appCfg.MetricsFile)
		} else {
			L.Info(ctx, "wrote metrics file", "path", appCfg.MetricsFile)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		L.Warn(context.Background(), "shutdown signal received, run stopped early")
		return nil
	}
	return runErr
}

// loadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// newProvider builds the backend selected by -model.
func newProvider(ctx context.Context, c *vc.Config, L log.Logger) (triage.Provider, error) {
	switch c.Backend {
	case vc.BackendOllama:
		return ollama.New(c.OllamaHost, c.OllamaModel, L)
	case vc.BackendGemini:
		return gemini.New(ctx, c.GeminiAPIKey, c.GeminiModel, "")
	case vc.BackendClaude:
		return claude.New(c.ClaudeAPIKey, c.ClaudeModel), nil
	case vc.BackendOpenAI:
		return openai.New(c.OpenAIAPIKey, c.OpenAIModel, c.OpenAIBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// writeMetrics writes the run's metrics in the node_exporter textfile format.
// Go runtime, process and HTTP server families are left out since the
// collecting node_exporter reports its own under the same names.
func writeMetrics(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, textfileGatherer{g}); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

var textfileExcluded = []string{"go_", "process_", "http_"}

type textfileGatherer struct {
	prometheus.Gatherer
}

func (t textfileGatherer) Gather() ([]*dto.MetricFamily, error) {
	mfs, err := t.Gatherer.Gather()
	out := mfs[:0]
	for _, mf := range mfs {
		if !hasAnyPrefix(mf.GetName(), textfileExcluded) {
			out = append(out, mf)
		}
	}
	return out, err
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
