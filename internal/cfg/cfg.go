package cfg

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"
)

// Backend names accepted by -model.
const (
	BackendOllama = "ollama"
	BackendGemini = "gemini"
	BackendClaude = "claude"
	BackendOpenAI = "openai"
)

// Backends lists the supported backends in the order shown in -help.
var Backends = []string{BackendOllama, BackendGemini, BackendClaude, BackendOpenAI}

// Config holds the triage driver settings. It follows the common
// RegisterFlags / Validate convention used by every package config.
type Config struct {
	Backend               string
	InputDir              string
	OutputDir             string
	Ext                   string
	Move                  bool
	SkipFailed            bool
	FrontMatter           bool
	MetricsFile           string
	SlackWebhookURL       string
	RequestTimeoutSeconds int
	MaxTokens             int
	OllamaHost            string
	OllamaModel           string
	GeminiAPIKey          string
	GeminiModel           string
	ClaudeAPIKey          string
	ClaudeModel           string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend, "model", BackendOllama, "model backend used for triage: "+strings.Join(Backends, "|")+"\n"+
		"  ollama: local Ollama service, requires OLLAMA_MODEL\n"+
		"  gemini: Google Gemini API, requires GOOGLE_API_KEY\n"+
		"  claude: Anthropic API, requires ANTHROPIC_API_KEY\n"+
		"  openai: OpenAI-compatible API, requires OPENAI_API_KEY or OPENAI_BASE_URL")
	fs.StringVar(&c.InputDir, "input-dir", "tickets-original", "directory holding the tickets to triage")
	fs.StringVar(&c.OutputDir, "output-dir", "tickets-triaged", "directory receiving triaged tickets")
	fs.StringVar(&c.Ext, "ext", ".md", "only files with this extension are treated as tickets")
	fs.BoolVar(&c.Move, "move", false, "remove the original ticket once it has been triaged successfully")
	fs.BoolVar(&c.SkipFailed, "skip-failed", false, "do not write tickets whose model call failed")
	fs.BoolVar(&c.FrontMatter, "front-matter", false, "prefix triaged tickets with YAML front matter holding the classification")
	fs.StringVar(&c.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run summaries")
	fs.IntVar(&c.RequestTimeoutSeconds, "request-timeout-seconds", 300, "deadline for a single model call (1..3600)")
	fs.IntVar(&c.MaxTokens, "max-tokens", 2048, "maximum tokens in a triage report (1..65536)")
	fs.StringVar(&c.OllamaHost, "ollama-host", "", "Ollama base URL (default http://localhost:11434)")
	fs.StringVar(&c.OllamaModel, "ollama-model", "", "Ollama model name, e.g. gemma3:12b")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the Gemini API")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-2.5-flash", "Gemini model to use")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Anthropic API")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI API")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "OpenAI model to use")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "base URL of an OpenAI-compatible endpoint")
}

// ApplyEnv fills empty credential and model fields from the conventional
// provider environment variables. Values already set by flags or TRIAGE_*
// variables win.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	fill := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	fill(&c.OllamaHost, "OLLAMA_HOST")
	fill(&c.OllamaModel, "OLLAMA_MODEL")
	fill(&c.GeminiAPIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	fill(&c.ClaudeAPIKey, "ANTHROPIC_API_KEY")
	fill(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	fill(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("invalid MODEL %q (must be one of %s)", c.Backend, strings.Join(Backends, ", ")))
	}

	if c.InputDir == "" {
		errs = append(errs, errors.New("INPUT_DIR is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("OUTPUT_DIR is required"))
	}
	if c.InputDir != "" && c.InputDir == c.OutputDir {
		errs = append(errs, fmt.Errorf("INPUT_DIR and OUTPUT_DIR must differ (both %q)", c.InputDir))
	}

	// extension must be a dotted suffix so "md" does not match "cmd"
	if !strings.HasPrefix(c.Ext, ".") || len(c.Ext) < 2 {
		errs = append(errs, fmt.Errorf("invalid EXT %q (must start with a dot)", c.Ext))
	}

	if c.RequestTimeoutSeconds <= 0 || c.RequestTimeoutSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid REQUEST_TIMEOUT_SECONDS %d (must be 1..3600)", c.RequestTimeoutSeconds))
	}
	if c.MaxTokens <= 0 || c.MaxTokens > 65536 {
		errs = append(errs, fmt.Errorf("invalid MAX_TOKENS %d (must be 1..65536)", c.MaxTokens))
	}

	// credentials are only required for the selected backend
	switch c.Backend {
	case BackendOllama:
		if c.OllamaModel == "" {
			errs = append(errs, errors.New("OLLAMA_MODEL is required for the ollama backend"))
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_API_KEY is required for the gemini backend"))
		}
		if c.GeminiModel == "" {
			errs = append(errs, errors.New("GEMINI_MODEL is required for the gemini backend"))
		}
	case BackendClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the claude backend"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required for the claude backend"))
		}
	case BackendOpenAI:
		// local OpenAI-compatible servers usually run without a key
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required for the openai backend"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required for the openai backend"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ModelName returns the model configured for the selected backend.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.OllamaModel
	case BackendGemini:
		return c.GeminiModel
	case BackendClaude:
		return c.ClaudeModel
	case BackendOpenAI:
		return c.OpenAIModel
	}
	return ""
}
