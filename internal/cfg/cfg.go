package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Summary provider selection values.
const (
	ProviderOllama = "ollama"
	ProviderClaude = "claude"
	ProviderNone   = "none"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	StatusStorePath       string
	StatusTTLSeconds      int
	Workers               int
	QueueSize             int
	SummaryProvider       string
	SummaryTimeoutSeconds int
	OllamaURL             string
	OllamaModel           string
	ClaudeAPIKey          string
	ClaudeModel           string
	PresidioURL           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.StatusStorePath, "status-store-path", "", "bbolt file for job status tracking (empty = in-memory)")
	fs.IntVar(&c.StatusTTLSeconds, "status-ttl-seconds", 3600, "seconds a job status stays readable after its last update (1..86400)")
	fs.IntVar(&c.Workers, "workers", 4, "pipeline worker count (1..64)")
	fs.IntVar(&c.QueueSize, "queue-size", 100, "pending job queue capacity (1..10000)")
	fs.StringVar(&c.SummaryProvider, "summary-provider", ProviderOllama, "summary backend: ollama, claude, or none")
	fs.IntVar(&c.SummaryTimeoutSeconds, "summary-timeout-seconds", 30, "per-attempt summary generation timeout (1..300)")
	fs.StringVar(&c.OllamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	fs.StringVar(&c.OllamaModel, "ollama-model", "qwen2.5:1.5b-instruct", "Ollama model for summary generation")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude summary backend")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for summary generation")
	fs.StringVar(&c.PresidioURL, "presidio-url", "", "Presidio analyzer URL for NER detection (empty = pattern detection only)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-risk notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.StatusTTLSeconds <= 0 || c.StatusTTLSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid STATUS_TTL_SECONDS %d (must be 1..86400)", c.StatusTTLSeconds))
	}

	if c.Workers <= 0 || c.Workers > 64 {
		errs = append(errs, fmt.Errorf("invalid WORKERS %d (must be 1..64)", c.Workers))
	}
	if c.QueueSize <= 0 || c.QueueSize > 10000 {
		errs = append(errs, fmt.Errorf("invalid QUEUE_SIZE %d (must be 1..10000)", c.QueueSize))
	}

	if c.SummaryTimeoutSeconds <= 0 || c.SummaryTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SUMMARY_TIMEOUT_SECONDS %d (must be 1..300)", c.SummaryTimeoutSeconds))
	}

	switch c.SummaryProvider {
	case ProviderOllama:
		if c.OllamaURL == "" {
			errs = append(errs, errors.New("OLLAMA_URL is required when SUMMARY_PROVIDER is ollama"))
		}
		if c.OllamaModel == "" {
			errs = append(errs, errors.New("OLLAMA_MODEL is required when SUMMARY_PROVIDER is ollama"))
		}
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when SUMMARY_PROVIDER is claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when SUMMARY_PROVIDER is claude"))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("invalid SUMMARY_PROVIDER %q (must be ollama, claude, or none)", c.SummaryProvider))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
