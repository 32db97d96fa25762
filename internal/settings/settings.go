// Package settings reads the flat KEY=VALUE settings file that drives batch
// runs. Lines starting with '#' are comments; later keys override earlier
// ones; every key is optional and falls back to a default.
package settings

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/funnelworks/verdict/internal/runner"
)

// DefaultFileName is looked for in the working directory when --settings is
// not given.
const DefaultFileName = "verdict_settings.txt"

// Completion providers selectable via PROVIDER.
const (
	ProviderOllama  = "ollama"
	ProviderCopilot = "copilot"
	ProviderMock    = "mock"
)

// Settings is the full configuration surface of a batch run.
type Settings struct {
	Model       string  `mapstructure:"MODEL"`
	Temperature float64 `mapstructure:"TEMPERATURE"`
	TopP        float64 `mapstructure:"TOP_P"`
	MaxTokens   int     `mapstructure:"MAX_TOKENS"`
	MaxRetries  int     `mapstructure:"MAX_RETRIES"`
	TimeoutSec  int     `mapstructure:"TIMEOUT"`
	InputPath   string  `mapstructure:"INPUT_PATH"`
	OutputPath  string  `mapstructure:"OUTPUT_PATH"`
	TestMode    bool    `mapstructure:"TEST_MODE"`

	BaseURL      string `mapstructure:"BASE_URL"`
	Provider     string `mapstructure:"PROVIDER"`
	Ruleset      string `mapstructure:"RULESET"`
	RetryDelayMs int    `mapstructure:"RETRY_DELAY_MS"`
	Workers      int    `mapstructure:"WORKERS"`
	FileDelayMs  int    `mapstructure:"FILE_DELAY_MS"`
	CacheDir     string `mapstructure:"CACHE_DIR"`
	SaveAttempts bool   `mapstructure:"SAVE_ATTEMPTS"`
}

// Default returns the stock settings used when a key is absent.
func Default() Settings {
	return Settings{
		Model:       "llama3.3:70b",
		Temperature: 0.1,
		TopP:        0.2,
		MaxTokens:   400,
		MaxRetries:  2,
		TimeoutSec:  300,

		BaseURL:      "http://localhost:11434",
		Provider:     ProviderOllama,
		RetryDelayMs: 500,
		Workers:      1,
		FileDelayMs:  2000,
		SaveAttempts: true,
	}
}

// Load reads and parses a settings file, layering it over the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Parse decodes settings file contents. Unknown keys are an error so typos
// don't silently fall back to defaults.
func Parse(data []byte) (*Settings, error) {
	raw, err := parseKeyValues(data)
	if err != nil {
		return nil, err
	}

	s := Default()

	var metadata mapstructure.Metadata

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		WeaklyTypedInput: true,
		Metadata:         &metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("building settings decoder: %w", err)
	}

	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}

	if len(metadata.Unused) > 0 {
		unknown := make([]string, len(metadata.Unused))
		copy(unknown, metadata.Unused)
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown settings key(s): %s", strings.Join(unknown, ", "))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func parseKeyValues(data []byte) (map[string]string, error) {
	raw := map[string]string{}

	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE, got %q", i+1, line)
		}

		// Later keys override earlier ones.
		raw[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return raw, nil
}

func (s *Settings) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("MODEL must not be empty")
	}
	if s.Temperature < 0 {
		return fmt.Errorf("TEMPERATURE must be >= 0, got %g", s.Temperature)
	}
	if s.TopP <= 0 || s.TopP > 1 {
		return fmt.Errorf("TOP_P must be in (0, 1], got %g", s.TopP)
	}
	if s.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be > 0, got %d", s.MaxTokens)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0, got %d", s.MaxRetries)
	}
	if s.TimeoutSec <= 0 {
		return fmt.Errorf("TIMEOUT must be > 0 seconds, got %d", s.TimeoutSec)
	}
	if s.RetryDelayMs < 0 {
		return fmt.Errorf("RETRY_DELAY_MS must be >= 0, got %d", s.RetryDelayMs)
	}
	if s.Workers < 1 {
		return fmt.Errorf("WORKERS must be >= 1, got %d", s.Workers)
	}
	if s.FileDelayMs < 0 {
		return fmt.Errorf("FILE_DELAY_MS must be >= 0, got %d", s.FileDelayMs)
	}

	switch s.Provider {
	case ProviderOllama, ProviderCopilot, ProviderMock:
	default:
		return fmt.Errorf("PROVIDER must be one of %s, %s or %s, got %q",
			ProviderOllama, ProviderCopilot, ProviderMock, s.Provider)
	}

	return nil
}

// RunnerConfig converts the settings into the runner's retry and sampling
// configuration.
func (s *Settings) RunnerConfig() runner.Config {
	return runner.Config{
		Model:       s.Model,
		Temperature: s.Temperature,
		TopP:        s.TopP,
		MaxTokens:   s.MaxTokens,
		MaxRetries:  s.MaxRetries,
		RetryDelay:  time.Duration(s.RetryDelayMs) * time.Millisecond,
		Timeout:     time.Duration(s.TimeoutSec) * time.Second,
	}
}

// FileDelay is the pause between input files in sequential runs.
func (s *Settings) FileDelay() time.Duration {
	return time.Duration(s.FileDelayMs) * time.Millisecond
}

// WriteExample writes a fully commented settings file with the defaults
// filled in. Used by `verdict init --defaults`.
func WriteExample(path string) error {
	d := Default()

	var b strings.Builder

	b.WriteString("# verdict settings\n")
	b.WriteString("# Lines starting with '#' are ignored. Later keys override earlier ones.\n\n")

	b.WriteString("# Where to read session logs from and where to write validated artifacts.\n")
	b.WriteString("INPUT_PATH=logs\n")
	b.WriteString("OUTPUT_PATH=validated\n\n")

	b.WriteString("# Completion service. PROVIDER is one of: ollama, copilot, mock.\n")
	fmt.Fprintf(&b, "PROVIDER=%s\n", d.Provider)
	fmt.Fprintf(&b, "BASE_URL=%s\n", d.BaseURL)
	fmt.Fprintf(&b, "MODEL=%s\n\n", d.Model)

	b.WriteString("# Sampling parameters passed to the model.\n")
	fmt.Fprintf(&b, "TEMPERATURE=%g\n", d.Temperature)
	fmt.Fprintf(&b, "TOP_P=%g\n", d.TopP)
	fmt.Fprintf(&b, "MAX_TOKENS=%d\n\n", d.MaxTokens)

	b.WriteString("# Retry policy. MAX_RETRIES corrective re-asks follow the first attempt;\n")
	b.WriteString("# TIMEOUT (seconds) bounds each individual call.\n")
	fmt.Fprintf(&b, "MAX_RETRIES=%d\n", d.MaxRetries)
	fmt.Fprintf(&b, "RETRY_DELAY_MS=%d\n", d.RetryDelayMs)
	fmt.Fprintf(&b, "TIMEOUT=%d\n\n", d.TimeoutSec)

	b.WriteString("# Batch behavior. TEST_MODE limits a run to the first three files.\n")
	fmt.Fprintf(&b, "TEST_MODE=false\n")
	fmt.Fprintf(&b, "WORKERS=%d\n", d.Workers)
	fmt.Fprintf(&b, "FILE_DELAY_MS=%d\n", d.FileDelayMs)
	fmt.Fprintf(&b, "SAVE_ATTEMPTS=%t\n\n", d.SaveAttempts)

	b.WriteString("# Optional extras. RULESET points at a YAML validation ruleset;\n")
	b.WriteString("# CACHE_DIR enables outcome caching.\n")
	b.WriteString("#RULESET=rules/session-outcome.yaml\n")
	b.WriteString("#CACHE_DIR=.verdict-cache\n")

	return os.WriteFile(path, []byte(b.String()), 0644)
}
