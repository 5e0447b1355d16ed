package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "rebib/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RateLimit is the sustained request rate against the index in
	// requests per second, shared by all workers. Zero disables limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
}

// FormatBibTeX is the only serialization format identifier supported.
const FormatBibTeX = "bibtex"

// ResolveConfig holds settings for the resolve stage.
type ResolveConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Input is the bibliography to enrich.
	Input string `json:"input" yaml:"input" mapstructure:"input" validate:"required"`

	// Output receives the updated entries. When UntouchedOutput is empty,
	// untouched entries are appended after a separator comment.
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"required"`

	// UntouchedOutput optionally receives untouched entries in a separate file.
	UntouchedOutput string `json:"untouched_output,omitempty" yaml:"untouched_output,omitempty" mapstructure:"untouched_output"`

	// Workers is the number of concurrent resolutions (default 5).
	// A value of 1 resolves entries sequentially in input order.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"min=1"`

	// Interactive enables the operator prompt for ambiguous entries.
	Interactive bool `json:"interactive" yaml:"interactive" mapstructure:"interactive"`

	// FallbackFirst selects the first candidate for ambiguous entries,
	// with a warning, instead of deferring them.
	FallbackFirst bool `json:"fallback_first" yaml:"fallback_first" mapstructure:"fallback_first"`

	// Format is the serialization format identifier.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=bibtex"`

	// MaxResults is the number of ranked candidates requested per search (default 2).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"min=1,max=1000"`

	// Attempts bounds how many times a resolution is tried (default 5).
	Attempts int `json:"attempts" yaml:"attempts" mapstructure:"attempts" validate:"min=1"`

	// Report, when set, receives a YAML summary of every entry's outcome.
	Report string `json:"report,omitempty" yaml:"report,omitempty" mapstructure:"report"`

	// Ledger, when set, is the SQLite run history database.
	Ledger string `json:"ledger,omitempty" yaml:"ledger,omitempty" mapstructure:"ledger"`

	// MetricsFile, when set, receives Prometheus metrics in text format.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
}

// DefaultResolveConfig returns a ResolveConfig with defaults applied.
func DefaultResolveConfig() ResolveConfig {
	return ResolveConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "rebib/0.1",
			RateLimit: 1,
		},
		Workers:    5,
		Format:     FormatBibTeX,
		MaxResults: 2,
		Attempts:   5,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and returns the first violation.
func (c ResolveConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid resolve config: %w", err)
	}
	return nil
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "console" (human-readable) or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}
