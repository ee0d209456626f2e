package compaction

import "fmt"

// Defaults.
const (
	// DefaultImpactThreshold is the fraction of characters the optimizer must
	// save in one pass for truncation to be skipped.
	DefaultImpactThreshold = 0.3

	// DefaultFirstMessageMaxChars caps the retained first user message.
	DefaultFirstMessageMaxChars = 400_000

	// DefaultContextWindow is assumed when the model reports no window size.
	DefaultContextWindow = 128_000
)

// Config holds the tunables of the compaction engine.
type Config struct {
	// ImpactThreshold in [0,1]. Optimizer savings at or above it skip truncation.
	ImpactThreshold float64 `json:"impact_threshold" yaml:"impact_threshold"`

	// FirstMessageMaxChars caps the first user message when truncation first runs.
	FirstMessageMaxChars int `json:"first_message_max_chars" yaml:"first_message_max_chars"`

	// DefaultContextWindow is used when ModelInfo.ContextWindow is zero.
	DefaultContextWindow int `json:"default_context_window" yaml:"default_context_window"`

	// ReadTools name the tool results whose body is a whole file.
	ReadTools []string `json:"read_tools" yaml:"read_tools"`

	// WriteTools name the tool results that echo a final file content section.
	WriteTools []string `json:"write_tools" yaml:"write_tools"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ImpactThreshold:      DefaultImpactThreshold,
		FirstMessageMaxChars: DefaultFirstMessageMaxChars,
		DefaultContextWindow: DefaultContextWindow,
		ReadTools:            []string{"read_file"},
		WriteTools:           []string{"write_to_file", "replace_in_file"},
	}
}

// WithDefaults returns c with every zero field taken from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ImpactThreshold == 0 {
		c.ImpactThreshold = d.ImpactThreshold
	}
	if c.FirstMessageMaxChars == 0 {
		c.FirstMessageMaxChars = d.FirstMessageMaxChars
	}
	if c.DefaultContextWindow == 0 {
		c.DefaultContextWindow = d.DefaultContextWindow
	}
	if len(c.ReadTools) == 0 {
		c.ReadTools = d.ReadTools
	}
	if len(c.WriteTools) == 0 {
		c.WriteTools = d.WriteTools
	}
	return c
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.ImpactThreshold < 0 || c.ImpactThreshold > 1:
		return fmt.Errorf("%w: impact_threshold %v not in [0,1]", ErrInvalidConfig, c.ImpactThreshold)
	case c.FirstMessageMaxChars <= 0:
		return fmt.Errorf("%w: first_message_max_chars must be positive", ErrInvalidConfig)
	case c.DefaultContextWindow <= 0:
		return fmt.Errorf("%w: default_context_window must be positive", ErrInvalidConfig)
	}
	return nil
}
