package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"contextkeeper/internal/compaction"
)

// Config is the root configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Compaction CompactionConfig `mapstructure:"compaction" yaml:"compaction"`
	Model      ModelConfig      `mapstructure:"model" yaml:"model"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// StorageConfig selects the history backend.
type StorageConfig struct {
	// Driver is "file" (history next to each task) or "sqlite".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path is the sqlite database file; empty means ~/.contextkeeper/history.db.
	Path string `mapstructure:"path" yaml:"path"`
	// Compress writes file histories zstd-compressed.
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// CompactionConfig tunes the compaction engine.
type CompactionConfig struct {
	ImpactThreshold      float64  `mapstructure:"impact_threshold" yaml:"impact_threshold"`
	FirstMessageMaxChars int      `mapstructure:"first_message_max_chars" yaml:"first_message_max_chars"`
	DefaultContextWindow int      `mapstructure:"default_context_window" yaml:"default_context_window"`
	ReadTools            []string `mapstructure:"read_tools" yaml:"read_tools"`
	WriteTools           []string `mapstructure:"write_tools" yaml:"write_tools"`
}

// ModelConfig describes the model whose window the engine budgets for.
type ModelConfig struct {
	ID            string `mapstructure:"id" yaml:"id"`
	Provider      string `mapstructure:"provider" yaml:"provider"`
	ContextWindow int    `mapstructure:"context_window" yaml:"context_window"`
}

// Storage drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned for an unsupported storage.driver.
var ErrUnknownDriver = errors.New("config: unknown storage driver")

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load reads configuration. Precedence: environment > file > defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("CONTEXTKEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		if err := viper.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Validate checks the storage driver and compaction settings.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}
	return c.EngineConfig().Validate()
}

// EngineConfig maps the compaction section onto compaction.Config, keeping
// compaction defaults for unset fields.
func (c *Config) EngineConfig() compaction.Config {
	return compaction.Config{
		ImpactThreshold:      c.Compaction.ImpactThreshold,
		FirstMessageMaxChars: c.Compaction.FirstMessageMaxChars,
		DefaultContextWindow: c.Compaction.DefaultContextWindow,
		ReadTools:            c.Compaction.ReadTools,
		WriteTools:           c.Compaction.WriteTools,
	}.WithDefaults()
}

// ModelInfo returns the configured model description.
func (c *Config) ModelInfo() compaction.ModelInfo {
	return compaction.ModelInfo{
		ID:            c.Model.ID,
		Provider:      c.Model.Provider,
		ContextWindow: c.Model.ContextWindow,
	}
}

// GetConfig returns the last loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Set sets a key and persists the file when one was loaded.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)
	if configPath != "" {
		return save()
	}
	return nil
}

// save writes all settings to configPath. Callers hold mu.
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Reset clears loaded state. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
