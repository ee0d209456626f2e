// Package logger wraps zerolog with a process-wide logger configured from
// the log section of the contextkeeper config.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // console, json
	File   string `json:"file" mapstructure:"file"`     // log file path, empty means stderr only
}

var (
	globalLogger zerolog.Logger
	logFile      *os.File
	mu           sync.RWMutex
	initialized  bool
)

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Init configures the global logger. Logs go to stderr so command output on
// stdout stays machine readable.
func Init(config LogConfig) error {
	var writers []io.Writer
	if strings.ToLower(config.Format) == "json" {
		writers = append(writers, os.Stderr)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	var f *os.File
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		var err error
		f, err = os.OpenFile(config.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", config.File, err)
		}
		writers = append(writers, f)
	}

	var output io.Writer = writers[0]
	if len(writers) > 1 {
		output = zerolog.MultiLevelWriter(writers...)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	globalLogger = zerolog.New(output).Level(parseLevel(config.Level)).With().Timestamp().Logger()
	initialized = true
	return nil
}

// SetOutput points the global logger at w. Used by tests to capture output.
func SetOutput(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	initialized = true
}

// Get returns the global logger. Before Init it logs warnings and above to stderr.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		l := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
		return &l
	}
	return &globalLogger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Close closes the log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Debug returns a debug level event.
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info returns an info level event.
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn returns a warn level event.
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error returns an error level event.
func Error() *zerolog.Event {
	return Get().Error()
}
