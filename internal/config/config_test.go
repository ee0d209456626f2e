package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"contextkeeper/internal/compaction"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("log.format = %q, want console", cfg.Log.Format)
	}
	if cfg.Storage.Driver != DriverFile {
		t.Errorf("storage.driver = %q, want file", cfg.Storage.Driver)
	}
	if cfg.Compaction.ImpactThreshold != compaction.DefaultImpactThreshold {
		t.Errorf("compaction.impact_threshold = %v, want %v", cfg.Compaction.ImpactThreshold, compaction.DefaultImpactThreshold)
	}
	if cfg.Compaction.FirstMessageMaxChars != compaction.DefaultFirstMessageMaxChars {
		t.Errorf("compaction.first_message_max_chars = %d", cfg.Compaction.FirstMessageMaxChars)
	}
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := `
log:
  level: debug
  format: json
storage:
  driver: sqlite
  compress: true
compaction:
  impact_threshold: 0.5
  read_tools: [read_file, view_file]
model:
  id: deepseek-chat
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Storage.Driver != DriverSQLite || !cfg.Storage.Compress {
		t.Errorf("storage = %+v", cfg.Storage)
	}

	engine := cfg.EngineConfig()
	if engine.ImpactThreshold != 0.5 {
		t.Errorf("engine impact threshold = %v, want 0.5", engine.ImpactThreshold)
	}
	if len(engine.ReadTools) != 2 || engine.ReadTools[1] != "view_file" {
		t.Errorf("engine read tools = %v", engine.ReadTools)
	}
	if got := cfg.ModelInfo().ID; got != "deepseek-chat" {
		t.Errorf("model id = %q", got)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("CONTEXTKEEPER_LOG_LEVEL", "warn")
	t.Setenv("CONTEXTKEEPER_MODEL_CONTEXT_WINDOW", "200000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Model.ContextWindow != 200000 {
		t.Errorf("model.context_window = %d, want 200000", cfg.Model.ContextWindow)
	}
}

func TestLoad_Priority(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONTEXTKEEPER_LOG_LEVEL", "error")

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %q, want error (env beats file)", cfg.Log.Level)
	}
}

func TestLoad_UnknownDriver(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("storage:\n  driver: redis\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Load error = %v, want ErrUnknownDriver", err)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("compaction:\n  impact_threshold: 1.5\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if !errors.Is(err, compaction.ErrInvalidConfig) {
		t.Errorf("Load error = %v, want ErrInvalidConfig", err)
	}
}

func TestSetAndSave(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if _, err := Load(configFile); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := Set("model.id", "claude-sonnet"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	Reset()
	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if cfg.Model.ID != "claude-sonnet" {
		t.Errorf("model.id = %q, want claude-sonnet", cfg.Model.ID)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Storage.Driver = DriverSQLite

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	Reset()
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if back.Storage.Driver != DriverSQLite {
		t.Errorf("storage.driver = %q, want sqlite", back.Storage.Driver)
	}
}

func TestGetConfig(t *testing.T) {
	Reset()
	defer Reset()

	if GetConfig() != nil {
		t.Error("GetConfig() before Load should be nil")
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if GetConfig() != cfg {
		t.Error("GetConfig() should return the loaded config")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("log: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := Load(configFile); err == nil {
		t.Error("Load should fail on invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
}
