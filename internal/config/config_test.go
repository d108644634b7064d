package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Helper to clear all config-related env vars
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"RITUAL_PORT",
		"RITUAL_READ_TIMEOUT",
		"RITUAL_WRITE_TIMEOUT",
		"RITUAL_SHUTDOWN_TIMEOUT",
		"RITUAL_DB_PATH",
		"RITUAL_REMOTE_URL",
		"RITUAL_REMOTE_TIMEOUT",
		"GROQ_API_KEY",
		"RITUAL_REFLECTION_URL",
		"RITUAL_REFLECTION_MODEL",
		"RITUAL_FETCH_ATTEMPTS",
		"RITUAL_FETCH_DELAY",
		"RITUAL_LOG_LEVEL",
		"RITUAL_LOG_FORMAT",
		"RITUAL_CONFIG_PATH",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("RITUAL_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	defer os.Unsetenv("RITUAL_CONFIG_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Remote.BaseURL != "http://localhost:9000/api" {
		t.Errorf("remote base URL = %q", cfg.Remote.BaseURL)
	}
	if cfg.Fetch.Attempts != 3 {
		t.Errorf("fetch attempts = %d, want 3", cfg.Fetch.Attempts)
	}
	if time.Duration(cfg.Fetch.Delay) != time.Second {
		t.Errorf("fetch delay = %v, want 1s", time.Duration(cfg.Fetch.Delay))
	}
	if cfg.Reflection.Enabled() {
		t.Error("reflection should be disabled without GROQ_API_KEY")
	}
	if cfg.Reflection.Model != "mixtral-8x7b-32768" {
		t.Errorf("reflection model = %q", cfg.Reflection.Model)
	}
}

func TestLoadFromFile_YAMLValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ritual.yaml")
	content := `
server:
  port: 9191
  read_timeout: 5s
remote:
  base_url: http://habits.internal/api
  timeout: 3s
fetch:
  attempts: 5
  delay: 250ms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if time.Duration(cfg.Server.ReadTimeout) != 5*time.Second {
		t.Errorf("read timeout = %v", time.Duration(cfg.Server.ReadTimeout))
	}
	if cfg.Remote.BaseURL != "http://habits.internal/api" {
		t.Errorf("remote base URL = %q", cfg.Remote.BaseURL)
	}
	if cfg.Fetch.Attempts != 5 || time.Duration(cfg.Fetch.Delay) != 250*time.Millisecond {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ritual.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	os.Setenv("RITUAL_CONFIG_PATH", path)
	os.Setenv("RITUAL_PORT", "7777")
	os.Setenv("GROQ_API_KEY", "gsk-test")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override 7777", cfg.Server.Port)
	}
	if !cfg.Reflection.Enabled() {
		t.Error("reflection should be enabled with GROQ_API_KEY set")
	}
	if cfg.Reflection.APIKey != "gsk-test" {
		t.Errorf("api key = %q", cfg.Reflection.APIKey)
	}
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ritual.yaml")
	if err := os.WriteFile(path, []byte("remote:\n  timeout: soon\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidate_RejectsMissingRemoteURL(t *testing.T) {
	clearEnv(t)
	cfg := newDefaults()
	cfg.Remote.BaseURL = ""

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for missing remote URL")
	}
}

func TestValidate_RejectsZeroFetchAttempts(t *testing.T) {
	clearEnv(t)
	cfg := newDefaults()
	cfg.Fetch.Attempts = 0

	if err := cfg.validate(); err == nil {
		t.Fatal("expected error for zero fetch attempts")
	}
}
