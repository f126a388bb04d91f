package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestDefaultConfig_Guide verifies guide defaults
func TestDefaultConfig_Guide(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Guide.BooksDir == "" {
		t.Error("BooksDir should not be empty")
	}
	if cfg.Guide.MaxHistoryTurns != 40 {
		t.Errorf("MaxHistoryTurns = %d, want 40", cfg.Guide.MaxHistoryTurns)
	}
	if cfg.Guide.ReplyMaxRunes != 500 {
		t.Errorf("ReplyMaxRunes = %d, want 500", cfg.Guide.ReplyMaxRunes)
	}
}

// TestDefaultConfig_Oracle verifies oracle defaults
func TestDefaultConfig_Oracle(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Oracle.Provider != "openai" {
		t.Errorf("Provider = %q, want %q", cfg.Oracle.Provider, "openai")
	}
	if cfg.Oracle.Model == "" {
		t.Error("Model should not be empty")
	}
	if cfg.Oracle.MaxTokens == 0 {
		t.Error("MaxTokens should not be zero")
	}
	if cfg.Oracle.Temperature == 0 {
		t.Error("Temperature should have default value")
	}
	if cfg.Oracle.TimeoutSeconds == 0 {
		t.Error("TimeoutSeconds should not be zero")
	}
}

// TestDefaultConfig_Providers verifies provider credentials are empty by default
func TestDefaultConfig_Providers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Oracle.OpenAI.APIKey != "" {
		t.Error("OpenAI API key should be empty by default")
	}
	if cfg.Oracle.OpenRouter.APIKey != "" {
		t.Error("OpenRouter API key should be empty by default")
	}
}

// TestDefaultConfig_Gateway verifies gateway defaults
func TestDefaultConfig_Gateway(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.Host != "0.0.0.0" {
		t.Error("Gateway host should have default value")
	}
	if cfg.Gateway.Port == 0 {
		t.Error("Gateway port should have default value")
	}
}

// TestDefaultConfig_Channels verifies Discord config defaults
func TestDefaultConfig_Channels(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channels.Discord.Token != "" {
		t.Error("Discord token should be empty by default")
	}
}

// TestDefaultConfig_Sessions verifies session store defaults
func TestDefaultConfig_Sessions(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Sessions.DBPath == "" {
		t.Error("Sessions DBPath should not be empty")
	}
	if cfg.Sessions.IdleTTLMinutes == 0 {
		t.Error("IdleTTLMinutes should not be zero")
	}
	if cfg.Sessions.CleanupSchedule == "" {
		t.Error("CleanupSchedule should not be empty")
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("SIMILOBOT_ORACLE_MODEL", "env/model")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Oracle.Model; got != "env/model" {
		t.Fatalf("expected env override model, got %q", got)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"oracle": {"provider": "openrouter", "model": "file/model"}, "guide": {"max_history_turns": 12}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SIMILOBOT_ORACLE_MODEL", "env/model")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Oracle.Provider; got != "openrouter" {
		t.Fatalf("expected provider from file, got %q", got)
	}
	if got := cfg.Oracle.Model; got != "env/model" {
		t.Fatalf("expected env to win over file, got %q", got)
	}
	if got := cfg.Guide.MaxHistoryTurns; got != 12 {
		t.Fatalf("expected history turns from file, got %d", got)
	}
}

func TestFlexibleStringSlice_MixedTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"channels": {"discord": {"allow_from": ["alice", 123456789]}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	got := cfg.Channels.Discord.AllowFrom
	if len(got) != 2 || got[0] != "alice" || got[1] != "123456789" {
		t.Fatalf("unexpected allow_from: %v", got)
	}
}
