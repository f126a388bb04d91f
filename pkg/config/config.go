package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Guide    GuideConfig    `json:"guide"`
	Oracle   OracleConfig   `json:"oracle"`
	Channels ChannelsConfig `json:"channels"`
	Gateway  GatewayConfig  `json:"gateway"`
	Sessions SessionsConfig `json:"sessions"`
	mu       sync.RWMutex
}

// GuideConfig controls the companion behavior itself.
type GuideConfig struct {
	BooksDir        string `json:"books_dir" env:"SIMILOBOT_GUIDE_BOOKS_DIR"`
	MaxHistoryTurns int    `json:"max_history_turns" env:"SIMILOBOT_GUIDE_MAX_HISTORY_TURNS"`
	ReplyMaxRunes   int    `json:"reply_max_runes" env:"SIMILOBOT_GUIDE_REPLY_MAX_RUNES"`
}

type OracleConfig struct {
	Provider       string  `json:"provider" env:"SIMILOBOT_ORACLE_PROVIDER"`
	Model          string  `json:"model" env:"SIMILOBOT_ORACLE_MODEL"`
	MaxTokens      int     `json:"max_tokens" env:"SIMILOBOT_ORACLE_MAX_TOKENS"`
	Temperature    float64 `json:"temperature" env:"SIMILOBOT_ORACLE_TEMPERATURE"`
	TimeoutSeconds int     `json:"timeout_seconds" env:"SIMILOBOT_ORACLE_TIMEOUT_SECONDS"`

	OpenAI     ProviderConfig `json:"openai" envPrefix:"SIMILOBOT_ORACLE_OPENAI_"`
	OpenRouter ProviderConfig `json:"openrouter" envPrefix:"SIMILOBOT_ORACLE_OPENROUTER_"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"API_KEY"`
	APIBase string `json:"api_base" env:"API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"PROXY"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"SIMILOBOT_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"SIMILOBOT_CHANNELS_DISCORD_ALLOW_FROM"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"SIMILOBOT_GATEWAY_HOST"`
	Port int    `json:"port" env:"SIMILOBOT_GATEWAY_PORT"`
}

type SessionsConfig struct {
	DBPath          string `json:"db_path" env:"SIMILOBOT_SESSIONS_DB_PATH"`
	IdleTTLMinutes  int    `json:"idle_ttl_minutes" env:"SIMILOBOT_SESSIONS_IDLE_TTL_MINUTES"`
	CleanupSchedule string `json:"cleanup_schedule" env:"SIMILOBOT_SESSIONS_CLEANUP_SCHEDULE"`
}

func DefaultConfig() *Config {
	return &Config{
		Guide: GuideConfig{
			BooksDir:        "~/.similobot/books",
			MaxHistoryTurns: 40,
			ReplyMaxRunes:   500,
		},
		Oracle: OracleConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			MaxTokens:      1000,
			Temperature:    0.7,
			TimeoutSeconds: 45,
			OpenAI:         ProviderConfig{},
			OpenRouter:     ProviderConfig{},
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18820,
		},
		Sessions: SessionsConfig{
			DBPath:          "~/.similobot/sessions.db",
			IdleTTLMinutes:  240,
			CleanupSchedule: "*/30 * * * *",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) BooksPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Guide.BooksDir)
}

func (c *Config) SessionsDBPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Sessions.DBPath)
}

func (c *Config) OracleAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.Oracle.Provider {
	case "openrouter":
		return c.Oracle.OpenRouter.APIKey
	default:
		return c.Oracle.OpenAI.APIKey
	}
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
