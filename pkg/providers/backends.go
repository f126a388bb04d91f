package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dotsetgreg/similobot/pkg/config"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

const authModeAPIKey = "api_key"

// backend describes one chat-completions endpoint the guide can talk to.
// Both supported backends speak the same wire protocol, so they differ
// only in defaults and which config block carries their credentials.
type backend struct {
	name         string
	apiBase      string
	defaultModel string
	keyHint      string
	creds        func(*config.Config) config.ProviderConfig
}

var backends = map[string]backend{
	ProviderOpenAI: {
		name:         ProviderOpenAI,
		apiBase:      "https://api.openai.com/v1",
		defaultModel: "gpt-4o-mini",
		keyHint:      "oracle.openai.api_key",
		creds:        func(c *config.Config) config.ProviderConfig { return c.Oracle.OpenAI },
	},
	ProviderOpenRouter: {
		name:         ProviderOpenRouter,
		apiBase:      "https://openrouter.ai/api/v1",
		defaultModel: "openai/gpt-4o-mini",
		keyHint:      "oracle.openrouter.api_key",
		creds:        func(c *config.Config) config.ProviderConfig { return c.Oracle.OpenRouter },
	},
}

// NormalizeProviderName lowercases and trims a provider name, defaulting
// to openai when empty.
func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenAI
	}
	return name
}

func SupportedProviders() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func activeBackend(cfg *config.Config) (backend, error) {
	name := ProviderOpenAI
	if cfg != nil {
		name = NormalizeProviderName(cfg.Oracle.Provider)
	}
	b, ok := backends[name]
	if !ok {
		return backend{}, fmt.Errorf("unsupported provider %q: supported providers are %s", name, strings.Join(SupportedProviders(), ", "))
	}
	return b, nil
}

// CreateProvider builds the configured oracle client. It fails when the
// provider name is unknown or its API key is missing.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	b, err := activeBackend(cfg)
	if err != nil {
		return nil, err
	}

	creds := b.creds(cfg)
	apiKey := strings.TrimSpace(creds.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required (set %s)", b.name, b.keyHint)
	}

	apiBase := strings.TrimSpace(creds.APIBase)
	if apiBase == "" {
		apiBase = b.apiBase
	}

	return newOracleClient(b.name, apiBase, b.defaultModel, strings.TrimSpace(creds.Proxy), apiKey)
}

// ProviderCredentialStatus reports whether the active provider has
// credentials without attempting a connection. Used by the status command.
func ProviderCredentialStatus(cfg *config.Config) (provider string, configured bool, mode string, err error) {
	b, err := activeBackend(cfg)
	if err != nil {
		return "", false, "", err
	}
	if strings.TrimSpace(b.creds(cfg).APIKey) == "" {
		return b.name, false, "", nil
	}
	return b.name, true, authModeAPIKey, nil
}
