package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const oracleHTTPTimeout = 120 * time.Second

// oracleClient speaks the OpenAI-style chat-completions protocol. One
// instance serves all three pipeline stages concurrently.
type oracleClient struct {
	name         string
	apiBase      string
	defaultModel string
	apiKey       string
	httpClient   *http.Client
}

func newOracleClient(name, apiBase, defaultModel, proxy, apiKey string) (*oracleClient, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("%s API base not configured", name)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s API key not configured", name)
	}

	client := &http.Client{Timeout: oracleHTTPTimeout}
	if proxy = strings.TrimSpace(proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse %s proxy: %w", name, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &oracleClient{
		name:         name,
		apiBase:      apiBase,
		defaultModel: strings.TrimSpace(defaultModel),
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   client,
	}, nil
}

func (c *oracleClient) GetDefaultModel() string {
	if c == nil {
		return ""
	}
	return c.defaultModel
}

func (c *oracleClient) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("provider not initialized")
	}

	if model = strings.TrimSpace(model); model == "" {
		model = c.defaultModel
	}

	payload := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if v, ok := numericOption(options, "max_tokens"); ok {
		payload["max_tokens"] = int(v)
	}
	if v, ok := numericOption(options, "temperature"); ok {
		payload["temperature"] = v
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", c.name, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s API request failed: status=%d error=%s", c.name, resp.StatusCode, apiErrorMessage(body))
	}

	reply, err := decodeReply(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", c.name, err)
	}
	return reply, nil
}

// numericOption reads an int- or float-valued option. JSON round-trips
// turn everything into float64, so both shapes show up in practice.
func numericOption(opts map[string]interface{}, key string) (float64, bool) {
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int64:
		return float64(vv), true
	default:
		return 0, false
	}
}

func decodeReply(body []byte) (*LLMResponse, error) {
	var wire struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	if len(wire.Choices) == 0 {
		return &LLMResponse{Content: "", FinishReason: "stop"}, nil
	}

	choice := wire.Choices[0]
	return &LLMResponse{
		Content:      flattenContent(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        wire.Usage,
	}, nil
}

// flattenContent handles both the plain-string and the content-parts
// shapes of the message content field.
func flattenContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for _, item := range v {
			part, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				b.WriteString(text)
				continue
			}
			if text, ok := part["content"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return ""
	}
}

func apiErrorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}
