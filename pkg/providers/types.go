package providers

import "context"

// Message is one chat-completions message sent to the oracle.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UsageInfo reports token accounting when the API returns it.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is the oracle's reply to one request.
type LLMResponse struct {
	Content      string
	FinishReason string
	Usage        *UsageInfo
}

// LLMProvider is the reasoning oracle boundary. Implementations must be
// safe for concurrent use.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}
