package ports

import "context"

// UsageData represents raw usage data reported by an OpenAI-compatible API
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
}

// LLMResponse is a completion plus its usage, when the provider reports one
type LLMResponse struct {
	Content string
	Usage   *UsageData
}

// ChatMessage is one turn in a chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient is a chat-completion provider
type LLMClient interface {
	ChatCompletion(ctx context.Context, model string, messages []ChatMessage, maxTokens int) (*LLMResponse, error)
}
