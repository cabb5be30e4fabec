package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"warpmine/ports"

	"github.com/tidwall/gjson"
)

// Config for an OpenAI-compatible chat completion endpoint (OpenAI, Ollama /v1)
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewClient creates a client. An API key is optional because local
// OpenAI-compatible servers usually run without one.
func NewClient(config Config) (*OpenAIClient, error) {
	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid base URL %q", config.BaseURL)
	}

	return &OpenAIClient{
		APIKey:      config.APIKey,
		BaseURL:     baseURL,
		Temperature: config.Temperature,
		http:        &http.Client{Timeout: config.Timeout},
	}, nil
}

// MockLLMClient is a mock LLM client for testing
type MockLLMClient struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors
	Calls    [][]ports.ChatMessage
}

func (m *MockLLMClient) ChatCompletion(ctx context.Context, model string, messages []ports.ChatMessage, maxTokens int) (*ports.LLMResponse, error) {
	m.Calls = append(m.Calls, messages)
	if m.Error != nil {
		return nil, m.Error
	}
	return &ports.LLMResponse{Content: m.Response}, nil
}

// OpenAIClient implements ports.LLMClient over the Chat Completions API
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	http        *http.Client
}

var _ ports.LLMClient = (*OpenAIClient)(nil)

func (c *OpenAIClient) ChatCompletion(ctx context.Context, model string, messages []ports.ChatMessage, maxTokens int) (*ports.LLMResponse, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("missing model")
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("missing messages")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	type reqBody struct {
		Model       string              `json:"model"`
		Messages    []ports.ChatMessage `json:"messages"`
		Temperature float64             `json:"temperature,omitempty"`
		MaxTokens   int                 `json:"max_tokens,omitempty"`
		Stream      bool                `json:"stream"`
	}
	body := reqBody{
		Model:       model,
		Messages:    messages,
		Temperature: c.Temperature,
		MaxTokens:   maxTokens,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respRaw))
		// OpenAI nests the reason under error.message; Ollama uses a bare string
		if m := gjson.GetBytes(respRaw, "error.message"); m.Exists() {
			msg = m.String()
		} else if m := gjson.GetBytes(respRaw, "error"); m.Type == gjson.String {
			msg = m.String()
		}
		return nil, fmt.Errorf("llm http %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(respRaw) {
		return nil, fmt.Errorf("unmarshal response: invalid JSON")
	}

	content := gjson.GetBytes(respRaw, "choices.0.message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("llm response missing choices")
	}
	out := &ports.LLMResponse{Content: content.String()}

	if usage := gjson.GetBytes(respRaw, "usage"); usage.IsObject() {
		out.Usage = &ports.UsageData{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
			Model:            gjson.GetBytes(respRaw, "model").String(),
		}
	}
	return out, nil
}
