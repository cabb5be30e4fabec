package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warpmine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_ChatCompletion(t *testing.T) {
	var got struct {
		Model     string              `json:"model"`
		Messages  []ports.ChatMessage `json:"messages"`
		MaxTokens int                 `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","choices":[{"message":{"content":"Use 15 g/L."}}],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/v1/", APIKey: "secret", Timeout: time.Second})
	require.NoError(t, err)

	resp, err := c.ChatCompletion(context.Background(), "llama3", []ports.ChatMessage{{Role: "user", Content: "acid?"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Use 15 g/L.", resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.Equal(t, "llama3", resp.Usage.Model)

	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Equal(t, "acid?", got.Messages[0].Content)
}

func TestOpenAIClient_Errors(t *testing.T) {
	status := http.StatusInternalServerError
	body := `{"error":"overloaded"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	msgs := []ports.ChatMessage{{Role: "user", Content: "q"}}

	_, err = c.ChatCompletion(context.Background(), "m", msgs, 10)
	assert.EqualError(t, err, "llm http 500: overloaded")

	status, body = http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`
	_, err = c.ChatCompletion(context.Background(), "m", msgs, 10)
	assert.EqualError(t, err, "llm http 401: bad key")

	status, body = http.StatusOK, `not json`
	_, err = c.ChatCompletion(context.Background(), "m", msgs, 10)
	assert.ErrorContains(t, err, "invalid JSON")

	status, body = http.StatusOK, `{"choices":[]}`
	_, err = c.ChatCompletion(context.Background(), "m", msgs, 10)
	assert.ErrorContains(t, err, "missing choices")

	_, err = c.ChatCompletion(context.Background(), "", msgs, 10)
	assert.ErrorContains(t, err, "missing model")

	_, err = NewClient(Config{BaseURL: "ftp://example"})
	assert.Error(t, err)
}

func TestKnowledgeAdapter_Answer(t *testing.T) {
	fake := &MockLLMClient{Response: "  Heap leach it.  "}
	a := NewKnowledgeAdapter(fake, "llama3", 200, nil)

	got, err := a.Answer(context.Background(), "How do I leach oxide ore?")
	require.NoError(t, err)
	assert.Equal(t, "Heap leach it.", got)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "system", fake.Calls[0][0].Role)
	assert.Equal(t, "How do I leach oxide ore?", fake.Calls[0][1].Content)
}

func TestKnowledgeAdapter_Failures(t *testing.T) {
	a := NewKnowledgeAdapter(&MockLLMClient{Error: errors.New("down")}, "m", 0, nil)
	_, err := a.Answer(context.Background(), "q")
	assert.EqualError(t, err, "down")

	a = NewKnowledgeAdapter(&MockLLMClient{Response: "   "}, "m", 0, nil)
	_, err = a.Answer(context.Background(), "q")
	assert.ErrorContains(t, err, "empty answer")
}

type recordingClient struct {
	mock.Mock
}

func (m *recordingClient) ChatCompletion(ctx context.Context, model string, messages []ports.ChatMessage, maxTokens int) (*ports.LLMResponse, error) {
	args := m.Called(ctx, model, messages, maxTokens)
	resp, _ := args.Get(0).(*ports.LLMResponse)
	return resp, args.Error(1)
}

func TestKnowledgeAdapter_PassesModelAndBudget(t *testing.T) {
	client := &recordingClient{}
	client.On("ChatCompletion", mock.Anything, "qwen2", mock.MatchedBy(func(msgs []ports.ChatMessage) bool {
		return len(msgs) == 2 && msgs[1].Content == "What voltage for cobalt?"
	}), 300).Return(&ports.LLMResponse{
		Content: "Around 2.5 V.",
		Usage:   &ports.UsageData{TotalTokens: 40, Model: "qwen2"},
	}, nil).Once()

	got, err := NewKnowledgeAdapter(client, "qwen2", 300, nil).Answer(context.Background(), "What voltage for cobalt?")
	require.NoError(t, err)
	assert.Equal(t, "Around 2.5 V.", got)
	client.AssertExpectations(t)
}
