package llm

import (
	"context"
	"fmt"
	"strings"

	"warpmine/internal"
	"warpmine/ports"

	"go.uber.org/zap"
)

const systemPrompt = "You are a mining engineering assistant specialized in copper and cobalt " +
	"extraction, hydrometallurgy, electrowinning and mineral exploration. " +
	"Answer concisely in markdown with practical operating ranges where relevant."

// KnowledgeAdapter answers questions through a chat completion model
type KnowledgeAdapter struct {
	client    ports.LLMClient
	model     string
	maxTokens int
	logger    *zap.Logger
}

var _ ports.KnowledgeClient = (*KnowledgeAdapter)(nil)

// NewKnowledgeAdapter wraps client for question answering
func NewKnowledgeAdapter(client ports.LLMClient, model string, maxTokens int, logger *zap.Logger) *KnowledgeAdapter {
	return &KnowledgeAdapter{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    internal.OrNop(logger).Named("llm"),
	}
}

// Answer sends the question unchanged as the user turn
func (a *KnowledgeAdapter) Answer(ctx context.Context, question string) (string, error) {
	resp, err := a.client.ChatCompletion(ctx, a.model, []ports.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	}, a.maxTokens)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("llm returned an empty answer")
	}
	if resp.Usage != nil {
		a.logger.Debug("knowledge completion",
			zap.String("model", resp.Usage.Model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	}
	return text, nil
}
