// Package ai provides the stateless LLM collaborator used by optional
// summarization paths. Unreachable service degrades; it never gates.
package ai

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"dementia-mcp/internal/config"
	engerr "dementia-mcp/internal/errors"
)

// Completer produces a completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAICompleter implements Completer against the chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	cfg    *config.OpenAIConfig
}

// NewOpenAICompleter creates the completion client.
func NewOpenAICompleter(cfg *config.OpenAIConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// Complete sends a single-turn prompt and returns the model's text.
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", engerr.Validation("prompt must not be empty")
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.RequestTimeoutSecs)*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       c.cfg.CompletionModel,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", engerr.ExternalDegraded("llm", err)
	}
	if len(resp.Choices) == 0 {
		return "", engerr.ExternalDegraded("llm", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
