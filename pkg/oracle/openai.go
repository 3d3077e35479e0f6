package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ufflow/oats/pkg/agent"
)

// chatCompleter is the slice of the OpenAI client this package depends
// on, sized so tests can substitute a stub.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type openaiClient struct {
	chat        chatCompleter
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       retryPolicy
	logger      *slog.Logger
}

var _ agent.OracleClient = (*openaiClient)(nil)

func newOpenAIClient(cfg Config) *openaiClient {
	return newOpenAIClientWith(openai.NewClient(cfg.APIKey), cfg)
}

func newOpenAIClientWith(chat chatCompleter, cfg Config) *openaiClient {
	logger := cfg.Logger.With("provider", ProviderOpenAI, "model", cfg.Model)
	return &openaiClient{
		chat:        chat,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		retry:       retryPolicy{maxAttempts: cfg.MaxAttempts, base: cfg.BackoffBase, logger: logger},
		logger:      logger,
	}
}

// Complete sends one chat completion request and returns the first choice.
// Rate limits, server errors and transport failures are retried; other API
// errors abort immediately.
func (c *openaiClient) Complete(ctx context.Context, req *agent.OracleRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	}

	return c.retry.run(ctx, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.chat.CreateChatCompletion(callCtx, request)
		if err != nil {
			return "", classifyOpenAIErr(err)
		}
		if len(resp.Choices) == 0 {
			return "", backoffPermanent(errors.New("openai reply contained no choices"))
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", backoffPermanent(errors.New("openai reply contained no content"))
		}
		return text, nil
	})
}

// classifyOpenAIErr marks client-side API errors permanent so the retry
// loop stops immediately instead of burning the attempt budget.
func classifyOpenAIErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("openai api: %w", err)
		if retryableStatus(apiErr.HTTPStatusCode) {
			return wrapped
		}
		return backoffPermanent(wrapped)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrapped := fmt.Errorf("openai request: %w", err)
		if retryableStatus(reqErr.HTTPStatusCode) {
			return wrapped
		}
		return backoffPermanent(wrapped)
	}
	return fmt.Errorf("openai call: %w", err)
}
