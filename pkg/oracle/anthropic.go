package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ufflow/oats/pkg/agent"
)

// MessagesClient is the slice of the Anthropic SDK this package depends
// on, sized so tests can substitute a stub.
type MessagesClient interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

type anthropicClient struct {
	messages    MessagesClient
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	retry       retryPolicy
	logger      *slog.Logger
}

var _ agent.OracleClient = (*anthropicClient)(nil)

func newAnthropicClient(cfg Config) *anthropicClient {
	ac := sdk.NewClient(option.WithAPIKey(cfg.APIKey))
	return newAnthropicClientWith(&ac.Messages, cfg)
}

// newAnthropicClientWith wires an explicit messages client. Tests use it
// to inject stubs.
func newAnthropicClientWith(messages MessagesClient, cfg Config) *anthropicClient {
	logger := cfg.Logger.With("provider", ProviderAnthropic, "model", cfg.Model)
	return &anthropicClient{
		messages:    messages,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		retry:       retryPolicy{maxAttempts: cfg.MaxAttempts, base: cfg.BackoffBase, logger: logger},
		logger:      logger,
	}
}

// Complete sends one messages request and returns the concatenated text
// blocks of the reply. Rate limits, server errors and transport failures
// are retried; other API errors abort immediately.
func (c *anthropicClient) Complete(ctx context.Context, req *agent.OracleRequest) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.User))},
		Temperature: sdk.Float(c.temperature),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	return c.retry.run(ctx, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		msg, err := c.messages.New(callCtx, params)
		if err != nil {
			return "", classifyAnthropicErr(err)
		}
		text := collectText(msg)
		if text == "" {
			return "", backoffPermanent(errors.New("anthropic reply contained no text blocks"))
		}
		return text, nil
	})
}

func collectText(msg *sdk.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// classifyAnthropicErr marks client-side API errors permanent so the retry
// loop stops immediately instead of burning the attempt budget.
func classifyAnthropicErr(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("anthropic api: %w", err)
		if retryableStatus(apiErr.StatusCode) {
			return wrapped
		}
		return backoffPermanent(wrapped)
	}
	return fmt.Errorf("anthropic call: %w", err)
}
