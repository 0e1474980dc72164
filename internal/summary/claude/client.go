// Package claude implements the summary.Summarizer interface on the Anthropic
// API. Only the anonymized text ever leaves the process.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

const maxTokens = 1024

// Client wraps the Anthropic SDK client.
type Client struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// New creates a client using the given API key and model name. Extra options
// are passed through to the SDK, which tests use to point at a local server.
func New(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *Client {
	return &Client{
		client:  anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:   anthropic.Model(model),
		timeout: timeout,
	}
}

// Summarize classifies the anonymized text. Transport failures are wrapped in
// summary.ErrUnreachable; API errors, timeouts, and unparseable output are
// returned as-is.
func (c *Client) Summarize(ctx context.Context, anonymizedText string, entityCounts map[detect.Kind]int) (*summary.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(summary.BuildPrompt(anonymizedText, entityCounts))),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return nil, fmt.Errorf("anthropic api error %d: %w", apierr.StatusCode, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("anthropic request timed out: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", summary.ErrUnreachable, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return summary.Parse(sb.String())
}
