// Package ollama implements the summary.Summarizer interface against a local
// Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/summary"
)

// Client talks to an Ollama server's generate endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a client for the Ollama server at baseURL. Each call is bounded
// by timeout; a call that exceeds it is a content failure, not a connectivity
// failure, and is not retried.
func New(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Summarize classifies the anonymized text with the configured model.
// Failures to reach the server at all are wrapped in summary.ErrUnreachable;
// timeouts, server errors, and unparseable output are returned as-is.
func (c *Client) Summarize(ctx context.Context, anonymizedText string, entityCounts map[detect.Kind]int) (*summary.Summary, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  summary.BuildPrompt(anonymizedText, entityCounts),
		Stream:  false,
		Options: generateOptions{Temperature: 0.1},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("ollama request timed out: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", summary.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return summary.Parse(out.Response)
}

// Ping reports whether the Ollama server answers its model listing endpoint.
// Used for health reporting only.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", summary.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama error %d", resp.StatusCode)
	}
	return nil
}
