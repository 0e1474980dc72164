// Package presidio implements detect.Recognizer against a Presidio analyzer
// sidecar's REST API.
package presidio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
)

const httpTimeout = 15 * time.Second

// Kinds the analyzer reports that have a local equivalent; everything else
// passes through verbatim and is risk-classified as unknown (medium).
var kindAliases = map[string]detect.Kind{
	"PERSON":        detect.KindPessoa,
	"EMAIL_ADDRESS": detect.KindEmail,
	"PHONE_NUMBER":  detect.KindTelefone,
	"LOCATION":      detect.KindEndereco,
}

// Client calls a Presidio analyzer endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Presidio recognizer client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
	}
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Analyze returns entity spans for text. Portuguese is tried first; when the
// analyzer has no Portuguese model loaded it returns nothing, so English is
// used as a fallback.
func (c *Client) Analyze(ctx context.Context, text string) ([]detect.Entity, error) {
	results, err := c.analyze(ctx, text, "pt")
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		if results, err = c.analyze(ctx, text, "en"); err != nil {
			return nil, err
		}
	}

	// The analyzer reports character offsets; spans are consumed as byte
	// offsets into the UTF-8 text, so convert before building entities.
	offsets := byteOffsets(text)

	entities := make([]detect.Entity, 0, len(results))
	for _, r := range results {
		if r.Start < 0 || r.End > len(offsets)-1 || r.Start >= r.End {
			continue
		}
		kind := detect.Kind(r.EntityType)
		if alias, ok := kindAliases[r.EntityType]; ok {
			kind = alias
		}
		entities = append(entities, detect.Entity{
			Kind:       kind,
			Start:      offsets[r.Start],
			End:        offsets[r.End],
			Confidence: r.Score,
			Method:     detect.MethodNLP,
		})
	}
	return entities, nil
}

// byteOffsets maps each character index of text, plus one past the last, to
// the byte index where that character starts.
func byteOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

func (c *Client) analyze(ctx context.Context, text, language string) ([]analyzeResult, error) {
	body, err := json.Marshal(analyzeRequest{Text: text, Language: language})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer error %d: %s", resp.StatusCode, string(respBody))
	}

	var out []analyzeResult
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return out, nil
}
