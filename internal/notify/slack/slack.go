// Package slack notifies a Slack channel when a high-risk request finishes
// processing. Notifications carry counts, risk level, and timing only; no
// request text and no entity values.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/laredonunes/sigilo-laredo/internal/detect"
	"github.com/laredonunes/sigilo-laredo/internal/pipeline"
)

const httpTimeout = 10 * time.Second

// Notifier sends processing notifications to a Slack webhook. It implements
// pipeline.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a finished-job notification to the configured webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, ev *pipeline.Notification) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(ev))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(ev *pipeline.Notification) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(ev),
			{"type": "divider"},
			fieldsBlock(ev),
			{"type": "divider"},
			contextBlock(ev),
		},
	}
}

func headerBlock(ev *pipeline.Notification) map[string]any {
	text := fmt.Sprintf("%s Pedido processado: risco %s", riskEmoji(ev.RiskLevel), ev.RiskLevel)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(ev *pipeline.Notification) map[string]any {
	protocol := ev.Protocol
	if protocol == "" {
		protocol = "sem protocolo"
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Protocolo:* %s", protocol),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Risco:* %s", ev.RiskLevel),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Entidades:* %s", formatCounts(ev.EntityCounts)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Tempo:* %dms", ev.ElapsedMS),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func contextBlock(ev *pipeline.Notification) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sigilo • pedido %s • %s", ev.JobID, ev.FinishedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func riskEmoji(level detect.RiskLevel) string {
	switch level {
	case detect.RiskHigh:
		return "\U0001f534" // red circle
	case detect.RiskMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// formatCounts renders entity counts in stable kind order.
func formatCounts(counts map[detect.Kind]int) string {
	if len(counts) == 0 {
		return "nenhuma"
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s ×%d", k, counts[detect.Kind(k)]))
	}
	return strings.Join(parts, ", ")
}
