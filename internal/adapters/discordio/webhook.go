package discordio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mewbot/internal/core"
)

// WebhookOutput posts ReplyEvents to a channel webhook. It cannot thread
// replies or choose the channel.
type WebhookOutput struct {
	WebhookURL string
	Client     *http.Client
}

// NewWebhookOutput creates a WebhookOutput.
func NewWebhookOutput(webhookURL string) *WebhookOutput {
	return &WebhookOutput{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (*WebhookOutput) Name() string { return "discord-webhook" }

func (*WebhookOutput) ConsumesOutputs() core.TypeSet {
	return core.Types(core.TypeOf[ReplyEvent]())
}

func (w *WebhookOutput) Output(ctx context.Context, event core.OutputEvent) bool {
	reply, ok := core.As[ReplyEvent](event)
	if !ok {
		return false
	}
	if err := w.Send(ctx, reply.Text); err != nil {
		slog.Error("Failed to send Discord webhook", "error", err)
		return false
	}
	return true
}

// Send posts message to the webhook.
func (w *WebhookOutput) Send(ctx context.Context, message string) error {
	if w.WebhookURL == "" {
		return fmt.Errorf("discord webhook URL is not configured")
	}

	payload := map[string]string{
		"content": message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook failed with status: %d", resp.StatusCode)
	}

	return nil
}
