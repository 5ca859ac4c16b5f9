package alert

import (
	"context"
	"fmt"
	"io"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/httputil"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// LogNotifier writes alert events to the structured log. Used when no
// webhook is configured.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(ctx context.Context, alert contracts.Alert, event contracts.AlertEvent) error {
	n.logger.WithFields(map[string]interface{}{
		"alert":   alert.ID,
		"code":    alert.InstrumentCode,
		"kind":    alert.Kind,
		"event":   event.Kind,
		"status":  event.Status,
		"message": event.Message,
	}).Info("Alert notification")
	return nil
}

// WebhookNotifier posts alert events to a configured webhook URL.
type WebhookNotifier struct {
	client *httputil.Client
	url    string
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(client *httputil.Client, url string) *WebhookNotifier {
	return &WebhookNotifier{client: client, url: url}
}

type webhookPayload struct {
	Event contracts.AlertEvent `json:"event"`
	Alert contracts.Alert      `json:"alert"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert contracts.Alert, event contracts.AlertEvent) error {
	resp, err := n.client.PostJSON(ctx, n.url, webhookPayload{Event: event, Alert: alert})
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
