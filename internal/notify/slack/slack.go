// Package slack posts messages to a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// Notifier posts to one incoming webhook.
type Notifier struct {
	webhookURL string
}

// New creates a Slack notifier.
func New(webhookURL string) *Notifier {
	return &Notifier{webhookURL: webhookURL}
}

// Name returns "slack".
func (n *Notifier) Name() string { return "slack" }

// Notify posts text to the webhook.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		return errors.New("slack webhook url is not configured")
	}
	if err := slackapi.PostWebhookContext(ctx, n.webhookURL, &slackapi.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("posting slack webhook: %w", err)
	}
	return nil
}
