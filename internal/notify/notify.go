// Package notify defines the outbound channels hazard updates are pushed to.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/notify/discord"
	"github.com/nadzzz/civicbot/internal/notify/mqtt"
	"github.com/nadzzz/civicbot/internal/notify/slack"
	"github.com/nadzzz/civicbot/internal/notify/sms"
)

// Notifier delivers a text message to one channel.
type Notifier interface {
	// Name returns the channel identifier (e.g., "sms", "slack").
	Name() string

	// Notify sends text. Each call is a single attempt.
	Notify(ctx context.Context, text string) error
}

// Multi fans a message out to every notifier in order.
type Multi []Notifier

// Name returns "multi".
func (m Multi) Name() string { return "multi" }

// Notify sends text to every notifier, even after a failure, and returns
// the joined errors.
func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		slog.Debug("notification sent", "channel", n.Name())
	}
	return errors.Join(errs...)
}

// Close releases notifiers that hold connections.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if c, ok := n.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the enabled notifiers.
func FromConfig(cfg config.NotifyConfig) (Multi, error) {
	var m Multi
	if cfg.SMS.Enabled {
		m = append(m, sms.New(sms.Options{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			APIKeySID:  cfg.SMS.APIKeySID,
			From:       cfg.SMS.From,
			To:         cfg.SMS.To,
		}))
	}
	if cfg.Slack.Enabled {
		m = append(m, slack.New(cfg.Slack.WebhookURL))
	}
	if cfg.Discord.Enabled {
		d, err := discord.New(cfg.Discord.BotToken, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		m = append(m, d)
	}
	if cfg.MQTT.Enabled {
		m = append(m, mqtt.New(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}))
	}

	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	slog.Info("notifiers configured", "channels", names)
	return m, nil
}
