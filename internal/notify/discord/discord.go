// Package discord posts messages to a Discord channel as a bot.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// maxContent is Discord's message length limit.
const maxContent = 2000

// sender abstracts the discordgo.Session method we use, enabling test mocks.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts to one channel over the REST API; no gateway connection
// is opened.
type Notifier struct {
	sess      sender
	channelID string
}

// New creates a Discord notifier.
func New(botToken, channelID string) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	dg, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Notifier{sess: dg, channelID: channelID}, nil
}

// Name returns "discord".
func (n *Notifier) Name() string { return "discord" }

// Notify sends text to the channel.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > maxContent {
		text = string(r[:maxContent-1]) + "…"
	}
	if _, err := n.sess.ChannelMessageSend(n.channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}
