package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord posts messages to one channel through a bot account.
type Discord struct {
	channelID string
	currency  string
	send      func(channelID, content string) error
}

// NewDiscord creates a REST-only Discord session. No gateway connection is
// opened since the bot only posts.
func NewDiscord(token, channelID string, timeout time.Duration, currency string) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord token and channel id are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Client = &http.Client{Timeout: timeout}
	if currency == "" {
		currency = DefaultCurrency
	}

	return &Discord{
		channelID: channelID,
		currency:  currency,
		send: func(channelID, content string) error {
			_, err := session.ChannelMessageSend(channelID, content)
			return err
		},
	}, nil
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, msg Message) error {
	title, body := renderText(msg, d.currency)
	content := fmt.Sprintf("**%s**\n%s", title, body)
	if err := withContext(ctx, func() error { return d.send(d.channelID, content) }); err != nil {
		return fmt.Errorf("posting %s to discord: %w", msg.Kind, err)
	}
	return nil
}
