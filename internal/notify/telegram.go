package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Telegram sends messages to one chat through a bot.
type Telegram struct {
	currency string
	send     func(text string) error
}

// NewTelegram creates an offline bot: no getMe call at startup and no
// update polling, since the bot only sends.
func NewTelegram(token string, chatID int64, timeout time.Duration, currency string) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	return &Telegram{
		currency: currency,
		send: func(text string) error {
			_, err := bot.Send(tele.ChatID(chatID), text, tele.ModeHTML)
			return err
		},
	}, nil
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	title, body := renderText(msg, t.currency)
	text := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(title), html.EscapeString(body))
	if err := withContext(ctx, func() error { return t.send(text) }); err != nil {
		return fmt.Errorf("sending %s to telegram: %w", msg.Kind, err)
	}
	return nil
}
