package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"classbook"
)

// TelegramNotifier posts the outcome to a single chat.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
}

// NewTelegramNotifier prepares the channel without calling the Bot API.
// Notifications are best-effort observers of the run, so a bad token or a
// Telegram outage surfaces when the result is sent, never before the
// booking attempt.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, res *classbook.RunResult) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   Summary(res),
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
