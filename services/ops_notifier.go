package services

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramOpsNotifier шлёт алерты в операторский чат Telegram.
type telegramOpsNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramOpsNotifier(token string, chatID int64) (OpsNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &telegramOpsNotifier{bot: bot, chatID: chatID}, nil
}

func (n *telegramOpsNotifier) Alert(ctx context.Context, message string) error {
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, message)); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}

// NoopOpsNotifier используется, когда операторский чат не настроен.
type NoopOpsNotifier struct{}

func (NoopOpsNotifier) Alert(ctx context.Context, message string) error { return nil }
