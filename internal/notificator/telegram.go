package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	db models.Repository
}

func NewTelegramNotificator(logger *logger.Logger, token string, db models.Repository) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		db:     db,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, err
	}
	go b.Start(context.Background())
	provider.bot = b

	return provider, nil
}

func (t *TelegramNotificator) SendNotification(chatID, message string) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send notification: ", err)
	}
}

// handler binds the sender's chat ID to every subscription registered
// under their telegram username, so renewal notices can reach them.
func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	user := update.Message.From
	t.logger.Debug("Telegram update: ", user.Username, " ", update.Message.Text)

	if update.Message.Text == "/start" {
		chatID := fmt.Sprint(update.Message.Chat.ID)
		if err := t.db.BindTelegramChatID(user.Username, chatID); err != nil {
			t.logger.Error("Failed to bind telegram chat ID: ", err, " username: ", user.Username)
			return
		}
		t.SendNotification(chatID, "You will now receive subscription notices here.")
	}
}
