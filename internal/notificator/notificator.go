package notificator

import (
	"runtime/debug"

	"github.com/subvia/subscriptor/internal/models"
	"github.com/subvia/subscriptor/pkg/logger"
)

// Notificator fans a subscription lifecycle notice out to whichever
// contact channels the subscriber registered. Channels are optional;
// a nil channel is skipped.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Notification channel panicked ",
				"context ", context,
				" panic ", r,
				" stack ", string(debug.Stack()))
		}
	}()
	fn()
}

func (n *Notificator) SendNotification(subscription *models.Subscription, notification *models.Notification) {
	message := notification.String()

	if n.TelegramNotificator != nil && subscription.TelegramChatID != "" {
		chatID := subscription.TelegramChatID
		n.safeCall(func() { n.TelegramNotificator.SendNotification(chatID, message) }, "telegramNotification")
	}
	if n.EmailNotificator != nil && subscription.Email != "" {
		email := subscription.Email
		n.safeCall(func() { n.EmailNotificator.SendNotification(email, message) }, "emailNotification")
	}
}
