package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// sender is the part of tgbotapi.BotAPI the notifier uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers review reminders over Telegram
type Notifier struct {
	api sender
	log logrus.FieldLogger
}

// New connects to the Telegram API with token
func New(token string, log logrus.FieldLogger) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bot")
	}
	log.WithField("account", api.Self.UserName).Info("authorized on telegram")
	return newNotifier(api, log), nil
}

func newNotifier(api sender, log logrus.FieldLogger) *Notifier {
	return &Notifier{api: api, log: log}
}

// SendReminder implements scheduler.Notifier
func (n *Notifier) SendReminder(chatID int64, name string, dueCollections int) error {
	msg := tgbotapi.NewMessage(chatID, ReminderText(name, dueCollections))
	if _, err := n.api.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send reminder to chat %d", chatID)
	}
	n.log.WithField("chat_id", chatID).Debug("reminder sent")
	return nil
}

// ReminderText is the message sent to a learner with due collections
func ReminderText(name string, dueCollections int) string {
	greeting := "Hi!"
	if name != "" {
		greeting = fmt.Sprintf("Hi, %s!", name)
	}
	if dueCollections == 1 {
		return greeting + " 📚 One of your collections is ready for review."
	}
	return fmt.Sprintf("%s 📚 %d of your collections are ready for review.", greeting, dueCollections)
}
