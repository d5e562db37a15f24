// Package notify реализует исходящий канал уведомлений через Telegram.
package notify

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
)

// Telegram отправляет текстовые уведомления в заданный чат.
//
// Без учётных данных работает в отключённом режиме: Send становится
// no-op и сообщает отказ доставки. Самопроверка мониторинга на этом
// отказе не даёт запустить торговлю без рабочего канала уведомлений.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
}

// NewTelegram создаёт нотификатор. Ошибка инициализации API деградирует
// в отключённый режим с записью в лог - торговое ядро без уведомлений
// полезнее чем отказ запуска.
func NewTelegram(cfg config.NotifierConfig) *Telegram {
	if !cfg.Enabled() {
		log.Printf("[notify] credentials not set, notifier disabled")
		return &Telegram{}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		log.Printf("[notify] telegram init failed, notifier disabled: %v", err)
		return &Telegram{}
	}

	log.Printf("[notify] telegram notifier ready (bot @%s)", bot.Self.UserName)
	return &Telegram{
		bot:     bot,
		chatID:  cfg.ChatID,
		enabled: true,
	}
}

// Enabled сообщает активен ли нотификатор
func (t *Telegram) Enabled() bool {
	return t.enabled
}

// Send отправляет одно сообщение. Возвращает false при сбое доставки
// и в отключённом режиме - сообщение никуда не ушло.
func (t *Telegram) Send(text string) bool {
	if !t.enabled {
		return false
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[notify] send failed: %v", err)
		return false
	}
	return true
}
