// Package bot - Telegram-интерфейс бронирования. Диалог не хранит
// состояние в памяти процесса: каждый шаг закодирован в callback-токене
// кнопки, а единственное накапливаемое состояние (черновик записи)
// лежит в хранилище.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/locale"
	"github.com/aybykovskii/schedule-bot/service"
)

// Settings - параметры интерфейса бота
type Settings struct {
	// DayOff - день недели, который не предлагается в клавиатуре дат,
	// -1 если выходного нет
	DayOff int
	// Location - зона расписания, от неё считается "сегодня"
	Location *time.Location
}

// Bot представляет Telegram бота
type Bot struct {
	api      *tgbotapi.BotAPI
	events   *service.Events
	drafts   *service.Drafts
	locales  *locale.Store
	settings Settings
	log      *zap.Logger
}

// New создает нового бота
func New(token string, events *service.Events, drafts *service.Drafts, settings Settings, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании бота: %w", err)
	}

	return &Bot{
		api:      api,
		events:   events,
		drafts:   drafts,
		locales:  locale.NewStore(),
		settings: settings,
		log:      log.Named("bot"),
	}, nil
}

// Start запускает цикл обработки обновлений и блокируется до отмены
// контекста
func (b *Bot) Start(ctx context.Context) {
	b.log.Info("бот авторизован", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				go b.handleMessage(ctx, update.Message)
			} else if update.CallbackQuery != nil {
				go b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

// send отправляет текстовое сообщение
func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("не удалось отправить сообщение", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendKeyboard отправляет сообщение с inline-клавиатурой и возвращает
// идентификатор отправленного сообщения
func (b *Bot) sendKeyboard(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("ошибка при отправке клавиатуры: %w", err)
	}

	return sent.MessageID, nil
}

// editKeyboard заменяет текст и клавиатуру существующего сообщения.
// Используется при листании дат, чтобы не плодить сообщения.
func (b *Bot) editKeyboard(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("не удалось обновить клавиатуру", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// deleteMessage убирает отработавшее сообщение с вопросом
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.Debug("не удалось удалить сообщение", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// answer закрывает callback, чтобы кнопка перестала крутиться
func (b *Bot) answer(queryID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, "")); err != nil {
		b.log.Debug("не удалось ответить на callback", zap.Error(err))
	}
}

// displayName собирает имя пользователя для заголовка события
func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = fmt.Sprintf("id%d", u.ID)
	}
	return name
}

// contact возвращает контакт пользователя для заголовка события
func contact(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return fmt.Sprintf("id%d", u.ID)
}
