package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/callback"
	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/locale"
	"github.com/aybykovskii/schedule-bot/models"
	"github.com/aybykovskii/schedule-bot/service"
)

// handleMessage обрабатывает входящие команды
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	chatID := msg.Chat.ID
	lang := b.locales.Get(msg.From.ID)

	switch msg.Command() {
	case "start":
		b.send(chatID, locale.T(lang, "commands.start"))
	case "info":
		b.send(chatID, locale.T(lang, "commands.info"))
	case "create":
		b.startCreate(ctx, chatID, msg.From)
	case "edit":
		b.listEvents(ctx, chatID, msg.From)
	case "change_locale":
		b.sendLocales(chatID, lang)
	default:
		b.send(chatID, locale.T(lang, "unknown_command"))
	}
}

// handleCallback разбирает callback-токен и выполняет соответствующий
// шаг диалога. Каждый токен самодостаточен, поэтому порядок нажатий
// пользователя не важен: устаревшая кнопка либо отработает, либо даст
// понятную ошибку.
func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.answer(query.ID)

	if query.Message == nil {
		return
	}

	chatID := query.Message.Chat.ID
	lang := b.locales.Get(query.From.ID)

	var err error
	switch data := query.Data; {
	case callback.Locale.Match(data):
		err = b.onLocale(query, data)
	case callback.EventPeriod.Match(data):
		err = b.onPeriod(ctx, query, data)
	case callback.EventDate.Match(data):
		err = b.onDate(ctx, query, data)
	case callback.EventHour.Match(data):
		err = b.onHour(ctx, query, data)
	case callback.PrevDates.Match(data), callback.NextDates.Match(data):
		err = b.onDatesPage(query, data)
	case callback.EventID.Match(data):
		err = b.onEvent(ctx, query, data)
	case callback.EventAction.Match(data):
		err = b.onAction(ctx, query, data)
	case callback.EventActionDate.Match(data):
		err = b.onActionDate(ctx, query, data)
	default:
		err = errs.Decoding("неизвестный callback-токен %q", data)
	}

	if err != nil {
		b.log.Warn("ошибка обработки callback",
			zap.String("data", query.Data),
			zap.Int64("user_id", query.From.ID),
			zap.Error(err),
		)
		b.send(chatID, locale.T(lang, "error"))
	}
}

// onLocale переключает язык интерфейса
func (b *Bot) onLocale(query *tgbotapi.CallbackQuery, data string) error {
	values, err := callback.Locale.Decode(data)
	if err != nil {
		return err
	}

	if !locale.IsLang(values["locale"]) {
		return errs.Client("неизвестный язык %q", values["locale"])
	}

	lang := locale.Lang(values["locale"])
	b.locales.Set(query.From.ID, lang)

	b.deleteMessage(query.Message.Chat.ID, query.Message.MessageID)
	b.send(query.Message.Chat.ID, locale.T(lang, "locale.set"))
	return nil
}

// onPeriod начинает черновик с выбранной периодичностью и предлагает даты
func (b *Bot) onPeriod(ctx context.Context, query *tgbotapi.CallbackQuery, data string) error {
	values, err := callback.EventPeriod.Decode(data)
	if err != nil {
		return err
	}

	period, err := models.ParsePeriod(values["period"])
	if err != nil {
		return err
	}

	if _, err := b.drafts.Start(ctx, query.From.ID, service.Seed{Period: &period}); err != nil {
		return err
	}

	b.deleteMessage(query.Message.Chat.ID, query.Message.MessageID)
	return b.sendDates(ctx, query.Message.Chat.ID, query.From.ID, b.today())
}

// onDate записывает дату в черновик и предлагает свободные часы
func (b *Bot) onDate(ctx context.Context, query *tgbotapi.CallbackQuery, data string) error {
	values, err := callback.EventDate.Decode(data)
	if err != nil {
		return err
	}
	date := values["date"]

	past, err := dates.IsPast(date, b.now())
	if err != nil {
		return err
	}
	if past {
		return errs.Client("дата %s уже прошла", date)
	}

	draft, err := b.drafts.Update(ctx, query.From.ID, models.DraftUpdate{Date: &date})
	if err != nil {
		return err
	}
	if draft.Period == nil {
		return errs.Client("у черновика не выбрана периодичность")
	}

	hours, err := b.events.GetFreeHours(ctx, date, *draft.Period)
	if err != nil {
		return err
	}

	lang := b.locales.Get(query.From.ID)
	if len(hours) == 0 {
		// клавиатура дат остаётся на месте, пользователь выбирает другую
		b.send(query.Message.Chat.ID, locale.T(lang, "message.no_hours"))
		return nil
	}

	markup, err := hoursKeyboard(hours)
	if err != nil {
		return err
	}

	b.deleteMessage(query.Message.Chat.ID, query.Message.MessageID)
	return b.sendPrompt(ctx, query.Message.Chat.ID, query.From.ID, locale.T(lang, "message.hour"), markup)
}

// onHour завершает черновик и фиксирует запись
func (b *Bot) onHour(ctx context.Context, query *tgbotapi.CallbackQuery, data string) error {
	values, err := callback.EventHour.Decode(data)
	if err != nil {
		return err
	}

	hour, err := strconv.Atoi(values["hour"])
	if err != nil {
		return errs.Client("некорректный час %q", values["hour"])
	}

	userID := query.From.ID
	if _, err := b.drafts.Update(ctx, userID, models.DraftUpdate{Hour: &hour}); err != nil {
		return err
	}

	draft, err := b.drafts.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	editing := draft.UpdateEventID != 0

	event, err := b.drafts.Commit(ctx, userID, displayName(query.From), contact(query.From))
	if err != nil && !errors.Is(err, errs.ErrSync) {
		return err
	}

	b.deleteMessage(query.Message.Chat.ID, query.Message.MessageID)

	lang := b.locales.Get(userID)
	hourValue := 0
	if event.Hour != nil {
		hourValue = *event.Hour
	}

	var text string
	if editing {
		text = locale.Tf(lang, "message.updated", event.Date, hourValue)
	} else {
		text = locale.Tf(lang, "message.result", event.Date, hourValue, locale.T(lang, "periods."+string(event.Period)))
	}
	if err != nil {
		// локальная запись состоялась, календарь догонит
		text += "\n" + locale.T(lang, "sync_warning")
	}

	b.send(query.Message.Chat.ID, text)
	return nil
}

// onDatesPage перелистывает клавиатуру дат на месте
func (b *Bot) onDatesPage(query *tgbotapi.CallbackQuery, data string) error {
	template := callback.NextDates
	if callback.PrevDates.Match(data) {
		template = callback.PrevDates
	}

	values, err := template.Decode(data)
	if err != nil {
		return err
	}

	from, err := dates.Parse(values["date"])
	if err != nil {
		return err
	}

	markup, err := datesKeyboard(from, b.today(), b.settings.DayOff)
	if err != nil {
		return err
	}

	lang := b.locales.Get(query.From.ID)
	b.editKeyboard(query.Message.Chat.ID, query.Message.MessageID, locale.T(lang, "message.date"), markup)
	return nil
}

// onEvent показывает операции над выбранной записью
func (b *Bot) onEvent(ctx context.Context, query *tgbotapi.CallbackQuery, data string) error {
	event, err := b.ownedEvent(ctx, query, callback.EventID, data)
	if err != nil {
		return err
	}

	lang := b.locales.Get(query.From.ID)
	markup, err := actionsKeyboard(lang, event)
	if err != nil {
		return err
	}

	b.deleteMessage(query.Message.Chat.ID, query.Message.MessageID)
	_, err = b.sendKeyboard(query.Message.Chat.ID, locale.T(lang, "message.actions"), markup)
	return err
}

// onAction выполняет операцию над записью. Switch перечисляет все
// операции: новая операция без ветки здесь - ошибка обработки.
func (b *Bot) onAction(ctx context.Context, query *tgbotapi.CallbackQuery, data string) error {
	values, err := callback.EventAction.Decode(data)
	if err != nil {
		return err
	}

	action, err := models.ParseAction(values["action"])
	if err != nil {
		return err
	}

	event, err := b.ownedEventID(ctx, query.From.ID, values["id"])
	if err != nil {
		return err
	}

	chatID := query.Message.Chat.ID
	lang := b.locales.Get(query.From.ID)

	switch action {
	case models.ActionEdit:
		seed := service.Seed{Period: &event.Period, UpdateEventID: event.ID}
		if _, err := b.drafts.Start(ctx, query.From.ID, seed); err != nil {
			return err
		}

		startDate, err := b.drafts.EditStartDate(event)
		if err != nil {
			return err
		}
		from, err := dates.Parse(startDate)
		if err != nil {
			return err
		}

		b.deleteMessage(chatID, query.Message.MessageID)
		return b.sendDates(ctx, chatID, query.From.ID, from)

	case models.ActionCancel:
		// разовое событие отменяется целиком, даже если кнопка пришла
		// из устаревшей клавиатуры
		_, deleted, err := b.events.Cancel(ctx, event.ID)
		if err != nil && !errors.Is(err, errs.ErrSync) {
			return err
		}
		if deleted {
			b.reportDeleted(chatID, query.Message.MessageID, lang, err)
			return nil
		}

		markup, err := occurrencesKeyboard(event, b.now())
		if err != nil {
			return err
		}
		if len(markup.InlineKeyboard) == 0 {
			b.send(chatID, locale.T(lang, "message.no_occurrences"))
			return nil
		}

		b.deleteMessage(chatID, query.Message.MessageID)
		_, err = b.sendKeyboard(chatID, locale.T(lang, "message.cancel_date"), markup)
		return err

	case models.ActionDelete:
		err := b.events.Delete(ctx, event.ID)
		if err != nil && !errors.Is(err, errs.ErrSync) {
			return err
		}

		b.reportDeleted(chatID, query.Message.MessageID, lang, err)
		return nil
	}

	return errs.Client("необработанное действие %q", action)
}

// onActionDate отменяет одно повторение еженедельной серии
func (b *Bot) onActionDate(ctx context.Context, query *tgbotapi.CallbackQuery, data string) error {
	values, err := callback.EventActionDate.Decode(data)
	if err != nil {
		return err
	}

	action, err := models.ParseAction(values["action"])
	if err != nil {
		return err
	}
	if action != models.ActionCancel {
		return errs.Client("действие %q не привязывается к дате", action)
	}

	event, err := b.ownedEventID(ctx, query.From.ID, values["id"])
	if err != nil {
		return err
	}

	date := values["date"]
	_, err = b.events.AddExceptionDate(ctx, event.ID, date)
	if err != nil && !errors.Is(err, errs.ErrSync) {
		return err
	}

	b.deleteMessage(query.Message.Chat.ID, query.Message.MessageID)

	lang := b.locales.Get(query.From.ID)
	text := locale.Tf(lang, "message.cancelled", date)
	if err != nil {
		text += "\n" + locale.T(lang, "sync_warning")
	}
	b.send(query.Message.Chat.ID, text)
	return nil
}

// reportDeleted убирает отработавшую клавиатуру и сообщает об удалении
// записи; незавершённая синхронизация добавляет предупреждение
func (b *Bot) reportDeleted(chatID int64, messageID int, lang locale.Lang, syncErr error) {
	b.deleteMessage(chatID, messageID)

	text := locale.T(lang, "message.deleted")
	if syncErr != nil {
		text += "\n" + locale.T(lang, "sync_warning")
	}
	b.send(chatID, text)
}

// startCreate начинает диалог бронирования с выбора периодичности
func (b *Bot) startCreate(ctx context.Context, chatID int64, user *tgbotapi.User) {
	lang := b.locales.Get(user.ID)

	// прибираем вопрос незаконченного диалога, если он остался
	if draft, err := b.drafts.GetByUserID(ctx, user.ID); err == nil && draft.PromptMessageID != 0 {
		b.deleteMessage(chatID, draft.PromptMessageID)
	}

	markup, err := periodsKeyboard(lang, models.Periods)
	if err != nil {
		b.log.Warn("не удалось собрать клавиатуру периодов", zap.Error(err))
		b.send(chatID, locale.T(lang, "error"))
		return
	}

	if _, err := b.sendKeyboard(chatID, locale.T(lang, "message.period"), markup); err != nil {
		b.log.Warn("не удалось начать диалог", zap.Error(err))
	}
}

// listEvents показывает записи пользователя
func (b *Bot) listEvents(ctx context.Context, chatID int64, user *tgbotapi.User) {
	lang := b.locales.Get(user.ID)

	events, err := b.events.GetByUserID(ctx, user.ID)
	if err != nil {
		b.log.Warn("не удалось получить записи", zap.Int64("user_id", user.ID), zap.Error(err))
		b.send(chatID, locale.T(lang, "error"))
		return
	}

	filled := events[:0]
	for _, e := range events {
		if e.IsFilled() {
			filled = append(filled, e)
		}
	}

	if len(filled) == 0 {
		b.send(chatID, locale.T(lang, "message.no_events"))
		return
	}

	markup, err := eventsKeyboard(lang, filled)
	if err != nil {
		b.log.Warn("не удалось собрать список записей", zap.Error(err))
		b.send(chatID, locale.T(lang, "error"))
		return
	}

	if _, err := b.sendKeyboard(chatID, locale.T(lang, "message.events"), markup); err != nil {
		b.log.Warn("не удалось отправить список записей", zap.Error(err))
	}
}

// sendLocales показывает выбор языка
func (b *Bot) sendLocales(chatID int64, lang locale.Lang) {
	markup, err := localesKeyboard()
	if err != nil {
		b.log.Warn("не удалось собрать клавиатуру языков", zap.Error(err))
		b.send(chatID, locale.T(lang, "error"))
		return
	}

	if _, err := b.sendKeyboard(chatID, locale.T(lang, "commands.change_locale"), markup); err != nil {
		b.log.Warn("не удалось отправить выбор языка", zap.Error(err))
	}
}

// sendDates отправляет клавиатуру дат и запоминает сообщение в черновике
func (b *Bot) sendDates(ctx context.Context, chatID, userID int64, from time.Time) error {
	markup, err := datesKeyboard(from, b.today(), b.settings.DayOff)
	if err != nil {
		return err
	}

	lang := b.locales.Get(userID)
	return b.sendPrompt(ctx, chatID, userID, locale.T(lang, "message.date"), markup)
}

// sendPrompt отправляет вопрос диалога и сохраняет его идентификатор в
// черновике, чтобы вопрос можно было убрать при перезапуске диалога
func (b *Bot) sendPrompt(ctx context.Context, chatID, userID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	messageID, err := b.sendKeyboard(chatID, text, markup)
	if err != nil {
		return err
	}

	if _, err := b.drafts.Update(ctx, userID, models.DraftUpdate{PromptMessageID: &messageID}); err != nil {
		b.log.Debug("не удалось запомнить сообщение с вопросом", zap.Error(err))
	}
	return nil
}

// ownedEvent декодирует идентификатор из токена и проверяет владение
func (b *Bot) ownedEvent(ctx context.Context, query *tgbotapi.CallbackQuery, t *callback.Template, data string) (*models.Event, error) {
	values, err := t.Decode(data)
	if err != nil {
		return nil, err
	}
	return b.ownedEventID(ctx, query.From.ID, values["id"])
}

func (b *Bot) ownedEventID(ctx context.Context, userID int64, raw string) (*models.Event, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errs.Client("некорректный идентификатор %q", raw)
	}

	event, err := b.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.UserID != userID {
		return nil, errs.Client("событие %d принадлежит другому пользователю", id)
	}

	return event, nil
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.settings.Location)
}

func (b *Bot) today() time.Time {
	return dates.Truncate(b.now())
}
