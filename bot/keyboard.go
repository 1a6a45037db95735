package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aybykovskii/schedule-bot/callback"
	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/locale"
	"github.com/aybykovskii/schedule-bot/models"
)

const (
	// datesPerPage - глубина одной страницы клавиатуры дат в днях
	datesPerPage = 14
	dateColumns  = 3
	hourColumns  = 4

	// occurrenceChoices - сколько ближайших повторений предлагать при
	// отмене одного занятия
	occurrenceChoices = 5
)

// localesKeyboard - выбор языка интерфейса
func localesKeyboard() (tgbotapi.InlineKeyboardMarkup, error) {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(locale.Langs))

	for _, lang := range locale.Langs {
		data, err := callback.Locale.Fill(callback.Values{"locale": string(lang)})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(locale.T(lang, "locale.name"), data))
	}

	return tgbotapi.NewInlineKeyboardMarkup(row), nil
}

// periodsKeyboard - выбор периодичности. Показываются только периоды,
// с которыми слот ещё можно занять.
func periodsKeyboard(lang locale.Lang, periods []models.Period) (tgbotapi.InlineKeyboardMarkup, error) {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(periods))

	for _, p := range periods {
		data, err := callback.EventPeriod.Fill(callback.Values{"period": string(p)})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(locale.T(lang, "periods."+string(p)), data))
	}

	return tgbotapi.NewInlineKeyboardMarkup(row), nil
}

// datesKeyboard - страница дат начиная с from. Выходной день не
// предлагается. Кнопки листания появляются по краям: назад - только пока
// предыдущая страница не уходит в прошлое.
func datesKeyboard(from, today time.Time, dayOff int) (tgbotapi.InlineKeyboardMarkup, error) {
	var skip []time.Weekday
	if dayOff >= 0 {
		skip = append(skip, time.Weekday(dayOff))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	row := make([]tgbotapi.InlineKeyboardButton, 0, dateColumns)

	for _, date := range dates.Range(from, datesPerPage, 1, skip...) {
		data, err := callback.EventDate.Fill(callback.Values{"date": date})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData(date, data))
		if len(row) == dateColumns {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, dateColumns)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	nav, err := datesNavRow(from, today)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	rows = append(rows, nav)

	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

func datesNavRow(from, today time.Time) ([]tgbotapi.InlineKeyboardButton, error) {
	var nav []tgbotapi.InlineKeyboardButton

	if prev := from.AddDate(0, 0, -datesPerPage); !prev.Before(dates.Truncate(today)) {
		data, err := callback.PrevDates.Fill(callback.Values{"date": dates.Format(prev)})
		if err != nil {
			return nil, err
		}
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("«", data))
	}

	next := from.AddDate(0, 0, datesPerPage)
	data, err := callback.NextDates.Fill(callback.Values{"date": dates.Format(next)})
	if err != nil {
		return nil, err
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("»", data))

	return nav, nil
}

// hoursKeyboard - свободные часы выбранной даты
func hoursKeyboard(hours []int) (tgbotapi.InlineKeyboardMarkup, error) {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := make([]tgbotapi.InlineKeyboardButton, 0, hourColumns)

	for _, hour := range hours {
		data, err := callback.EventHour.Fill(callback.Values{"hour": fmt.Sprintf("%d", hour)})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d:00", hour), data))
		if len(row) == hourColumns {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, hourColumns)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

// eventsKeyboard - записи пользователя, по одной в строке
func eventsKeyboard(lang locale.Lang, events []models.Event) (tgbotapi.InlineKeyboardMarkup, error) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(events))

	for _, e := range events {
		data, err := callback.EventID.Fill(callback.Values{"id": callback.Itoa(e.ID)})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(eventLabel(lang, &e), data),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

// eventLabel - короткая подпись записи в списке
func eventLabel(lang locale.Lang, e *models.Event) string {
	hour := 0
	if e.Hour != nil {
		hour = *e.Hour
	}

	if e.Period == models.PeriodWeekly {
		day := locale.WeekdayName(lang, time.Weekday(e.WeekDay))
		return locale.Tf(lang, "event.short.weekly", e.Date, day, hour)
	}

	return locale.Tf(lang, "event.short.once", e.Date, hour, locale.T(lang, "periods.once"))
}

// actionsKeyboard - операции над выбранной записью. Отмена одного
// занятия имеет смысл только для еженедельной серии.
func actionsKeyboard(lang locale.Lang, e *models.Event) (tgbotapi.InlineKeyboardMarkup, error) {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, action := range models.Actions {
		if action == models.ActionCancel && e.Period != models.PeriodWeekly {
			continue
		}

		data, err := callback.EventAction.Fill(callback.Values{
			"action": string(action),
			"id":     callback.Itoa(e.ID),
		})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}

		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(locale.T(lang, "actions."+string(action)), data),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

// occurrencesKeyboard - ближайшие повторения еженедельной серии для
// отмены одного занятия. Уже отменённые даты не предлагаются.
func occurrencesKeyboard(e *models.Event, today time.Time) (tgbotapi.InlineKeyboardMarkup, error) {
	next, err := dates.NextOccurrence(e.Date, today)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}

	start, err := dates.Parse(next)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, date := range dates.Range(start, occurrenceChoices, 7) {
		if e.HasException(date) {
			continue
		}

		data, err := callback.EventActionDate.Fill(callback.Values{
			"action": string(models.ActionCancel),
			"id":     callback.Itoa(e.ID),
			"date":   date,
		})
		if err != nil {
			return tgbotapi.InlineKeyboardMarkup{}, err
		}

		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(date, data),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}
