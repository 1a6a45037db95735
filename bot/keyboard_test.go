package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aybykovskii/schedule-bot/locale"
	"github.com/aybykovskii/schedule-bot/models"
)

func TestHoursKeyboardEmpty(t *testing.T) {
	// пустой список часов даёт клавиатуру без строк, отправлять её
	// нельзя - обработчик обязан проверить это до отправки
	markup, err := hoursKeyboard(nil)
	require.NoError(t, err)
	assert.Empty(t, markup.InlineKeyboard)
}

func TestHoursKeyboardRows(t *testing.T) {
	markup, err := hoursKeyboard([]int{9, 10, 11, 12, 13})
	require.NoError(t, err)

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 4)
	assert.Len(t, markup.InlineKeyboard[1], 1)
	assert.Equal(t, "9:00", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "eventHour: {9}", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestDatesKeyboardSkipsDayOff(t *testing.T) {
	today := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) // понедельник

	markup, err := datesKeyboard(today, today, int(time.Sunday))
	require.NoError(t, err)

	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			assert.NotEqual(t, "01.07.2024", btn.Text) // воскресенье
		}
	}
}

func TestDatesKeyboardNav(t *testing.T) {
	today := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	// на первой странице нет кнопки назад: предыдущая ушла бы в прошлое
	markup, err := datesKeyboard(today, today, -1)
	require.NoError(t, err)

	nav := markup.InlineKeyboard[len(markup.InlineKeyboard)-1]
	require.Len(t, nav, 1)
	assert.Equal(t, "nextDatesFrom: {01.15.2024}", *nav[0].CallbackData)

	// со второй страницы можно вернуться
	markup, err = datesKeyboard(today.AddDate(0, 0, datesPerPage), today, -1)
	require.NoError(t, err)

	nav = markup.InlineKeyboard[len(markup.InlineKeyboard)-1]
	require.Len(t, nav, 2)
	assert.Equal(t, "previousDatesFrom: {01.01.2024}", *nav[0].CallbackData)
}

func TestActionsKeyboardHidesCancelForOnce(t *testing.T) {
	hour := 10
	once := &models.Event{ID: 1, Date: "01.09.2024", Hour: &hour, WeekDay: 2, Period: models.PeriodOnce}

	markup, err := actionsKeyboard(locale.RU, once)
	require.NoError(t, err)

	require.Len(t, markup.InlineKeyboard, 2)
	for _, row := range markup.InlineKeyboard {
		assert.NotContains(t, *row[0].CallbackData, "{cancel}")
	}

	weekly := &models.Event{ID: 1, Date: "01.02.2024", Hour: &hour, WeekDay: 2, Period: models.PeriodWeekly}
	markup, err = actionsKeyboard(locale.RU, weekly)
	require.NoError(t, err)
	assert.Len(t, markup.InlineKeyboard, 3)
}

func TestOccurrencesKeyboardSkipsExcepted(t *testing.T) {
	hour := 10
	event := &models.Event{
		ID: 7, Date: "01.02.2024", Hour: &hour, WeekDay: 2, Period: models.PeriodWeekly,
		ExceptionDates: []string{"01.09.2024"},
	}
	today := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	markup, err := occurrencesKeyboard(event, today)
	require.NoError(t, err)

	require.Len(t, markup.InlineKeyboard, occurrenceChoices-1)
	assert.Equal(t, "01.16.2024", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t,
		"eventActionDate: {cancel}_{7}_{01.16.2024}",
		*markup.InlineKeyboard[0][0].CallbackData,
	)
}

func TestOccurrencesKeyboardAllExcepted(t *testing.T) {
	hour := 10
	event := &models.Event{
		ID: 7, Date: "01.02.2024", Hour: &hour, WeekDay: 2, Period: models.PeriodWeekly,
		ExceptionDates: []string{
			"01.09.2024", "01.16.2024", "01.23.2024", "01.30.2024", "02.06.2024",
		},
	}
	today := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)

	// все ближайшие повторения уже отменены, предлагать нечего -
	// обработчик шлёт текст вместо пустой клавиатуры
	markup, err := occurrencesKeyboard(event, today)
	require.NoError(t, err)
	assert.Empty(t, markup.InlineKeyboard)
}
