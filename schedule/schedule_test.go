package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// mkEvent собирает заполненное событие. 01.02.2024 - вторник.
func mkEvent(id int64, period models.Period, date string, hour, weekDay int) models.Event {
	return models.Event{
		ID:      id,
		UserID:  1,
		Date:    date,
		Hour:    &hour,
		WeekDay: weekDay,
		Period:  period,
	}
}

func TestBusyHoursOnce(t *testing.T) {
	events := []models.Event{
		mkEvent(1, models.PeriodOnce, "01.02.2024", 10, 2),
	}

	busy, err := BusyHours(events, "01.02.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, busy)

	// другая дата того же дня недели свободна
	busy, err = BusyHours(events, "01.09.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestBusyHoursWeekly(t *testing.T) {
	weekly := mkEvent(1, models.PeriodWeekly, "01.02.2024", 10, 2)
	events := []models.Event{weekly}

	// серия занимает каждый вторник, включая будущие недели
	busy, err := BusyHours(events, "01.09.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, busy)

	// среда свободна
	busy, err = BusyHours(events, "01.10.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestBusyHoursExceptionFreesOnceBooking(t *testing.T) {
	weekly := mkEvent(1, models.PeriodWeekly, "01.02.2024", 10, 2)
	weekly.ExceptionDates = []string{"01.09.2024"}
	events := []models.Event{weekly}

	// отменённое повторение открывает слот для разового бронирования
	busy, err := BusyHours(events, "01.09.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Empty(t, busy)

	// для еженедельного бронирования слот остаётся занятым: серия
	// продолжается в остальные недели
	busy, err = BusyHours(events, "01.09.2024", models.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, busy)

	// исключение действует только на свою дату
	busy, err = BusyHours(events, "01.16.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, busy)
}

func TestBusyHoursDedupeAndSort(t *testing.T) {
	events := []models.Event{
		mkEvent(1, models.PeriodOnce, "01.09.2024", 12, 2),
		mkEvent(2, models.PeriodWeekly, "01.02.2024", 12, 2),
		mkEvent(3, models.PeriodWeekly, "01.02.2024", 9, 2),
	}

	busy, err := BusyHours(events, "01.09.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 12}, busy)
}

func TestBusyHoursIgnoresUnfilled(t *testing.T) {
	unfilled := models.Event{ID: 1, UserID: 1, Period: models.PeriodOnce, Date: "01.09.2024"}

	busy, err := BusyHours([]models.Event{unfilled}, "01.09.2024", models.PeriodOnce)
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestBusyHoursBadDate(t *testing.T) {
	_, err := BusyHours(nil, "2024-01-09", models.PeriodOnce)
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestAvailablePeriods(t *testing.T) {
	weekly := mkEvent(1, models.PeriodWeekly, "01.02.2024", 10, 2)
	weekly.ExceptionDates = []string{"01.09.2024"}
	events := []models.Event{weekly}

	// свободный слот допускает обе периодичности
	periods, err := AvailablePeriods(events, "01.09.2024", 11)
	require.NoError(t, err)
	assert.Equal(t, []models.Period{models.PeriodOnce, models.PeriodWeekly}, periods)

	// слот, затронутый серией, допускает только разовое бронирование,
	// даже если конкретное повторение отменено
	periods, err = AvailablePeriods(events, "01.09.2024", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.Period{models.PeriodOnce}, periods)
}

func TestAvailablePeriodsOnceOccupant(t *testing.T) {
	events := []models.Event{
		mkEvent(1, models.PeriodOnce, "01.09.2024", 10, 2),
	}

	periods, err := AvailablePeriods(events, "01.09.2024", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.Period{models.PeriodOnce}, periods)

	// другая дата не затронута
	periods, err = AvailablePeriods(events, "01.16.2024", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.Period{models.PeriodOnce, models.PeriodWeekly}, periods)
}

func TestIsSlotTaken(t *testing.T) {
	weekly := mkEvent(1, models.PeriodWeekly, "01.02.2024", 10, 2)
	weekly.ExceptionDates = []string{"01.09.2024"}
	events := []models.Event{weekly}

	taken, err := IsSlotTaken(events, "01.16.2024", 10, models.PeriodOnce)
	require.NoError(t, err)
	assert.True(t, taken)

	// отменённое повторение открывает слот для разового бронирования
	taken, err = IsSlotTaken(events, "01.09.2024", 10, models.PeriodOnce)
	require.NoError(t, err)
	assert.False(t, taken)

	// но не для еженедельного: серия продолжается в остальные недели
	taken, err = IsSlotTaken(events, "01.09.2024", 10, models.PeriodWeekly)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestFreeHours(t *testing.T) {
	events := []models.Event{
		mkEvent(1, models.PeriodWeekly, "01.02.2024", 10, 2),
		mkEvent(2, models.PeriodOnce, "01.09.2024", 12, 2),
	}

	free, err := FreeHours(events, "01.09.2024", models.PeriodOnce, 9, 14)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 11, 13}, free)
}
