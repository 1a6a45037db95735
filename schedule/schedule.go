// Package schedule - движок доступности: чистые функции над множеством
// заполненных событий. Движок только читает события и никогда не меняет
// чужие записи, чтобы освободить слот.
package schedule

import (
	"sort"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/models"
)

// BusyHours возвращает занятые часы даты date для бронирования с
// периодичностью period. Учитываются только заполненные события:
//
//   - разовое событие занимает час, если совпадает дата;
//   - еженедельное занимает час, если совпадает день недели. При разовом
//     бронировании повторение, отменённое исключением ровно на эту дату,
//     час освобождает; при еженедельном исключения не учитываются -
//     серия продолжается в остальные недели.
//
// Часы дедуплицируются и возвращаются по возрастанию.
func BusyHours(events []models.Event, date string, period models.Period) ([]int, error) {
	weekDay, err := dates.Weekday(date)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for i := range events {
		e := &events[i]
		if !e.IsFilled() {
			continue
		}

		switch e.Period {
		case models.PeriodOnce:
			if e.Date == date {
				seen[*e.Hour] = true
			}

		case models.PeriodWeekly:
			if e.WeekDay != int(weekDay) {
				continue
			}
			if period == models.PeriodOnce && e.HasException(date) {
				continue
			}
			seen[*e.Hour] = true
		}
	}

	busy := make([]int, 0, len(seen))
	for hour := range seen {
		busy = append(busy, hour)
	}
	sort.Ints(busy)

	return busy, nil
}

// AvailablePeriods возвращает периодичности, с которыми ещё можно занять
// пару (date, hour). Если слот затронут разовым событием на эту дату или
// еженедельной серией по этому дню недели, остаётся только разовое
// бронирование: оно может встать в окно, открытое исключением отменённого
// повторения. Сосуществование разового и еженедельного события в одном
// слоте возможно только через механизм исключений.
func AvailablePeriods(events []models.Event, date string, hour int) ([]models.Period, error) {
	weekDay, err := dates.Weekday(date)
	if err != nil {
		return nil, err
	}

	for i := range events {
		e := &events[i]
		if !e.IsFilled() || *e.Hour != hour {
			continue
		}

		onceMatch := e.Period == models.PeriodOnce && e.Date == date
		weeklyMatch := e.Period == models.PeriodWeekly && e.WeekDay == int(weekDay)

		if onceMatch || weeklyMatch {
			return []models.Period{models.PeriodOnce}, nil
		}
	}

	return append([]models.Period(nil), models.Periods...), nil
}

// IsSlotTaken проверяет, занята ли пара (date, hour) для бронирования с
// периодичностью period. Семантика та же, что у BusyHours: разовое
// бронирование может встать в окно, открытое исключением, еженедельное -
// нет.
func IsSlotTaken(events []models.Event, date string, hour int, period models.Period) (bool, error) {
	busy, err := BusyHours(events, date, period)
	if err != nil {
		return false, err
	}

	for _, h := range busy {
		if h == hour {
			return true, nil
		}
	}

	return false, nil
}

// FreeHours возвращает свободные часы даты в полуинтервале [from, to)
func FreeHours(events []models.Event, date string, period models.Period, from, to int) ([]int, error) {
	busy, err := BusyHours(events, date, period)
	if err != nil {
		return nil, err
	}

	taken := make(map[int]bool, len(busy))
	for _, h := range busy {
		taken[h] = true
	}

	free := make([]int, 0, to-from)
	for hour := from; hour < to; hour++ {
		if !taken[hour] {
			free = append(free, hour)
		}
	}

	return free, nil
}
