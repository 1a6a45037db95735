package gcal

import (
	"time"

	"github.com/teambition/rrule-go"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// BuildRecurrence собирает описание повторения для внешнего календаря.
// Разовое событие повторения не имеет. Еженедельное описывается одним
// правилом RRULE плюс строкой EXDATE на каждую дату-исключение.
//
// Исключение обязано выключать то же самое время, что и серия, поэтому
// EXDATE вычисляется на час события в зоне расписания, а не на полночь.
// Описание всегда собирается целиком из текущего состояния события -
// внешний календарь не знает истории исключений.
func BuildRecurrence(e *models.Event, loc *time.Location) ([]string, error) {
	if e.Period != models.PeriodWeekly {
		return nil, nil
	}
	if e.Hour == nil {
		return nil, errs.Client("у события %d не задан час", e.ID)
	}

	rule, err := rrule.NewRRule(rrule.ROption{Freq: rrule.WEEKLY})
	if err != nil {
		return nil, errs.Sync("не удалось собрать правило повторения: %v", err)
	}

	lines := []string{"RRULE:" + rule.String()}

	for _, exDate := range e.ExceptionDates {
		moment, err := exceptionMoment(exDate, *e.Hour, loc)
		if err != nil {
			return nil, err
		}
		lines = append(lines, "EXDATE:"+moment.UTC().Format("20060102T150405Z"))
	}

	return lines, nil
}

// exceptionMoment возвращает момент отменённого повторения: дата
// исключения на час серии в зоне расписания
func exceptionMoment(date string, hour int, loc *time.Location) (time.Time, error) {
	day, err := dates.Parse(date)
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc), nil
}
