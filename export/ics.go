// Package export собирает записи в iCalendar-ленту. Лента читается
// любым календарём по подписке и не требует учётных данных Google,
// поэтому служит запасным каналом синхронизации.
package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/models"
)

// exdateLayout - формат дат-исключений в UTC
const exdateLayout = "20060102T150405Z"

// Exporter превращает записи в iCalendar-документ
type Exporter struct {
	loc *time.Location
}

// New создает экспортёр для зоны расписания
func New(loc *time.Location) *Exporter {
	return &Exporter{loc: loc}
}

// Export сериализует заполненные записи в iCalendar. Незаполненные
// события пропускаются: им нечего показывать в календаре.
func (e *Exporter) Export(events []models.Event) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//schedule-bot//RU")

	for i := range events {
		event := &events[i]
		if !event.IsFilled() {
			continue
		}
		if err := e.addEvent(cal, event); err != nil {
			return "", err
		}
	}

	return cal.Serialize(), nil
}

func (e *Exporter) addEvent(cal *ics.Calendar, event *models.Event) error {
	day, err := dates.Parse(event.Date)
	if err != nil {
		return err
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), *event.Hour, 0, 0, 0, e.loc)

	ev := cal.AddEvent(fmt.Sprintf("event-%d@schedule-bot", event.ID))
	ev.SetSummary(fmt.Sprintf("%s - %s", event.Name, event.TG))
	ev.SetStartAt(start)
	ev.SetEndAt(start.Add(time.Hour))
	ev.SetDtStampTime(time.Now().UTC())

	if event.Period != models.PeriodWeekly {
		return nil
	}

	ev.AddRrule("FREQ=WEEKLY")

	// исключение указывает на конкретное повторение, поэтому несёт час
	// серии, а не полночь
	for _, exc := range event.ExceptionDates {
		excDay, err := dates.Parse(exc)
		if err != nil {
			return err
		}

		moment := time.Date(excDay.Year(), excDay.Month(), excDay.Day(), *event.Hour, 0, 0, 0, e.loc)
		ev.AddProperty(ics.ComponentProperty(ics.PropertyExdate), moment.UTC().Format(exdateLayout))
	}

	return nil
}
