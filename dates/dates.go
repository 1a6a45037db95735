// Package dates работает с каноническим строковым представлением дат
// MM.DD.YYYY, в котором даты хранятся и передаются в callback-токенах.
package dates

import (
	"time"

	"github.com/aybykovskii/schedule-bot/errs"
)

// Layout - канонический формат даты MM.DD.YYYY
const Layout = "01.02.2006"

// Parse разбирает каноническую дату. Время всегда полночь UTC:
// дата здесь - календарный ключ, а не момент времени.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, errs.Client("некорректная дата %q: ожидается формат MM.DD.YYYY", s)
	}
	return t, nil
}

// Format приводит время к канонической дате
func Format(t time.Time) string {
	return t.Format(Layout)
}

// IsDate сообщает, является ли строка канонической датой
func IsDate(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Weekday возвращает день недели канонической даты
func Weekday(s string) (time.Weekday, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// Truncate отбрасывает время, оставляя календарную дату
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsPast сообщает, что дата строго раньше сегодняшней
func IsPast(s string, now time.Time) (bool, error) {
	t, err := Parse(s)
	if err != nil {
		return false, err
	}
	return t.Before(Truncate(now)), nil
}

// NextOccurrence прокручивает дату вперёд по 7 дней, пока она не станет
// сегодняшней или будущей. День недели при этом сохраняется, поэтому
// редактирование еженедельной серии начинается с её ближайшего повторения.
func NextOccurrence(s string, now time.Time) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}

	today := Truncate(now)
	for t.Before(today) {
		t = t.AddDate(0, 0, 7)
	}

	return Format(t), nil
}

// Range возвращает count дат подряд начиная со start с шагом step дней.
// Дни недели из skip пропускаются (выходной день преподавателя).
func Range(start time.Time, count, step int, skip ...time.Weekday) []string {
	out := make([]string, 0, count)
	current := Truncate(start)

	for i := 0; i < count; i++ {
		if !skipped(current.Weekday(), skip) {
			out = append(out, Format(current))
		}
		current = current.AddDate(0, 0, step)
	}

	return out
}

func skipped(day time.Weekday, skip []time.Weekday) bool {
	for _, d := range skip {
		if d == day {
			return true
		}
	}
	return false
}
