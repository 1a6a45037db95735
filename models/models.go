package models

import (
	"time"

	"github.com/aybykovskii/schedule-bot/errs"
)

// Period определяет периодичность события
type Period string

const (
	PeriodOnce   Period = "once"
	PeriodWeekly Period = "weekly"
)

// Periods перечисляет поддерживаемые периоды в порядке показа пользователю
var Periods = []Period{PeriodOnce, PeriodWeekly}

// Valid сообщает, задан ли период одним из поддерживаемых значений
func (p Period) Valid() bool {
	return p == PeriodOnce || p == PeriodWeekly
}

// ParsePeriod разбирает период из строки callback-токена
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", errs.Client("неизвестный период %q", s)
	}
	return p, nil
}

// Action определяет операцию над существующим событием.
// Набор закрыт: switch по Action обязан перечислять все три значения.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionCancel Action = "cancel"
	ActionDelete Action = "delete"
)

// Actions перечисляет операции в порядке показа пользователю
var Actions = []Action{ActionEdit, ActionCancel, ActionDelete}

// ParseAction разбирает операцию из строки callback-токена
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionEdit, ActionCancel, ActionDelete:
		return a, nil
	default:
		return "", errs.Client("неизвестное действие %q", s)
	}
}

// Event представляет подтверждённую запись
type Event struct {
	ID     int64
	UserID int64
	Name   string
	TG     string

	// Date хранится в каноническом виде MM.DD.YYYY
	Date string
	// Hour - час начала, nil пока час не выбран. Указатель отличает
	// "не задано" от легитимного нулевого часа.
	Hour *int
	// WeekDay кэшируется при установке даты для быстрого поиска
	// еженедельных совпадений. 0 - воскресенье, как в time.Weekday.
	WeekDay int
	Period  Period

	// GoogleEventID появляется после первой синхронизации
	GoogleEventID string
	// ExceptionDates - упорядоченное множество дат, на которые отменены
	// отдельные повторения еженедельного события
	ExceptionDates []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFilled сообщает, заполнены ли все поля, необходимые для бронирования
func (e *Event) IsFilled() bool {
	return e.Date != "" && e.Hour != nil && e.Period.Valid()
}

// HasException проверяет, отменено ли повторение на конкретную дату.
/// Сравнение строго по дате: исключение отменяет одно повторение,
// а не всю серию по этому дню недели.
func (e *Event) HasException(date string) bool {
	for _, d := range e.ExceptionDates {
		if d == date {
			return true
		}
	}
	return false
}

// EventUpdate - частичное обновление события. nil означает
// "поле не меняется", поэтому час 0 можно установить явно.
type EventUpdate struct {
	Name          *string
	TG            *string
	Date          *string
	Hour          *int
	WeekDay       *int
	Period        *Period
	GoogleEventID *string
}

// EventDraft - единственный незавершённый черновик записи пользователя
type EventDraft struct {
	ID     string
	UserID int64

	Date    *string
	Hour    *int
	WeekDay *int
	Period  *Period

	// UpdateEventID ссылается на редактируемое событие; 0 - создание нового
	UpdateEventID int64
	// PromptMessageID - сообщение с последним вопросом, которое нужно
	// убрать при переходе к следующему шагу. Чисто интерфейсная деталь.
	PromptMessageID int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsComplete сообщает, готов ли черновик к фиксации
func (d *EventDraft) IsComplete() bool {
	return d.Date != nil && d.Hour != nil && d.Period != nil && d.Period.Valid()
}

// DraftUpdate - частичное обновление черновика, семантика как у EventUpdate
type DraftUpdate struct {
	Date            *string
	Hour            *int
	WeekDay         *int
	Period          *Period
	PromptMessageID *int
}
