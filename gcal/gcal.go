// Package gcal - односторонняя синхронизация событий во внешний Google
// Calendar. Календарь никогда не является источником истины: локальное
// хранилище первично, сюда только проталкиваются изменения.
package gcal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// Статусы событий внешнего календаря
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Client - клиент внешнего календаря
type Client struct {
	svc        *calendar.Service
	calendarID string
	loc        *time.Location
}

// New создает клиент по JSON сервисного аккаунта
func New(ctx context.Context, credentialsJSON, calendarID string, loc *time.Location) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, []byte(credentialsJSON), calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать учётные данные Google: %w", err)
	}

	svc, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать клиент Google Calendar: %w", err)
	}

	return &Client{svc: svc, calendarID: calendarID, loc: loc}, nil
}

// CreateEvent создает событие во внешнем календаре и возвращает его
// идентификатор
func (c *Client) CreateEvent(ctx context.Context, e *models.Event, status string) (string, error) {
	gev, err := c.convert(e, status)
	if err != nil {
		return "", err
	}

	created, err := c.svc.Events.Insert(c.calendarID, gev).Context(ctx).Do()
	if err != nil {
		return "", errs.Sync("ошибка при создании события в календаре: %v", err)
	}
	if created.Id == "" {
		return "", errs.Sync("календарь не вернул идентификатор события")
	}

	return created.Id, nil
}

// UpdateEvent перезаписывает событие во внешнем календаре. Описание
// повторения всегда отправляется целиком - правило плюс все текущие
// исключения, без инкрементальных диффов.
func (c *Client) UpdateEvent(ctx context.Context, e *models.Event) error {
	if e.GoogleEventID == "" {
		return errs.Sync("у события %d нет идентификатора в календаре", e.ID)
	}

	gev, err := c.convert(e, StatusConfirmed)
	if err != nil {
		return err
	}

	if _, err := c.svc.Events.Update(c.calendarID, e.GoogleEventID, gev).Context(ctx).Do(); err != nil {
		return errs.Sync("ошибка при обновлении события в календаре: %v", err)
	}

	return nil
}

// DeleteEvent удаляет событие из внешнего календаря
func (c *Client) DeleteEvent(ctx context.Context, googleEventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, googleEventID).Context(ctx).Do(); err != nil {
		return errs.Sync("ошибка при удалении события из календаря: %v", err)
	}
	return nil
}

// Disabled - заглушка на случай, когда синхронизация не настроена.
// Каждый вызов возвращает ошибку класса errs.ErrSync: локальные записи
// фиксируются как обычно, а пользователь видит предупреждение о том,
// что календарь не обновлён.
type Disabled struct{}

// CreateEvent сообщает об отключённой синхронизации
func (Disabled) CreateEvent(context.Context, *models.Event, string) (string, error) {
	return "", errs.Sync("синхронизация с календарём не настроена")
}

// UpdateEvent сообщает об отключённой синхронизации
func (Disabled) UpdateEvent(context.Context, *models.Event) error {
	return errs.Sync("синхронизация с календарём не настроена")
}

// DeleteEvent сообщает об отключённой синхронизации
func (Disabled) DeleteEvent(context.Context, string) error {
	return errs.Sync("синхронизация с календарём не настроена")
}

// convert переводит локальное событие в формат внешнего календаря:
// слот длиной в час, прозрачность opaque, заголовок "имя - контакт"
func (c *Client) convert(e *models.Event, status string) (*calendar.Event, error) {
	if !e.IsFilled() {
		return nil, errs.Client("событие %d не заполнено", e.ID)
	}

	day, err := dates.Parse(e.Date)
	if err != nil {
		return nil, err
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), *e.Hour, 0, 0, 0, c.loc)
	end := start.Add(time.Hour)

	recurrence, err := BuildRecurrence(e, c.loc)
	if err != nil {
		return nil, err
	}

	return &calendar.Event{
		Summary: fmt.Sprintf("%s - %s", e.Name, e.TG),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: c.loc.String(),
		},
		Recurrence:   recurrence,
		Transparency: "opaque",
		Status:       status,
	}, nil
}
