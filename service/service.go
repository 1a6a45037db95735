// Package service реализует жизненный цикл черновиков и событий поверх
// внедряемых репозиториев и порта внешнего календаря. Никакого
// глобального состояния: зависимости собираются один раз при старте и
// передаются по ссылке.
package service

import (
	"context"
	"time"

	"github.com/aybykovskii/schedule-bot/models"
)

// EventRepository - порт хранилища событий
type EventRepository interface {
	Create(ctx context.Context, e *models.Event) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	GetByUserID(ctx context.Context, userID int64) ([]models.Event, error)
	GetAll(ctx context.Context) ([]models.Event, error)
	FindUnfilled(ctx context.Context, userID int64) (*models.Event, error)
	FindCandidates(ctx context.Context, date string, weekDay int) ([]models.Event, error)
	Update(ctx context.Context, id int64, upd models.EventUpdate) (*models.Event, error)
	AddExceptionDate(ctx context.Context, id int64, date string) (*models.Event, error)
	Delete(ctx context.Context, id int64) error
	DeleteOutdated(ctx context.Context, today string) (int64, error)
}

// DraftRepository - порт хранилища черновиков
type DraftRepository interface {
	Create(ctx context.Context, d *models.EventDraft) (string, error)
	GetByID(ctx context.Context, id string) (*models.EventDraft, error)
	GetByUserID(ctx context.Context, userID int64) (*models.EventDraft, error)
	Update(ctx context.Context, userID int64, upd models.DraftUpdate) (*models.EventDraft, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID int64) error
}

// Calendar - порт внешнего календаря
type Calendar interface {
	CreateEvent(ctx context.Context, e *models.Event, status string) (string, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	DeleteEvent(ctx context.Context, googleEventID string) error
}

// Settings - параметры расписания, общие для сервисов
type Settings struct {
	// Рабочее окно: допустимые часы лежат в [StartHour, EndHour)
	StartHour int
	EndHour   int
	// Location - единственная зона расписания
	Location *time.Location
	// StoreDeletedEvents - оставлять ли в календаре отменённые события
	// как след удалённых записей
	StoreDeletedEvents bool
}

// Статусы внешнего календаря, продублированы здесь, чтобы сервис не
// зависел от конкретной реализации порта
const (
	statusConfirmed = "confirmed"
	statusCancelled = "cancelled"
)
