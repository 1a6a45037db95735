package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
	"github.com/aybykovskii/schedule-bot/schedule"
)

// Events управляет подтверждёнными записями и их синхронизацией с
// внешним календарём.
//
// Методы, меняющие события, могут вернуть ненулевое событие вместе с
// ошибкой класса errs.ErrSync: локальная запись зафиксирована, а вызов
// внешнего календаря не удался. Локальное хранилище - источник истины,
// ошибка синхронизации никогда не откатывает фиксацию.
type Events struct {
	repo     EventRepository
	calendar Calendar
	settings Settings
	log      *zap.Logger

	// переопределяется в тестах
	now func() time.Time
}

// NewEvents создает сервис событий
func NewEvents(repo EventRepository, calendar Calendar, settings Settings, log *zap.Logger) *Events {
	return &Events{
		repo:     repo,
		calendar: calendar,
		settings: settings,
		log:      log.Named("events"),
		now:      time.Now,
	}
}

// Create возвращает незаполненное событие пользователя, а при его
// отсутствии создает новое
func (s *Events) Create(ctx context.Context, userID int64, name, tg string) (int64, error) {
	unfilled, err := s.repo.FindUnfilled(ctx, userID)
	if err == nil {
		return unfilled.ID, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return 0, err
	}

	return s.repo.Create(ctx, &models.Event{UserID: userID, Name: name, TG: tg})
}

// GetByID получает событие по идентификатору
func (s *Events) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUserID получает все события пользователя
func (s *Events) GetByUserID(ctx context.Context, userID int64) ([]models.Event, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetAll получает все события для общей ленты расписания
func (s *Events) GetAll(ctx context.Context) ([]models.Event, error) {
	return s.repo.GetAll(ctx)
}

// Update применяет частичное обновление. Результат, становящийся
// заполненным, обязан занимать свободный слот: два заполненных события
// никогда не пересекаются по повторениям. После записи событие
// проталкивается во внешний календарь: первый раз создаётся, дальше
// перезаписывается полным описанием.
func (s *Events) Update(ctx context.Context, id int64, upd models.EventUpdate) (*models.Event, error) {
	if err := s.validateUpdate(&upd); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prospective := *current
	if upd.Date != nil {
		prospective.Date = *upd.Date
	}
	if upd.Hour != nil {
		prospective.Hour = upd.Hour
	}
	if upd.WeekDay != nil {
		prospective.WeekDay = *upd.WeekDay
	}
	if upd.Period != nil {
		prospective.Period = *upd.Period
	}

	if prospective.IsFilled() {
		// собственные повторения события конфликтом не считаются
		if err := s.ensureSlotFree(ctx, &prospective, id); err != nil {
			return nil, err
		}
	}

	event, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	if !event.IsFilled() {
		return event, nil
	}

	return s.push(ctx, event)
}

// CreateFilled создает заполненное событие из черновика и сразу
// синхронизирует его с календарём
func (s *Events) CreateFilled(ctx context.Context, event *models.Event) (*models.Event, error) {
	if !event.IsFilled() {
		return nil, errs.Client("событие не заполнено")
	}

	if err := s.validateHour(*event.Hour); err != nil {
		return nil, err
	}

	if err := s.ensureSlotFree(ctx, event, 0); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.push(ctx, created)
}

// Cancel начинает отмену занятия. Еженедельная серия требует выбора
// конкретного повторения, событие возвращается без изменений с
// deleted=false. Разовое событие отменяется целиком, это то же самое,
// что удаление.
func (s *Events) Cancel(ctx context.Context, id int64) (event *models.Event, deleted bool, err error) {
	event, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if event.Period == models.PeriodWeekly {
		return event, false, nil
	}

	return event, true, s.Delete(ctx, id)
}

// AddExceptionDate отменяет одно повторение еженедельного события.
// Дата обязана попадать на день недели серии: исключение отменяет
// конкретное повторение, а не серию целиком.
func (s *Events) AddExceptionDate(ctx context.Context, id int64, date string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.Period != models.PeriodWeekly {
		return nil, errs.Client("исключения применимы только к еженедельным событиям")
	}

	weekDay, err := dates.Weekday(date)
	if err != nil {
		return nil, err
	}
	if int(weekDay) != event.WeekDay {
		return nil, errs.Client("дата %s не попадает на день недели серии", date)
	}

	event, err = s.repo.AddExceptionDate(ctx, id, date)
	if err != nil {
		return nil, err
	}

	if event.GoogleEventID == "" {
		return event, nil
	}

	if err := s.calendar.UpdateEvent(ctx, event); err != nil {
		s.logSyncFailure("обновление серии после исключения", event.ID, err)
		return event, err
	}

	if s.settings.StoreDeletedEvents {
		s.createCancelledMarker(ctx, event, date)
	}

	return event, nil
}

// Delete удаляет событие локально и во внешнем календаре. Внешний вызов
// выполняется после локального удаления и при неудаче не восстанавливает
// запись.
func (s *Events) Delete(ctx context.Context, id int64) error {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if event.GoogleEventID == "" {
		return nil
	}

	if err := s.calendar.DeleteEvent(ctx, event.GoogleEventID); err != nil {
		s.logSyncFailure("удаление из календаря", event.ID, err)
		return err
	}

	if s.settings.StoreDeletedEvents && event.IsFilled() {
		s.createCancelledMarker(ctx, event, event.Date)
	}

	return nil
}

// DeleteOutdated убирает разовые события со строго прошедшей датой.
// Уборка не считается критичной и не роняет вызывающую операцию.
func (s *Events) DeleteOutdated(ctx context.Context) {
	today := dates.Format(s.now().In(s.settings.Location))

	count, err := s.repo.DeleteOutdated(ctx, today)
	if err != nil {
		s.log.Warn("не удалось удалить устаревшие события", zap.Error(err))
		return
	}

	if count > 0 {
		s.log.Info("удалены устаревшие события", zap.Int64("count", count))
	}
}

// GetDateBusyHours возвращает занятые часы даты для бронирования с
// указанной периодичностью
func (s *Events) GetDateBusyHours(ctx context.Context, date string, period models.Period) ([]int, error) {
	candidates, err := s.candidates(ctx, date)
	if err != nil {
		return nil, err
	}

	return schedule.BusyHours(candidates, date, period)
}

// GetFreeHours возвращает свободные часы даты внутри рабочего окна
func (s *Events) GetFreeHours(ctx context.Context, date string, period models.Period) ([]int, error) {
	candidates, err := s.candidates(ctx, date)
	if err != nil {
		return nil, err
	}

	return schedule.FreeHours(candidates, date, period, s.settings.StartHour, s.settings.EndHour)
}

// GetAvailablePeriods возвращает периодичности, с которыми ещё можно
// занять пару (date, hour)
func (s *Events) GetAvailablePeriods(ctx context.Context, date string, hour int) ([]models.Period, error) {
	if err := s.validateHour(hour); err != nil {
		return nil, err
	}

	candidates, err := s.candidates(ctx, date)
	if err != nil {
		return nil, err
	}

	return schedule.AvailablePeriods(candidates, date, hour)
}

// ensureSlotFree охраняет инвариант непересечения: пара (date, hour)
// события должна быть свободна с учётом его периодичности. excludeID
// выводит из проверки само редактируемое событие.
func (s *Events) ensureSlotFree(ctx context.Context, e *models.Event, excludeID int64) error {
	candidates, err := s.candidates(ctx, e.Date)
	if err != nil {
		return err
	}

	others := make([]models.Event, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != excludeID {
			others = append(others, c)
		}
	}

	taken, err := schedule.IsSlotTaken(others, e.Date, *e.Hour, e.Period)
	if err != nil {
		return err
	}
	if taken {
		return errs.Client("слот %s %d:00 уже занят", e.Date, *e.Hour)
	}

	return nil
}

func (s *Events) candidates(ctx context.Context, date string) ([]models.Event, error) {
	weekDay, err := dates.Weekday(date)
	if err != nil {
		return nil, err
	}

	return s.repo.FindCandidates(ctx, date, int(weekDay))
}

// push проталкивает заполненное событие во внешний календарь и
// запоминает выданный идентификатор
func (s *Events) push(ctx context.Context, event *models.Event) (*models.Event, error) {
	if event.GoogleEventID != "" {
		if err := s.calendar.UpdateEvent(ctx, event); err != nil {
			s.logSyncFailure("обновление в календаре", event.ID, err)
			return event, err
		}
		return event, nil
	}

	googleID, err := s.calendar.CreateEvent(ctx, event, statusConfirmed)
	if err != nil {
		s.logSyncFailure("создание в календаре", event.ID, err)
		return event, err
	}

	updated, err := s.repo.Update(ctx, event.ID, models.EventUpdate{GoogleEventID: &googleID})
	if err != nil {
		return event, err
	}

	return updated, nil
}

// createCancelledMarker оставляет в календаре отменённое разовое событие
// как след отменённого повторения либо удалённой записи. Маркер - чистая
// история, его неудача только логируется.
func (s *Events) createCancelledMarker(ctx context.Context, event *models.Event, date string) {
	weekDay, err := dates.Weekday(date)
	if err != nil {
		return
	}

	marker := *event
	marker.Date = date
	marker.WeekDay = int(weekDay)
	marker.Period = models.PeriodOnce
	marker.ExceptionDates = nil
	marker.GoogleEventID = ""

	if _, err := s.calendar.CreateEvent(ctx, &marker, statusCancelled); err != nil {
		s.logSyncFailure("создание отменённого маркера", event.ID, err)
	}
}

func (s *Events) validateUpdate(upd *models.EventUpdate) error {
	if upd.Hour != nil {
		if err := s.validateHour(*upd.Hour); err != nil {
			return err
		}
	}

	if upd.Date != nil {
		weekDay, err := dates.Weekday(*upd.Date)
		if err != nil {
			return err
		}
		wd := int(weekDay)
		upd.WeekDay = &wd
	}

	return nil
}

func (s *Events) validateHour(hour int) error {
	if hour < s.settings.StartHour || hour >= s.settings.EndHour {
		return errs.Client("час %d вне рабочего окна [%d, %d)", hour, s.settings.StartHour, s.settings.EndHour)
	}
	return nil
}

func (s *Events) logSyncFailure(op string, eventID int64, err error) {
	s.log.Warn("синхронизация с календарём не удалась, локальная запись сохранена",
		zap.String("op", op),
		zap.Int64("event_id", eventID),
		zap.Error(err),
	)
}
