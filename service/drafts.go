package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// Drafts управляет единственным незавершённым черновиком пользователя.
//
// Черновик - единственный разделяемый изменяемый ресурс: параллельные
// запросы одного пользователя (быстрые двойные нажатия) выполняют
// read-modify-write без координации со стороны транспорта, поэтому все
// мутации сериализуются пер-пользовательским мьютексом.
type Drafts struct {
	repo   DraftRepository
	events *Events
	log    *zap.Logger

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex

	// переопределяется в тестах
	now func() time.Time
}

// NewDrafts создает сервис черновиков
func NewDrafts(repo DraftRepository, events *Events, log *zap.Logger) *Drafts {
	return &Drafts{
		repo:      repo,
		events:    events,
		log:       log.Named("drafts"),
		userLocks: make(map[int64]*sync.Mutex),
		now:       time.Now,
	}
}

// Seed - начальные поля черновика при старте диалога
type Seed struct {
	// Period задаётся, когда периодичность известна заранее
	// (редактирование существующего события)
	Period *models.Period
	// UpdateEventID отличает редактирование от создания
	UpdateEventID int64
}

// Start начинает новый диалог бронирования: убирает устаревшие события,
// удаляет залежавшийся черновик пользователя и создает свежий.
// Порядок фиксированный, уборка выполняется по принципу best-effort.
func (s *Drafts) Start(ctx context.Context, userID int64, seed Seed) (*models.EventDraft, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	s.events.DeleteOutdated(ctx)

	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return nil, err
	}

	draft := &models.EventDraft{
		UserID:        userID,
		Period:        seed.Period,
		UpdateEventID: seed.UpdateEventID,
	}

	if _, err := s.repo.Create(ctx, draft); err != nil {
		return nil, err
	}

	return s.repo.GetByUserID(ctx, userID)
}

// GetByID получает черновик по идентификатору
func (s *Drafts) GetByID(ctx context.Context, id string) (*models.EventDraft, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUserID получает черновик пользователя
func (s *Drafts) GetByUserID(ctx context.Context, userID int64) (*models.EventDraft, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Update применяет очередной ответ пользователя к черновику.
// Установка даты попутно кэширует день недели.
func (s *Drafts) Update(ctx context.Context, userID int64, upd models.DraftUpdate) (*models.EventDraft, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	if upd.Hour != nil {
		if err := s.events.validateHour(*upd.Hour); err != nil {
			return nil, err
		}
	}

	if upd.Date != nil {
		weekDay, err := dates.Weekday(*upd.Date)
		if err != nil {
			return nil, err
		}
		wd := int(weekDay)
		upd.WeekDay = &wd
	}

	draft, err := s.repo.Update(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Client("у пользователя %d нет активного черновика", userID)
		}
		return nil, err
	}

	return draft, nil
}

// Commit фиксирует завершённый черновик: создает новое событие либо
// применяет изменения к редактируемому. Черновик удаляется в обоих
// случаях независимо от исхода внешней синхронизации - ошибка класса
// errs.ErrSync возвращается вместе с уже зафиксированным событием.
func (s *Drafts) Commit(ctx context.Context, userID int64, name, tg string) (*models.Event, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	draft, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Client("у пользователя %d нет активного черновика", userID)
		}
		return nil, err
	}

	if !draft.IsComplete() {
		return nil, errs.Client("черновик пользователя %d не завершён", userID)
	}

	var (
		event   *models.Event
		syncErr error
	)

	if draft.UpdateEventID != 0 {
		// Редактирование: применяем дату и час, периодичность серии
		// не меняется. Полное описание повторения пересчитывается из
		// события, а не из дельты.
		event, syncErr = s.events.Update(ctx, draft.UpdateEventID, models.EventUpdate{
			Date:    draft.Date,
			Hour:    draft.Hour,
			WeekDay: draft.WeekDay,
		})
	} else {
		// день недели выводится из даты, а не из кэша черновика
		weekDay, err := dates.Weekday(*draft.Date)
		if err != nil {
			return nil, err
		}

		event, syncErr = s.events.CreateFilled(ctx, &models.Event{
			UserID:  userID,
			Name:    name,
			TG:      tg,
			Date:    *draft.Date,
			Hour:    draft.Hour,
			WeekDay: int(weekDay),
			Period:  *draft.Period,
		})
	}

	if syncErr != nil && !errors.Is(syncErr, errs.ErrSync) {
		// Локальная фиксация не состоялась, черновик оставляем -
		// пользователь может повторить шаг
		return nil, syncErr
	}

	if err := s.repo.Delete(ctx, draft.ID); err != nil {
		s.log.Warn("не удалось удалить зафиксированный черновик",
			zap.String("draft_id", draft.ID),
			zap.Error(err),
		)
	}

	return event, syncErr
}

// EditStartDate возвращает дату, с которой начинается выбор при
// редактировании: хранимая дата прокручивается к ближайшему будущему
// повторению
func (s *Drafts) EditStartDate(event *models.Event) (string, error) {
	return dates.NextOccurrence(event.Date, s.now().In(s.events.settings.Location))
}

// Delete удаляет черновик по идентификатору
func (s *Drafts) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// DeleteByUserID удаляет черновик пользователя, если он есть
func (s *Drafts) DeleteByUserID(ctx context.Context, userID int64) error {
	draft, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}

	unlock := s.lockUser(draft.UserID)
	defer unlock()

	return s.repo.DeleteByUserID(ctx, userID)
}

// lockUser захватывает мьютекс пользователя и возвращает функцию
// освобождения
func (s *Drafts) lockUser(userID int64) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
