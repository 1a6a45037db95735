package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// fakeEventRepo - хранилище событий в памяти для тестов сервисов
type fakeEventRepo struct {
	nextID int64
	events map[int64]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int64]*models.Event)}
}

func (r *fakeEventRepo) Create(_ context.Context, e *models.Event) (int64, error) {
	r.nextID++
	stored := *e
	stored.ID = r.nextID
	r.events[stored.ID] = &stored
	return stored.ID, nil
}

func (r *fakeEventRepo) GetByID(_ context.Context, id int64) (*models.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, errs.NotFound("событие %d не найдено", id)
	}
	copied := *e
	return &copied, nil
}

func (r *fakeEventRepo) GetByUserID(_ context.Context, userID int64) ([]models.Event, error) {
	var out []models.Event
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) GetAll(_ context.Context) ([]models.Event, error) {
	var out []models.Event
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out, nil
}

func (r *fakeEventRepo) FindUnfilled(_ context.Context, userID int64) (*models.Event, error) {
	for _, e := range r.events {
		if e.UserID == userID && !e.IsFilled() {
			copied := *e
			return &copied, nil
		}
	}
	return nil, errs.NotFound("незаполненное событие пользователя %d не найдено", userID)
}

func (r *fakeEventRepo) FindCandidates(_ context.Context, date string, weekDay int) ([]models.Event, error) {
	var out []models.Event
	for _, e := range r.events {
		onceMatch := e.Period == models.PeriodOnce && e.Date == date
		weeklyMatch := e.Period == models.PeriodWeekly && e.WeekDay == weekDay
		if onceMatch || weeklyMatch {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) Update(_ context.Context, id int64, upd models.EventUpdate) (*models.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, errs.NotFound("событие %d не найдено", id)
	}

	if upd.Name != nil {
		e.Name = *upd.Name
	}
	if upd.TG != nil {
		e.TG = *upd.TG
	}
	if upd.Date != nil {
		e.Date = *upd.Date
	}
	if upd.Hour != nil {
		h := *upd.Hour
		e.Hour = &h
	}
	if upd.WeekDay != nil {
		e.WeekDay = *upd.WeekDay
	}
	if upd.Period != nil {
		e.Period = *upd.Period
		if e.Period == models.PeriodOnce {
			e.ExceptionDates = nil
		}
	}
	if upd.GoogleEventID != nil {
		e.GoogleEventID = *upd.GoogleEventID
	}

	copied := *e
	return &copied, nil
}

func (r *fakeEventRepo) AddExceptionDate(_ context.Context, id int64, date string) (*models.Event, error) {
	e, ok := r.events[id]
	if !ok {
		return nil, errs.NotFound("событие %d не найдено", id)
	}

	if !e.HasException(date) {
		e.ExceptionDates = append(e.ExceptionDates, date)
	}

	copied := *e
	return &copied, nil
}

func (r *fakeEventRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.events[id]; !ok {
		return errs.NotFound("событие %d не найдено", id)
	}
	delete(r.events, id)
	return nil
}

func (r *fakeEventRepo) DeleteOutdated(context.Context, string) (int64, error) {
	return 0, nil
}

// fakeDraftRepo - хранилище черновиков в памяти, по одному на пользователя
type fakeDraftRepo struct {
	nextID int
	drafts map[int64]*models.EventDraft
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{drafts: make(map[int64]*models.EventDraft)}
}

func (r *fakeDraftRepo) Create(_ context.Context, d *models.EventDraft) (string, error) {
	r.nextID++
	stored := *d
	stored.ID = fmt.Sprintf("draft-%d", r.nextID)
	r.drafts[stored.UserID] = &stored
	return stored.ID, nil
}

func (r *fakeDraftRepo) GetByID(_ context.Context, id string) (*models.EventDraft, error) {
	for _, d := range r.drafts {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, errs.NotFound("черновик %s не найден", id)
}

func (r *fakeDraftRepo) GetByUserID(_ context.Context, userID int64) (*models.EventDraft, error) {
	d, ok := r.drafts[userID]
	if !ok {
		return nil, errs.NotFound("у пользователя %d нет черновика", userID)
	}
	copied := *d
	return &copied, nil
}

func (r *fakeDraftRepo) Update(_ context.Context, userID int64, upd models.DraftUpdate) (*models.EventDraft, error) {
	d, ok := r.drafts[userID]
	if !ok {
		return nil, errs.NotFound("у пользователя %d нет черновика", userID)
	}

	if upd.Date != nil {
		date := *upd.Date
		d.Date = &date
	}
	if upd.Hour != nil {
		h := *upd.Hour
		d.Hour = &h
	}
	if upd.WeekDay != nil {
		wd := *upd.WeekDay
		d.WeekDay = &wd
	}
	if upd.Period != nil {
		p := *upd.Period
		d.Period = &p
	}
	if upd.PromptMessageID != nil {
		d.PromptMessageID = *upd.PromptMessageID
	}

	copied := *d
	return &copied, nil
}

func (r *fakeDraftRepo) Delete(_ context.Context, id string) error {
	for userID, d := range r.drafts {
		if d.ID == id {
			delete(r.drafts, userID)
			return nil
		}
	}
	return errs.NotFound("черновик %s не найден", id)
}

func (r *fakeDraftRepo) DeleteByUserID(_ context.Context, userID int64) error {
	delete(r.drafts, userID)
	return nil
}

// fakeCalendar считает вызовы и по флагу имитирует недоступность
type fakeCalendar struct {
	created int
	updated int
	deleted int
	fail    bool
}

func (c *fakeCalendar) CreateEvent(_ context.Context, e *models.Event, _ string) (string, error) {
	if c.fail {
		return "", errs.Sync("календарь недоступен")
	}
	c.created++
	return fmt.Sprintf("g-%d", e.ID), nil
}

func (c *fakeCalendar) UpdateEvent(context.Context, *models.Event) error {
	if c.fail {
		return errs.Sync("календарь недоступен")
	}
	c.updated++
	return nil
}

func (c *fakeCalendar) DeleteEvent(context.Context, string) error {
	if c.fail {
		return errs.Sync("календарь недоступен")
	}
	c.deleted++
	return nil
}

func newTestServices(t *testing.T) (*Events, *Drafts, *fakeEventRepo, *fakeDraftRepo, *fakeCalendar) {
	t.Helper()

	eventRepo := newFakeEventRepo()
	draftRepo := newFakeDraftRepo()
	cal := &fakeCalendar{}

	settings := Settings{StartHour: 9, EndHour: 19, Location: mustUTC()}
	events := NewEvents(eventRepo, cal, settings, zap.NewNop())
	drafts := NewDrafts(draftRepo, events, zap.NewNop())

	return events, drafts, eventRepo, draftRepo, cal
}

func ptr[T any](v T) *T { return &v }

func TestDraftCommitCreatesEvent(t *testing.T) {
	ctx := context.Background()
	_, drafts, eventRepo, _, cal := newTestServices(t)

	_, err := drafts.Start(ctx, 1, Seed{Period: ptr(models.PeriodWeekly)})
	require.NoError(t, err)

	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Date: ptr("01.09.2024")})
	require.NoError(t, err)

	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(10)})
	require.NoError(t, err)

	event, err := drafts.Commit(ctx, 1, "Алиса", "@alice")
	require.NoError(t, err)

	assert.Equal(t, "01.09.2024", event.Date)
	assert.Equal(t, 10, *event.Hour)
	assert.Equal(t, 2, event.WeekDay) // вторник
	assert.Equal(t, models.PeriodWeekly, event.Period)
	assert.Equal(t, "g-1", event.GoogleEventID)
	assert.Equal(t, 1, cal.created)

	// черновик удалён после фиксации
	_, err = drafts.GetByUserID(ctx, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// событие осталось в хранилище
	stored, err := eventRepo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "g-1", stored.GoogleEventID)
}

func TestStartReplacesExistingDraft(t *testing.T) {
	ctx := context.Background()
	_, drafts, _, draftRepo, _ := newTestServices(t)

	first, err := drafts.Start(ctx, 1, Seed{Period: ptr(models.PeriodOnce)})
	require.NoError(t, err)

	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Date: ptr("01.09.2024")})
	require.NoError(t, err)

	// повторный старт начинает диалог заново
	second, err := drafts.Start(ctx, 1, Seed{Period: ptr(models.PeriodWeekly)})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Nil(t, second.Date)
	assert.Equal(t, models.PeriodWeekly, *second.Period)
	assert.Len(t, draftRepo.drafts, 1)
}

func TestCommitIncompleteDraft(t *testing.T) {
	ctx := context.Background()
	_, drafts, _, _, cal := newTestServices(t)

	_, err := drafts.Start(ctx, 1, Seed{Period: ptr(models.PeriodOnce)})
	require.NoError(t, err)

	_, err = drafts.Commit(ctx, 1, "Алиса", "@alice")
	assert.ErrorIs(t, err, errs.ErrClient)
	assert.Zero(t, cal.created)

	// незавершённый черновик не удаляется
	_, err = drafts.GetByUserID(ctx, 1)
	require.NoError(t, err)
}

func TestCommitWithoutDraft(t *testing.T) {
	ctx := context.Background()
	_, drafts, _, _, _ := newTestServices(t)

	_, err := drafts.Commit(ctx, 1, "Алиса", "@alice")
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestUpdateDraftValidatesHour(t *testing.T) {
	ctx := context.Background()
	_, drafts, _, _, _ := newTestServices(t)

	_, err := drafts.Start(ctx, 1, Seed{Period: ptr(models.PeriodOnce)})
	require.NoError(t, err)

	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(8)})
	assert.ErrorIs(t, err, errs.ErrClient)

	// верхняя граница окна не включается
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(19)})
	assert.ErrorIs(t, err, errs.ErrClient)

	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(9)})
	require.NoError(t, err)
}

func TestCommitSyncFailureKeepsLocalEvent(t *testing.T) {
	ctx := context.Background()
	_, drafts, eventRepo, _, cal := newTestServices(t)
	cal.fail = true

	_, err := drafts.Start(ctx, 1, Seed{Period: ptr(models.PeriodOnce)})
	require.NoError(t, err)
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Date: ptr("01.09.2024")})
	require.NoError(t, err)
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(10)})
	require.NoError(t, err)

	event, err := drafts.Commit(ctx, 1, "Алиса", "@alice")
	require.ErrorIs(t, err, errs.ErrSync)
	require.NotNil(t, event)

	// локальная запись зафиксирована без отката
	stored, err := eventRepo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.GoogleEventID)

	// черновик удалён: запись состоялась, календарь догонит
	_, err = drafts.GetByUserID(ctx, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCommitRejectsTakenSlot(t *testing.T) {
	ctx := context.Background()
	_, drafts, eventRepo, draftRepo, _ := newTestServices(t)

	// два пользователя видели один и тот же свободный час
	for _, userID := range []int64{1, 2} {
		_, err := drafts.Start(ctx, userID, Seed{Period: ptr(models.PeriodOnce)})
		require.NoError(t, err)
		_, err = drafts.Update(ctx, userID, models.DraftUpdate{Date: ptr("01.09.2024")})
		require.NoError(t, err)
		_, err = drafts.Update(ctx, userID, models.DraftUpdate{Hour: ptr(10)})
		require.NoError(t, err)
	}

	_, err := drafts.Commit(ctx, 1, "Алиса", "@alice")
	require.NoError(t, err)

	// второй пришёл позже и слот уже занят
	_, err = drafts.Commit(ctx, 2, "Боб", "@bob")
	assert.ErrorIs(t, err, errs.ErrClient)

	assert.Len(t, eventRepo.events, 1)

	// неуспешная фиксация не трогает черновик
	_, ok := draftRepo.drafts[2]
	assert.True(t, ok)
}

func TestUpdateRejectsTakenSlot(t *testing.T) {
	ctx := context.Background()
	events, _, eventRepo, _, _ := newTestServices(t)
	createWeeklyEvent(t, events)

	id, err := eventRepo.Create(ctx, &models.Event{UserID: 2, Name: "Боб", TG: "@bob"})
	require.NoError(t, err)

	// заполнение события не может занять час чужой серии
	period := models.PeriodOnce
	_, err = events.Update(ctx, id, models.EventUpdate{
		Date: ptr("01.09.2024"), Hour: ptr(10), Period: &period,
	})
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestOnceCommitAllowedInExceptionGap(t *testing.T) {
	ctx := context.Background()
	events, _, _, _, _ := newTestServices(t)
	event := createWeeklyEvent(t, events)

	_, err := events.AddExceptionDate(ctx, event.ID, "01.09.2024")
	require.NoError(t, err)

	// окно отменённого повторения доступно разовой записи
	_, err = events.CreateFilled(ctx, &models.Event{
		UserID: 2, Name: "Боб", TG: "@bob",
		Date: "01.09.2024", Hour: ptr(10), WeekDay: 2, Period: models.PeriodOnce,
	})
	require.NoError(t, err)

	// еженедельной - нет: серия продолжается в остальные недели
	_, err = events.CreateFilled(ctx, &models.Event{
		UserID: 3, Name: "Ева", TG: "@eve",
		Date: "01.16.2024", Hour: ptr(10), WeekDay: 2, Period: models.PeriodWeekly,
	})
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestEditSameSlotAllowed(t *testing.T) {
	ctx := context.Background()
	events, drafts, _, _, _ := newTestServices(t)
	event := createWeeklyEvent(t, events)

	_, err := drafts.Start(ctx, 1, Seed{Period: &event.Period, UpdateEventID: event.ID})
	require.NoError(t, err)
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Date: ptr("01.09.2024")})
	require.NoError(t, err)
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(10)})
	require.NoError(t, err)

	// собственные повторения события конфликтом не считаются
	updated, err := drafts.Commit(ctx, 1, "Алиса", "@alice")
	require.NoError(t, err)
	assert.Equal(t, event.ID, updated.ID)
}

func TestCancelOnceDeletesEvent(t *testing.T) {
	ctx := context.Background()
	events, _, eventRepo, _, cal := newTestServices(t)

	event, err := events.CreateFilled(ctx, &models.Event{
		UserID: 1, Name: "Боб", TG: "@bob",
		Date: "01.09.2024", Hour: ptr(12), WeekDay: 2, Period: models.PeriodOnce,
	})
	require.NoError(t, err)

	// у разового события нет повторений, отмена удаляет его целиком
	_, deleted, err := events.Cancel(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, eventRepo.events)
	assert.Equal(t, 1, cal.deleted)
}

func TestCancelWeeklyAwaitsChoice(t *testing.T) {
	ctx := context.Background()
	events, _, eventRepo, _, _ := newTestServices(t)
	event := createWeeklyEvent(t, events)

	got, deleted, err := events.Cancel(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, event.ID, got.ID)
	assert.Len(t, eventRepo.events, 1)
}

func TestUpdatePeriodToOnceClearsExceptions(t *testing.T) {
	ctx := context.Background()
	events, _, _, _, _ := newTestServices(t)
	event := createWeeklyEvent(t, events)

	_, err := events.AddExceptionDate(ctx, event.ID, "01.09.2024")
	require.NoError(t, err)

	period := models.PeriodOnce
	updated, err := events.Update(ctx, event.ID, models.EventUpdate{Period: &period})
	require.NoError(t, err)
	assert.Empty(t, updated.ExceptionDates)
}

func createWeeklyEvent(t *testing.T, events *Events) *models.Event {
	t.Helper()

	event, err := events.CreateFilled(context.Background(), &models.Event{
		UserID:  1,
		Name:    "Алиса",
		TG:      "@alice",
		Date:    "01.02.2024",
		Hour:    ptr(10),
		WeekDay: 2,
		Period:  models.PeriodWeekly,
	})
	require.NoError(t, err)
	return event
}

func TestAddExceptionDate(t *testing.T) {
	ctx := context.Background()
	events, _, _, _, cal := newTestServices(t)
	event := createWeeklyEvent(t, events)

	updated, err := events.AddExceptionDate(ctx, event.ID, "01.09.2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"01.09.2024"}, updated.ExceptionDates)
	assert.Equal(t, 1, cal.updated)

	// повторное добавление той же даты не меняет множество
	updated, err = events.AddExceptionDate(ctx, event.ID, "01.09.2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"01.09.2024"}, updated.ExceptionDates)
}

func TestAddExceptionDateWrongWeekday(t *testing.T) {
	ctx := context.Background()
	events, _, _, _, _ := newTestServices(t)
	event := createWeeklyEvent(t, events)

	// 10 января 2024 - среда, серия идёт по вторникам
	_, err := events.AddExceptionDate(ctx, event.ID, "01.10.2024")
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestAddExceptionDateOnOnceEvent(t *testing.T) {
	ctx := context.Background()
	events, _, _, _, _ := newTestServices(t)

	event, err := events.CreateFilled(ctx, &models.Event{
		UserID: 1, Name: "Боб", TG: "@bob",
		Date: "01.09.2024", Hour: ptr(12), WeekDay: 2, Period: models.PeriodOnce,
	})
	require.NoError(t, err)

	_, err = events.AddExceptionDate(ctx, event.ID, "01.09.2024")
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestEditCommitUpdatesEvent(t *testing.T) {
	ctx := context.Background()
	events, drafts, eventRepo, _, cal := newTestServices(t)
	event := createWeeklyEvent(t, events)

	_, err := drafts.Start(ctx, 1, Seed{Period: &event.Period, UpdateEventID: event.ID})
	require.NoError(t, err)
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Date: ptr("01.16.2024")})
	require.NoError(t, err)
	_, err = drafts.Update(ctx, 1, models.DraftUpdate{Hour: ptr(11)})
	require.NoError(t, err)

	updated, err := drafts.Commit(ctx, 1, "Алиса", "@alice")
	require.NoError(t, err)

	assert.Equal(t, event.ID, updated.ID)
	assert.Equal(t, "01.16.2024", updated.Date)
	assert.Equal(t, 11, *updated.Hour)
	assert.Equal(t, 2, updated.WeekDay)
	assert.Equal(t, 1, cal.updated)
	assert.Len(t, eventRepo.events, 1)
}

func TestCreateFilledValidatesHour(t *testing.T) {
	ctx := context.Background()
	events, _, _, _, _ := newTestServices(t)

	_, err := events.CreateFilled(ctx, &models.Event{
		UserID: 1, Date: "01.09.2024", Hour: ptr(8), WeekDay: 2, Period: models.PeriodOnce,
	})
	assert.ErrorIs(t, err, errs.ErrClient)
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()
	events, _, eventRepo, _, cal := newTestServices(t)
	event := createWeeklyEvent(t, events)

	require.NoError(t, events.Delete(ctx, event.ID))
	assert.Empty(t, eventRepo.events)
	assert.Equal(t, 1, cal.deleted)
}

func TestDeleteUnsyncedEventSkipsCalendar(t *testing.T) {
	ctx := context.Background()
	events, _, eventRepo, _, cal := newTestServices(t)

	id, err := eventRepo.Create(ctx, &models.Event{
		UserID: 1, Date: "01.09.2024", Hour: ptr(10), WeekDay: 2, Period: models.PeriodOnce,
	})
	require.NoError(t, err)

	require.NoError(t, events.Delete(ctx, id))
	assert.Zero(t, cal.deleted)
}

func TestEditStartDateRollsForward(t *testing.T) {
	events, drafts, _, _, _ := newTestServices(t)
	event := createWeeklyEvent(t, events)

	start, err := drafts.EditStartDate(event)
	require.NoError(t, err)

	// дата не раньше сегодняшней и сохраняет день недели серии
	past, err := dates.IsPast(start, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, past)

	day, err := dates.Weekday(start)
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, day)
}

func mustUTC() *time.Location { return time.UTC }
