package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/aybykovskii/schedule-bot/dates"
	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// EventStore управляет коллекцией событий
type EventStore struct {
	db *DB
}

// NewEventStore создает хранилище событий
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = "id, user_id, name, tg, date, hour, week_day, period, google_event_id, created_at, updated_at"

// Create создает событие и возвращает его идентификатор
func (s *EventStore) Create(ctx context.Context, e *models.Event) (int64, error) {
	var hour any
	if e.Hour != nil {
		hour = *e.Hour
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO events (user_id, name, tg, date, hour, week_day, period, google_event_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.UserID, e.Name, e.TG, e.Date, hour, e.WeekDay, string(e.Period), e.GoogleEventID,
	)
	if err != nil {
		return 0, errs.Store("ошибка при создании события: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errs.Store("ошибка при получении ID нового события: %v", err)
	}

	return id, nil
}

// GetByID получает событие по его идентификатору
func (s *EventStore) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM events WHERE id = ?", id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("событие %d не найдено", id)
		}
		return nil, errs.Store("ошибка при получении события: %v", err)
	}

	if err := s.loadExceptions(ctx, event); err != nil {
		return nil, err
	}

	return event, nil
}

// GetByUserID получает все события пользователя
func (s *EventStore) GetByUserID(ctx context.Context, userID int64) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE user_id = ? ORDER BY date, hour", userID)
	if err != nil {
		return nil, errs.Store("ошибка при получении событий пользователя: %v", err)
	}

	return s.collect(ctx, rows)
}

// GetAll получает все события. Используется при сборке общей ленты
// расписания.
func (s *EventStore) GetAll(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY date, hour")
	if err != nil {
		return nil, errs.Store("ошибка при получении всех событий: %v", err)
	}

	return s.collect(ctx, rows)
}

// FindUnfilled находит незаполненное событие пользователя
func (s *EventStore) FindUnfilled(ctx context.Context, userID int64) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE user_id = ? AND (date = '' OR hour IS NULL OR period = '') LIMIT 1",
		userID)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("незаполненное событие пользователя %d не найдено", userID)
		}
		return nil, errs.Store("ошибка при поиске незаполненного события: %v", err)
	}

	return event, nil
}

// FindCandidates получает события, способные занять часы даты:
// разовые с точным совпадением даты и еженедельные по её дню недели.
// Фильтрацию исключений и заполненности выполняет движок доступности.
func (s *EventStore) FindCandidates(ctx context.Context, date string, weekDay int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE (period = ? AND date = ?) OR (period = ? AND week_day = ?)",
		string(models.PeriodOnce), date, string(models.PeriodWeekly), weekDay)
	if err != nil {
		return nil, errs.Store("ошибка при выборке событий по дате: %v", err)
	}

	return s.collect(ctx, rows)
}

// Update применяет частичное обновление и возвращает событие целиком.
// SET собирается только из ненулевых указателей, поэтому явный нулевой
// час не теряется.
func (s *EventStore) Update(ctx context.Context, id int64, upd models.EventUpdate) (*models.Event, error) {
	set := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}

	appendSet := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}

	if upd.Name != nil {
		appendSet("name", *upd.Name)
	}
	if upd.TG != nil {
		appendSet("tg", *upd.TG)
	}
	if upd.Date != nil {
		appendSet("date", *upd.Date)
	}
	if upd.Hour != nil {
		appendSet("hour", *upd.Hour)
	}
	if upd.WeekDay != nil {
		appendSet("week_day", *upd.WeekDay)
	}
	if upd.Period != nil {
		appendSet("period", string(*upd.Period))
	}
	if upd.GoogleEventID != nil {
		appendSet("google_event_id", *upd.GoogleEventID)
	}

	args = append(args, id)

	result, err := s.db.ExecContext(ctx, "UPDATE events SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, errs.Store("ошибка при обновлении события: %v", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return nil, errs.NotFound("событие %d не найдено", id)
	}

	// разовое событие исключений не имеет: при смене периодичности
	// накопленные даты-исключения теряют смысл и удаляются
	if upd.Period != nil && *upd.Period == models.PeriodOnce {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM event_exceptions WHERE event_id = ?", id); err != nil {
			return nil, errs.Store("ошибка при очистке дат-исключений: %v", err)
		}
	}

	return s.GetByID(ctx, id)
}

// AddExceptionDate добавляет дату-исключение. Повторное добавление той же
// даты не меняет множество - INSERT OR IGNORE опирается на UNIQUE-индекс.
func (s *EventStore) AddExceptionDate(ctx context.Context, id int64, date string) (*models.Event, error) {
	// Проверяем существование события до вставки
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO event_exceptions (event_id, date) VALUES (?, ?)", id, date)
	if err != nil {
		return nil, errs.Store("ошибка при добавлении даты-исключения: %v", err)
	}

	return s.GetByID(ctx, id)
}

// Delete удаляет событие вместе с исключениями
func (s *EventStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return errs.Store("ошибка при удалении события: %v", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errs.NotFound("событие %d не найдено", id)
	}

	return nil
}

// DeleteOutdated удаляет разовые события со строго прошедшей датой и
// возвращает их число. Сравнение дат выполняется по разобранному
// значению: канонический формат MM.DD.YYYY лексикографически не
// упорядочен между годами.
func (s *EventStore) DeleteOutdated(ctx context.Context, today string) (int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date FROM events WHERE period = ? AND date != ''", string(models.PeriodOnce))
	if err != nil {
		return 0, errs.Store("ошибка при выборке устаревших событий: %v", err)
	}
	defer rows.Close()

	now, err := dates.Parse(today)
	if err != nil {
		return 0, err
	}

	var outdated []int64
	for rows.Next() {
		var (
			id   int64
			date string
		)
		if err := rows.Scan(&id, &date); err != nil {
			return 0, errs.Store("ошибка при сканировании устаревшего события: %v", err)
		}

		past, err := dates.IsPast(date, now)
		if err != nil {
			// Некорректная дата в хранилище не должна останавливать уборку
			continue
		}
		if past {
			outdated = append(outdated, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, errs.Store("ошибка при итерации по устаревшим событиям: %v", err)
	}

	for _, id := range outdated {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id); err != nil {
			return 0, errs.Store("ошибка при удалении устаревшего события %d: %v", id, err)
		}
	}

	return int64(len(outdated)), nil
}

func (s *EventStore) collect(ctx context.Context, rows *sql.Rows) ([]models.Event, error) {
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, errs.Store("ошибка при сканировании события: %v", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Store("ошибка при итерации по событиям: %v", err)
	}

	for i := range events {
		if err := s.loadExceptions(ctx, &events[i]); err != nil {
			return nil, err
		}
	}

	return events, nil
}

func (s *EventStore) loadExceptions(ctx context.Context, e *models.Event) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date FROM event_exceptions WHERE event_id = ? ORDER BY rowid", e.ID)
	if err != nil {
		return errs.Store("ошибка при получении дат-исключений: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return errs.Store("ошибка при сканировании даты-исключения: %v", err)
		}
		e.ExceptionDates = append(e.ExceptionDates, date)
	}

	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var (
		event  models.Event
		hour   sql.NullInt64
		period string
	)

	err := row.Scan(
		&event.ID, &event.UserID, &event.Name, &event.TG,
		&event.Date, &hour, &event.WeekDay, &period,
		&event.GoogleEventID, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hour.Valid {
		h := int(hour.Int64)
		event.Hour = &h
	}
	event.Period = models.Period(period)

	return &event, nil
}
