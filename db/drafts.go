package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/models"
)

// DraftStore управляет коллекцией черновиков
type DraftStore struct {
	db *DB
}

// NewDraftStore создает хранилище черновиков
func NewDraftStore(db *DB) *DraftStore {
	return &DraftStore{db: db}
}

const draftColumns = "id, user_id, date, hour, week_day, period, update_event_id, prompt_message_id, created_at, updated_at"

// Create создает черновик и возвращает его идентификатор
func (s *DraftStore) Create(ctx context.Context, d *models.EventDraft) (string, error) {
	id := uuid.NewString()

	var (
		date, period  any
		hour, weekDay any
	)
	if d.Date != nil {
		date = *d.Date
	}
	if d.Hour != nil {
		hour = *d.Hour
	}
	if d.WeekDay != nil {
		weekDay = *d.WeekDay
	}
	if d.Period != nil {
		period = string(*d.Period)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO event_drafts (id, user_id, date, hour, week_day, period, update_event_id, prompt_message_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id, d.UserID, date, hour, weekDay, period, d.UpdateEventID, d.PromptMessageID,
	)
	if err != nil {
		return "", errs.Store("ошибка при создании черновика: %v", err)
	}

	return id, nil
}

// GetByID получает черновик по идентификатору
func (s *DraftStore) GetByID(ctx context.Context, id string) (*models.EventDraft, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+draftColumns+" FROM event_drafts WHERE id = ?", id)

	draft, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("черновик %s не найден", id)
		}
		return nil, errs.Store("ошибка при получении черновика: %v", err)
	}

	return draft, nil
}

// GetByUserID получает черновик пользователя
func (s *DraftStore) GetByUserID(ctx context.Context, userID int64) (*models.EventDraft, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+draftColumns+" FROM event_drafts WHERE user_id = ?", userID)

	draft, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NotFound("у пользователя %d нет черновика", userID)
		}
		return nil, errs.Store("ошибка при получении черновика: %v", err)
	}

	return draft, nil
}

// Update применяет частичное обновление черновика пользователя.
// nil-поля не трогаются, поэтому нулевой час записывается корректно.
func (s *DraftStore) Update(ctx context.Context, userID int64, upd models.DraftUpdate) (*models.EventDraft, error) {
	set := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []any{}

	appendSet := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
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
	if upd.PromptMessageID != nil {
		appendSet("prompt_message_id", *upd.PromptMessageID)
	}

	args = append(args, userID)

	result, err := s.db.ExecContext(ctx,
		"UPDATE event_drafts SET "+strings.Join(set, ", ")+" WHERE user_id = ?", args...)
	if err != nil {
		return nil, errs.Store("ошибка при обновлении черновика: %v", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return nil, errs.NotFound("у пользователя %d нет черновика", userID)
	}

	return s.GetByUserID(ctx, userID)
}

// Delete удаляет черновик по идентификатору
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM event_drafts WHERE id = ?", id)
	if err != nil {
		return errs.Store("ошибка при удалении черновика: %v", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return errs.NotFound("черновик %s не найден", id)
	}

	return nil
}

// DeleteByUserID удаляет черновик пользователя, если он есть
func (s *DraftStore) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM event_drafts WHERE user_id = ?", userID)
	if err != nil {
		return errs.Store("ошибка при удалении черновика пользователя: %v", err)
	}
	return nil
}

func scanDraft(row scanner) (*models.EventDraft, error) {
	var (
		draft   models.EventDraft
		date    sql.NullString
		hour    sql.NullInt64
		weekDay sql.NullInt64
		period  sql.NullString
	)

	err := row.Scan(
		&draft.ID, &draft.UserID, &date, &hour, &weekDay, &period,
		&draft.UpdateEventID, &draft.PromptMessageID, &draft.CreatedAt, &draft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if date.Valid {
		draft.Date = &date.String
	}
	if hour.Valid {
		h := int(hour.Int64)
		draft.Hour = &h
	}
	if weekDay.Valid {
		wd := int(weekDay.Int64)
		draft.WeekDay = &wd
	}
	if period.Valid {
		p := models.Period(period.String)
		draft.Period = &p
	}

	return &draft, nil
}
