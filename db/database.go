// Package db реализует хранилища событий и черновиков поверх sqlite.
// Хранилище трактуется как документное: find, create, update, delete;
// вся доменная логика живёт уровнем выше.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB представляет соединение с базой данных
type DB struct {
	*sql.DB
}

// New открывает соединение с базой данных
func New(dbPath string) (*DB, error) {
	// Создаем директорию для БД, если она не существует
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть базу данных: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("не удалось включить внешние ключи: %w", err)
	}

	return &DB{db}, nil
}

// InitSchema инициализирует схему базы данных
func (db *DB) InitSchema() error {
	// События. Заполненность события - производное свойство, она
	// вычисляется по полям, а не хранится отдельной колонкой.
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		tg TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL DEFAULT '',
		hour INTEGER,
		week_day INTEGER NOT NULL DEFAULT 0,
		period TEXT NOT NULL DEFAULT '',
		google_event_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("не удалось создать таблицу events: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id)`)
	if err != nil {
		return fmt.Errorf("не удалось создать индекс по user_id: %w", err)
	}

	// Составной индекс под запросы занятых часов
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_date_period ON events(date, period)`)
	if err != nil {
		return fmt.Errorf("не удалось создать индекс по (date, period): %w", err)
	}

	// Даты-исключения еженедельных событий. UNIQUE даёт семантику
	// множества: повторное добавление той же даты не создаёт дубликата.
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS event_exceptions (
		event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		UNIQUE (event_id, date)
	)`)
	if err != nil {
		return fmt.Errorf("не удалось создать таблицу event_exceptions: %w", err)
	}

	// Черновики. UNIQUE(user_id) закрепляет инвариант "не больше одного
	// черновика на пользователя" на уровне хранилища.
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS event_drafts (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL UNIQUE,
		date TEXT,
		hour INTEGER,
		week_day INTEGER,
		period TEXT,
		update_event_id INTEGER NOT NULL DEFAULT 0,
		prompt_message_id INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("не удалось создать таблицу event_drafts: %w", err)
	}

	return nil
}
