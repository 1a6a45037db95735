// Package locale - поиск строк интерфейса по ключу и языку. Слой
// намеренно минимальный: перевод - внешняя забота, ядру расписания нужен
// только интерфейс lookup.
package locale

import (
	"fmt"
	"sync"
	"time"
)

// Lang - язык интерфейса
type Lang string

const (
	RU Lang = "ru"
	EN Lang = "en"
)

// Langs перечисляет поддерживаемые языки в порядке показа
var Langs = []Lang{RU, EN}

// IsLang сообщает, поддерживается ли язык
func IsLang(s string) bool {
	return Lang(s) == RU || Lang(s) == EN
}

// T возвращает фразу по ключу. Для неизвестного ключа возвращается сам
// ключ - потерянная фраза видна сразу, но ничего не падает.
func T(lang Lang, key string) string {
	if p, ok := phrases[lang][key]; ok {
		return p
	}
	if p, ok := phrases[RU][key]; ok {
		return p
	}
	return key
}

// Tf возвращает фразу с подстановкой аргументов
func Tf(lang Lang, key string, args ...any) string {
	return fmt.Sprintf(T(lang, key), args...)
}

// WeekdayName возвращает название дня недели
func WeekdayName(lang Lang, day time.Weekday) string {
	return T(lang, fmt.Sprintf("weekday.%d", int(day)))
}

// Store хранит выбранный язык по пользователям. Это интерфейсная
// настройка, а не состояние бронирования, поэтому живёт в памяти.
type Store struct {
	mu    sync.RWMutex
	langs map[int64]Lang
}

// NewStore создает хранилище языков
func NewStore() *Store {
	return &Store{langs: make(map[int64]Lang)}
}

// Get возвращает язык пользователя, по умолчанию русский
func (s *Store) Get(userID int64) Lang {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lang, ok := s.langs[userID]; ok {
		return lang
	}
	return RU
}

// Set запоминает язык пользователя
func (s *Store) Set(userID int64, lang Lang) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.langs[userID] = lang
}

var phrases = map[Lang]map[string]string{
	RU: {
		"locale.name": "Русский",
		"locale.set":  "✅ Язык интерфейса изменён",

		"commands.start":         "👋 Привет! Я бот для записи на занятия. Используйте /create, чтобы выбрать время, и /edit, чтобы изменить существующую запись.",
		"commands.info":          "ℹ️ /create - новая запись\n/edit - изменить или отменить запись\n/change_locale - сменить язык",
		"commands.change_locale": "Выберите язык:",

		"message.period":         "Как часто повторять занятие?",
		"message.date":           "Выберите дату:",
		"message.hour":           "Выберите время:",
		"message.events":         "Ваши записи:",
		"message.no_events":      "У вас пока нет записей",
		"message.actions":        "Что сделать с записью?",
		"message.cancel_date":    "Какое занятие отменить?",
		"message.no_hours":       "На эту дату свободных часов нет, выберите другую",
		"message.no_occurrences": "Будущих занятий для отмены не осталось",
		"message.result":         "✅ Запись оформлена: %s в %d:00, %s",
		"message.updated":        "✅ Запись перенесена на %s, %d:00",
		"message.deleted":        "✅ Запись удалена",
		"message.cancelled":      "✅ Занятие %s отменено, серия продолжается",

		"event.short.once":   "%s в %d:00 (%s)",
		"event.short.weekly": "%s по %s в %d:00",

		"periods.once":   "Разовое",
		"periods.weekly": "Еженедельное",

		"actions.edit":   "✏️ Перенести",
		"actions.cancel": "🚫 Отменить одно занятие",
		"actions.delete": "❌ Удалить",

		"weekday.0": "воскресеньям",
		"weekday.1": "понедельникам",
		"weekday.2": "вторникам",
		"weekday.3": "средам",
		"weekday.4": "четвергам",
		"weekday.5": "пятницам",
		"weekday.6": "субботам",

		"unknown_command": "Неизвестная команда. Используйте /info для списка команд.",
		"error":           "❌ Что-то пошло не так. Попробуйте ещё раз.",
		"sync_warning":    "⚠️ Запись сохранена, но календарь обновится позже",
	},
	EN: {
		"locale.name": "English",
		"locale.set":  "✅ Language changed",

		"commands.start":         "👋 Hi! I book lesson slots. Use /create to pick a time and /edit to change an existing booking.",
		"commands.info":          "ℹ️ /create - new booking\n/edit - change or cancel a booking\n/change_locale - switch language",
		"commands.change_locale": "Choose a language:",

		"message.period":         "How often should the lesson repeat?",
		"message.date":           "Pick a date:",
		"message.hour":           "Pick a time:",
		"message.events":         "Your bookings:",
		"message.no_events":      "You have no bookings yet",
		"message.actions":        "What should we do with the booking?",
		"message.cancel_date":    "Which occurrence should be cancelled?",
		"message.no_hours":       "No free hours on that date, please pick another",
		"message.no_occurrences": "No upcoming occurrences left to cancel",
		"message.result":         "✅ Booked: %s at %d:00, %s",
		"message.updated":        "✅ Booking moved to %s, %d:00",
		"message.deleted":        "✅ Booking deleted",
		"message.cancelled":      "✅ Occurrence on %s cancelled, the series continues",

		"event.short.once":   "%s at %d:00 (%s)",
		"event.short.weekly": "%s, every %s at %d:00",

		"periods.once":   "One-off",
		"periods.weekly": "Weekly",

		"actions.edit":   "✏️ Reschedule",
		"actions.cancel": "🚫 Cancel one occurrence",
		"actions.delete": "❌ Delete",

		"weekday.0": "Sunday",
		"weekday.1": "Monday",
		"weekday.2": "Tuesday",
		"weekday.3": "Wednesday",
		"weekday.4": "Thursday",
		"weekday.5": "Friday",
		"weekday.6": "Saturday",

		"unknown_command": "Unknown command. Use /info for the command list.",
		"error":           "❌ Something went wrong. Please try again.",
		"sync_warning":    "⚠️ Saved, but the calendar will catch up later",
	},
}
