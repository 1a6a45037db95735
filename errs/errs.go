// Package errs содержит классы ошибок сервиса бронирования.
//
// На границе сервисов ошибка всегда принадлежит одному из классов ниже,
// проверка выполняется через errors.Is. Подробности причин добавляются
// обёрткой через %w, чтобы не терять класс.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrClient - вызывающая сторона нарушила контракт: нет активного
	// черновика, некорректная дата и т.п.
	ErrClient = errors.New("client error")

	// ErrStore - операция с хранилищем завершилась неудачей.
	ErrStore = errors.New("store error")

	// ErrNotFound - документ не найден в хранилище.
	ErrNotFound = errors.New("not found")

	// ErrSync - вызов внешнего календаря завершился неудачей. Локальная
	// запись при этом остаётся источником истины и не откатывается.
	ErrSync = errors.New("sync error")

	// ErrEncoding - не удалось собрать callback-токен из шаблона.
	ErrEncoding = errors.New("encoding error")

	// ErrDecoding - строка не соответствует шаблону callback-токена.
	ErrDecoding = errors.New("decoding error")
)

// Client оборачивает сообщение в класс ErrClient.
func Client(format string, args ...any) error {
	return wrap(ErrClient, format, args...)
}

// Store оборачивает сообщение в класс ErrStore.
func Store(format string, args ...any) error {
	return wrap(ErrStore, format, args...)
}

// NotFound оборачивает сообщение в класс ErrNotFound.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Sync оборачивает сообщение в класс ErrSync.
func Sync(format string, args ...any) error {
	return wrap(ErrSync, format, args...)
}

// Encoding оборачивает сообщение в класс ErrEncoding.
func Encoding(format string, args ...any) error {
	return wrap(ErrEncoding, format, args...)
}

// Decoding оборачивает сообщение в класс ErrDecoding.
func Decoding(format string, args ...any) error {
	return wrap(ErrDecoding, format, args...)
}

func wrap(class error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", class, fmt.Sprintf(format, args...))
}
