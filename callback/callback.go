// Package callback кодирует состояние диалога в короткие строки
// callback-данных Telegram. Канал без состояния и ограничен 64 байтами,
// поэтому каждый шаг диалога несёт свой токен целиком.
//
// Шаблон - литеральный префикс с плейсхолдерами вида {name}:
//
//	eventActionDate: {action}_{id}_{date}
//
// Шаблон разбирается один раз на сегменты, дальше Fill/Match/Decode
// работают без регулярных выражений. Значения на проводе обёрнуты в
// фигурные скобки, как и плейсхолдеры в шаблоне:
//
//	eventActionDate: {cancel}_{42}_{01.09.2024}
package callback

import (
	"fmt"
	"strings"

	"github.com/aybykovskii/schedule-bot/errs"
)

// segment - литерал или плейсхолдер шаблона. Заполнено ровно одно поле.
type segment struct {
	literal string
	field   string
}

// Template - скомпилированный шаблон callback-токена
type Template struct {
	raw      string
	segments []segment
	fields   []string
}

// Parse компилирует шаблон: строка разбивается на литеральные сегменты и
// упорядоченный список плейсхолдеров
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	rest := raw

	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			t.segments = append(t.segments, segment{literal: rest})
			break
		}

		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}

		closing := strings.IndexByte(rest[open:], '}')
		if closing == -1 {
			return nil, errs.Encoding("шаблон %q: незакрытый плейсхолдер", raw)
		}

		field := rest[open+1 : open+closing]
		if field == "" {
			return nil, errs.Encoding("шаблон %q: пустое имя плейсхолдера", raw)
		}

		t.segments = append(t.segments, segment{field: field})
		t.fields = append(t.fields, field)
		rest = rest[open+closing+1:]
	}

	if len(t.fields) == 0 {
		return nil, errs.Encoding("шаблон %q не содержит плейсхолдеров", raw)
	}

	return t, nil
}

// MustParse компилирует шаблон и падает при ошибке. Шаблоны объявляются
// на этапе инициализации, некорректный шаблон - дефект, а не ситуация
// времени выполнения.
func MustParse(raw string) *Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String возвращает исходный текст шаблона
func (t *Template) String() string {
	return t.raw
}

// Fields возвращает имена плейсхолдеров в порядке появления
func (t *Template) Fields() []string {
	out := make([]string, len(t.fields))
	copy(out, t.fields)
	return out
}

// Fill подставляет значения в плейсхолдеры. Каждый плейсхолдер обязан
// получить значение - пропуск поля нарушает контракт кодирования.
func (t *Template) Fill(values map[string]string) (string, error) {
	var b strings.Builder

	for _, seg := range t.segments {
		if seg.field == "" {
			b.WriteString(seg.literal)
			continue
		}

		value, ok := values[seg.field]
		if !ok {
			return "", errs.Encoding("шаблон %q: нет значения для поля %q", t.raw, seg.field)
		}
		if value == "" || strings.ContainsAny(value, "{}") {
			return "", errs.Encoding("шаблон %q: недопустимое значение %q поля %q", t.raw, value, seg.field)
		}

		b.WriteByte('{')
		b.WriteString(value)
		b.WriteByte('}')
	}

	return b.String(), nil
}

// Match сообщает, произведена ли строка этим шаблоном. Плейсхолдеры
// сопоставляются как {непустое значение без скобок}.
//
// Строка, случайно совпавшая с формой шаблона, тоже проходит проверку:
// различать такие строки обязан реестр шаблонов, который не допускает
// структурных пересечений (см. тест на коллизии).
func (t *Template) Match(s string) bool {
	_, ok := t.scan(s)
	return ok
}

// Decode возвращает значения плейсхолдеров по именам. Строка обязана
// проходить Match, иначе возвращается ошибка класса ErrDecoding.
func (t *Template) Decode(s string) (map[string]string, error) {
	values, ok := t.scan(s)
	if !ok {
		return nil, errs.Decoding("строка %q не соответствует шаблону %q", s, t.raw)
	}

	out := make(map[string]string, len(t.fields))
	for i, field := range t.fields {
		out[field] = values[i]
	}

	return out, nil
}

// scan сопоставляет строку с сегментами и собирает значения плейсхолдеров
// в позиционном порядке
func (t *Template) scan(s string) ([]string, bool) {
	values := make([]string, 0, len(t.fields))
	rest := s

	for _, seg := range t.segments {
		if seg.field == "" {
			if !strings.HasPrefix(rest, seg.literal) {
				return nil, false
			}
			rest = rest[len(seg.literal):]
			continue
		}

		if len(rest) == 0 || rest[0] != '{' {
			return nil, false
		}

		closing := strings.IndexByte(rest, '}')
		if closing <= 1 {
			// либо нет закрывающей скобки, либо значение пустое
			return nil, false
		}

		value := rest[1:closing]
		if strings.ContainsRune(value, '{') {
			return nil, false
		}

		values = append(values, value)
		rest = rest[closing+1:]
	}

	if rest != "" {
		return nil, false
	}

	return values, true
}

// Values - сокращение для карт значений при заполнении шаблонов
type Values = map[string]string

// Itoa форматирует числовое значение для подстановки в шаблон
func Itoa(v int64) string {
	return fmt.Sprintf("%d", v)
}
