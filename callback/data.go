package callback

// Реестр шаблонов callback-токенов. Шаблоны различаются литеральными
// префиксами, поэтому структурно не пересекаются: одна строка не может
// быть произведена двумя шаблонами. Это инвариант времени проектирования,
// его охраняет тест реестра, а не код обработчиков.
var (
	// Locale: "locale: {locale}" - смена языка интерфейса
	Locale = MustParse("locale: {locale}")

	// EventPeriod: выбор периодичности при создании записи
	EventPeriod = MustParse("eventPeriod: {period}")

	// EventDate: выбор даты записи
	EventDate = MustParse("eventDate: {date}")

	// EventHour: выбор часа записи, завершает черновик
	EventHour = MustParse("eventHour: {hour}")

	// EventID: выбор существующей записи в списке /edit
	EventID = MustParse("eventId: {id}")

	// EventAction: операция над существующей записью
	EventAction = MustParse("eventAction: {action}_{id}")

	// EventActionDate: операция, привязанная к конкретному повторению
	EventActionDate = MustParse("eventActionDate: {action}_{id}_{date}")

	// PrevDates / NextDates: листание клавиатуры дат по неделям
	PrevDates = MustParse("previousDatesFrom: {date}")
	NextDates = MustParse("nextDatesFrom: {date}")
)

// All перечисляет реестр целиком для проверки коллизий
var All = []*Template{
	Locale,
	EventPeriod,
	EventDate,
	EventHour,
	EventID,
	EventAction,
	EventActionDate,
	PrevDates,
	NextDates,
}
