package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит настройки приложения
type Config struct {
	BotToken     string
	DatabasePath string
	ServerPort   int
	LogLevel     string

	// Рабочее окно преподавателя: часы предлагаются в [StartHour, EndHour)
	StartHour int
	EndHour   int
	// DayOff - выходной день недели (0 - воскресенье), -1 если его нет
	DayOff int

	// Timezone - единственная зона расписания, согласование зон не
	// поддерживается
	Timezone string
	Location *time.Location

	GoogleCredentialsJSON string
	GoogleCalendarID      string
	// StoreDeletedEvents - создавать ли в календаре отменённые события
	// при удалении записи, чтобы сохранять историю
	StoreDeletedEvents bool
}

// Load загружает конфигурацию из переменных окружения. Файл .env,
// если он есть, подхватывается до чтения переменных.
func Load() (*Config, error) {
	// .env необязателен, в бою переменные приходят из окружения
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:              getEnv("TG_BOT_TOKEN", ""),
		DatabasePath:          getEnv("DATABASE_PATH", "./data/schedule.db"),
		ServerPort:            getEnvInt("SERVER_PORT", 8080),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		StartHour:             getEnvInt("START_HOUR", 9),
		EndHour:               getEnvInt("END_HOUR", 19),
		DayOff:                getEnvInt("DAY_OFF", -1),
		Timezone:              getEnv("TIMEZONE", "UTC"),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", ""),
		StoreDeletedEvents:    getEnvBool("STORE_DELETED_EVENTS", false),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("переменная TG_BOT_TOKEN не задана")
	}

	if cfg.StartHour < 0 || cfg.EndHour > 24 || cfg.StartHour >= cfg.EndHour {
		return nil, fmt.Errorf("некорректное рабочее окно: [%d, %d)", cfg.StartHour, cfg.EndHour)
	}

	if cfg.DayOff < -1 || cfg.DayOff > 6 {
		return nil, fmt.Errorf("некорректный выходной день: %d", cfg.DayOff)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить часовой пояс %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// Получение переменной окружения с возможностью установки значения по умолчанию
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
