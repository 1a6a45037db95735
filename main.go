package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/api"
	"github.com/aybykovskii/schedule-bot/bot"
	"github.com/aybykovskii/schedule-bot/config"
	"github.com/aybykovskii/schedule-bot/db"
	"github.com/aybykovskii/schedule-bot/export"
	"github.com/aybykovskii/schedule-bot/gcal"
	"github.com/aybykovskii/schedule-bot/logger"
	"github.com/aybykovskii/schedule-bot/service"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка настройки логирования: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("запуск schedule-bot")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Инициализируем базу данных
	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal("ошибка при инициализации базы данных", zap.Error(err))
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		log.Fatal("ошибка при создании схемы базы данных", zap.Error(err))
	}

	// Клиент внешнего календаря. Без учётных данных приложение работает,
	// но каждая фиксация сопровождается предупреждением о синхронизации.
	var calendar service.Calendar = gcal.Disabled{}
	if cfg.GoogleCredentialsJSON != "" {
		calendar, err = gcal.New(ctx, cfg.GoogleCredentialsJSON, cfg.GoogleCalendarID, cfg.Location)
		if err != nil {
			log.Fatal("ошибка при создании клиента календаря", zap.Error(err))
		}
	} else {
		log.Warn("GOOGLE_CREDENTIALS_JSON не задан, синхронизация с календарём отключена")
	}

	// Собираем сервисы
	settings := service.Settings{
		StartHour:          cfg.StartHour,
		EndHour:            cfg.EndHour,
		Location:           cfg.Location,
		StoreDeletedEvents: cfg.StoreDeletedEvents,
	}

	events := service.NewEvents(db.NewEventStore(database), calendar, settings, log)
	drafts := service.NewDrafts(db.NewDraftStore(database), events, log)

	// Telegram-бот
	telegramBot, err := bot.New(cfg.BotToken, events, drafts, bot.Settings{
		DayOff:   cfg.DayOff,
		Location: cfg.Location,
	}, log)
	if err != nil {
		log.Fatal("ошибка при создании бота", zap.Error(err))
	}

	// HTTP-сервер
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           api.New(events, drafts, export.New(cfg.Location), log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP-сервер запущен", zap.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP-сервер остановился с ошибкой", zap.Error(err))
			cancel()
		}
	}()

	// Ночная уборка устаревших разовых событий
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		events.DeleteOutdated(context.Background())
	}); err != nil {
		log.Warn("ошибка при настройке планировщика", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Запускаем бота, он блокируется до отмены контекста
	log.Info("бот успешно запущен")
	telegramBot.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("ошибка при остановке HTTP-сервера", zap.Error(err))
	}

	log.Info("schedule-bot остановлен")
}
