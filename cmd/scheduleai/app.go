package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"scheduleai/internal/api"
	"scheduleai/internal/config"
	"scheduleai/internal/logging"
	"scheduleai/internal/metrics"
	"scheduleai/internal/repository"
	"scheduleai/internal/service"
)

// app holds everything both subcommands need.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	db       *gorm.DB
	sessions *repository.SessionRepository

	accounts    *service.AccountService
	activities  *service.ActivityService
	preferences *service.PreferencesService
	routines    *service.RoutineService
	reminders   *service.ReminderService
}

func newApp(cfg config.Config) (*app, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	m := metrics.New()
	client, err := api.New(cfg.APIBaseURL, api.Options{
		Timeout:  cfg.HTTPTimeout,
		Location: loc,
		Logger:   log.Named("api"),
		Recorder: m,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	sessions := repository.NewSessionRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)
	cache := repository.NewRoutineCacheRepository(db)

	accounts := service.NewAccountService(client, sessions, cache, log)
	preferences := service.NewPreferencesService(prefsRepo)
	routines := service.NewRoutineService(accounts, preferences, cache, log)

	return &app{
		cfg:         cfg,
		log:         log,
		metrics:     m,
		db:          db,
		sessions:    sessions,
		accounts:    accounts,
		activities:  service.NewActivityService(accounts),
		preferences: preferences,
		routines:    routines,
		reminders:   service.NewReminderService(routines, sessions, cfg.ReminderRate, cfg.UpcomingLimit, log),
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
