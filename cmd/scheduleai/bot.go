package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scheduleai/internal/bot"
	"scheduleai/internal/config"
	"scheduleai/internal/service"
)

// botCmd runs the Telegram bot until interrupted
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Run the Telegram bot with long polling.

Examples:
  # Run with environment configuration only
  TELEGRAM_TOKEN=... scheduleai bot

  # Run with a config file
  scheduleai bot --config scheduleai.yaml`,
	RunE: runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	if cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
		Accounts:    a.accounts,
		Activities:  a.activities,
		Routines:    a.routines,
		Preferences: a.preferences,
		Reminders:   a.reminders,
	}, &cfg, a.metrics, log.Named("bot"))
	if err != nil {
		return err
	}

	sendReminders := func(job string) func() {
		return func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := telegramBot.SendReminders(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("reminders failed", zap.String("job", job), zap.Error(err))
			}
		}
	}

	loc, _ := cfg.Location()
	scheduler := service.NewSchedulerService(loc, log)
	jobs := 0
	if cfg.ReminderInterval > 0 {
		if _, err := scheduler.ScheduleInterval("reminders", cfg.ReminderInterval, sendReminders("reminders")); err != nil {
			return err
		}
		jobs++
	}
	if cfg.DigestTime != "" {
		if _, err := scheduler.ScheduleDaily("digest", cfg.DigestTime, sendReminders("digest")); err != nil {
			return err
		}
		jobs++
	}
	if jobs > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Info("scheduleai bot started",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("reminder_interval", cfg.ReminderInterval),
		zap.String("digest_time", cfg.DigestTime))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
