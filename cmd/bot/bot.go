package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/allerta-bot/internal/api"
	"github.com/abelzeko/allerta-bot/internal/app"
	"github.com/abelzeko/allerta-bot/internal/config"
	"github.com/abelzeko/allerta-bot/internal/logging"
	"github.com/abelzeko/allerta-bot/internal/monitoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)
	slog.Info("starting allerta bot")

	monitoring.Init(monitoring.Options{DSN: cfg.SentryDSN, Environment: cfg.SentryEnvironment, Release: cfg.SentryRelease})
	defer monitoring.Flush()

	if cfg.TelegramToken == "" {
		slog.Error("TELEGRAM_TOKEN environment variable is not set")
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	bot, err := a.BotAPI()
	if err != nil {
		slog.Error("failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api.NewTelegramBot(bot, a.QueryUseCase()).Start(ctx)
}
