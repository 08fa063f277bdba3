// Package main Tucan core
//
// @title           Tucan API
// @version         1.0
// @description     Локальный мост клиентского ядра: сессия, профиль, карты, язык и оплата проезда.

// @host      127.0.0.1:8787
// @BasePath  /api/v1
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/camballey/tucan/internal/app/tucan"
	"github.com/camballey/tucan/internal/config"
)

func main() {
	// .env необязателен, переменные могут прийти из окружения
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting tucan", slog.String("env", cfg.Env), slog.String("gateway", cfg.Mode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := tucan.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", slog.Any("err", err))
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", slog.Any("err", err))
		app.Close()
		os.Exit(1)
	}

	logger.Info("tucan stopped gracefully")
}
