package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/app"
	"github.com/vladislavdragonenkov/comanda/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if v := os.Getenv("COMANDA_LOG_LEVEL"); v != "" {
		if level, err := log.ParseLevel(v); err == nil {
			log.SetLevel(level)
		}
	}
}

func main() {
	// .env удобен в разработке; в бою переменные приходят из окружения.
	_ = godotenv.Load()
	setupLogger()
	cfg := app.ConfigFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr": cfg.HTTPAddr,
		"ops_addr":  cfg.OpsAddr,
		"backend":   backendName(cfg),
		"version":   version.String(),
	}).Info("запускаем comanda")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("comanda остановлена")
}

func backendName(cfg app.Config) string {
	if cfg.PostgresDSN != "" {
		return "postgres"
	}
	if cfg.SnapshotPath != "" {
		return "memory+snapshot"
	}
	return "memory"
}
