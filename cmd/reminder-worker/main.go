package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/app"
	"github.com/yyds352/hospital-appointment/internal/config"
	"github.com/yyds352/hospital-appointment/internal/logging"
	"github.com/yyds352/hospital-appointment/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "reminder-worker").Logger()

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("window", cfg.ReminderWindow).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	newRunner(cfg, a, log).Run(rootCtx)
}

func newRunner(cfg config.Config, a *app.App, log zerolog.Logger) *worker.ReminderRunner {
	return worker.NewReminderRunner(a.Service, a.Locker, cfg.WorkerInterval, cfg.ReminderWindow, log)
}
