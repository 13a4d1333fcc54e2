package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/api"
	"github.com/yyds352/hospital-appointment/internal/app"
	"github.com/yyds352/hospital-appointment/internal/config"
	"github.com/yyds352/hospital-appointment/internal/logging"
	"github.com/yyds352/hospital-appointment/internal/seed"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("storage", cfg.Storage).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(rootCtx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if cfg.Storage == config.StorageMemory && os.Getenv("SEED_DEMO") != "" {
		sum, err := seed.Load(rootCtx, seed.Generate(seed.Options{}), a.Writer, a.Slots)
		if err != nil {
			log.Fatal().Err(err).Msg("demo seed failed")
		}
		log.Info().Int("doctors", sum.Doctors).Int("patients", sum.Patients).Int("slots", sum.Slots).Msg("demo data loaded")
	}

	srv := newHTTPServer(cfg, a, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("http server error")
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newHTTPServer(cfg config.Config, a *app.App, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: a.Service,
			Checks:  a.Checks,
			Logger:  log,
			Env:     cfg.Env,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
