package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/api"
	"github.com/yyds352/hospital-appointment/internal/appointment"
	"github.com/yyds352/hospital-appointment/internal/config"
	"github.com/yyds352/hospital-appointment/internal/db"
	"github.com/yyds352/hospital-appointment/internal/directory"
	"github.com/yyds352/hospital-appointment/internal/notify"
	redisclient "github.com/yyds352/hospital-appointment/internal/redis"
	"github.com/yyds352/hospital-appointment/internal/seed"
)

// App holds the wired service and the infrastructure behind it.
type App struct {
	Service *appointment.Service
	Slots   appointment.SlotRegistry
	Writer  seed.Writer
	Locker  redisclient.Locker
	Checks  []api.Check

	pool  *pgxpool.Pool
	redis *redis.Client
	log   zerolog.Logger
}

// Build connects the configured storage. Postgres storage also requires
// Redis for notifications and the reminder lock; memory storage runs alone.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{log: log}
	logSink := notify.NewLogSink(log.With().Str("component", "notify").Logger())

	var deps appointment.Dependencies
	switch cfg.Storage {
	case config.StorageMemory:
		dir := directory.NewMemory()
		deps = appointment.Dependencies{
			Repo:        appointment.NewMemoryRepository(),
			Slots:       appointment.NewMemoryRegistry(),
			Departments: dir,
			Doctors:     dir,
			Patients:    dir,
			Notifier:    logSink,
		}
		a.Writer = seed.MemoryWriter(dir)
		a.Locker = redisclient.NoopLocker{}
		log.Warn().Msg("using in-memory storage, data is lost on exit")

	default:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PoolOptions())
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.pool = pool
		log.Info().Msg("connected to Postgres")

		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		a.redis = rdb
		log.Info().Msg("connected to Redis")

		dir := directory.NewPostgres(pool)
		doctors := directory.NewCachedDoctors(dir, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL)
		deps = appointment.Dependencies{
			Repo:        appointment.NewPgRepository(pool),
			Slots:       appointment.NewPgRegistry(pool),
			Departments: dir,
			Doctors:     doctors,
			Patients:    dir,
			Notifier:    notify.Multi{notify.NewRedisPublisher(rdb, cfg.NotifyChannel), logSink},
		}
		a.Writer = pgWriter{Postgres: dir, doctors: doctors}
		a.Locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		a.Checks = []api.Check{
			{Name: "postgres", Critical: true, Ping: pool.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		}
	}

	a.Slots = deps.Slots
	a.Service = appointment.NewService(deps, cfg.Rules(), log)
	return a, nil
}

// pgWriter sends doctor upserts through the doctor cache.
type pgWriter struct {
	*directory.Postgres
	doctors *directory.CachedDoctors
}

func (w pgWriter) AddDoctor(ctx context.Context, d appointment.Doctor) error {
	return w.doctors.AddDoctor(ctx, d)
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("error closing redis")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
