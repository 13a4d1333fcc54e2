package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/appointment"
	redisclient "github.com/yyds352/hospital-appointment/internal/redis"
)

const reminderLock = "reminder-sweep"

type ReminderSender interface {
	SendDueReminders(ctx context.Context, window time.Duration) (appointment.ReminderRun, error)
}

// ReminderRunner periodically sends reminders for appointments inside the
// look-ahead window. Only one runner across the fleet sweeps at a time.
type ReminderRunner struct {
	svc      ReminderSender
	locker   redisclient.Locker
	interval time.Duration
	window   time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

func NewReminderRunner(svc ReminderSender, locker redisclient.Locker, interval, window time.Duration, log zerolog.Logger) *ReminderRunner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderRunner{
		svc:      svc,
		locker:   locker,
		interval: interval,
		window:   window,
		timeout:  20 * time.Second,
		log:      log,
	}
}

// RunOnce performs one sweep. ran is false when another process holds the lock.
func (r *ReminderRunner) RunOnce(ctx context.Context) (run appointment.ReminderRun, ran bool, err error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err = r.locker.WithLock(runCtx, reminderLock, func(ctx context.Context) error {
		var sweepErr error
		run, sweepErr = r.svc.SendDueReminders(ctx, r.window)
		return sweepErr
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		r.log.Debug().Msg("reminder sweep held elsewhere, skipping")
		return run, false, nil
	}
	if err != nil {
		r.log.Error().Err(err).Msg("reminder sweep failed")
		return run, true, err
	}

	r.log.Info().
		Int("due", run.Due).
		Int("sent", run.Sent).
		Int("failed", run.Failed).
		Dur("took", time.Since(start)).
		Msg("reminder sweep complete")
	return run, true, nil
}

// Run sweeps once at startup and then every interval until ctx is done.
func (r *ReminderRunner) Run(ctx context.Context) {
	_, _, _ = r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("stopping reminder worker")
			return
		case <-ticker.C:
			_, _, _ = r.RunOnce(ctx)
		}
	}
}
