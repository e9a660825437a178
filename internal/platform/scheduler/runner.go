// Package scheduler runs periodic jobs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ErrLocked is returned by RunOnce when another replica holds the job lease.
var ErrLocked = errors.New("job is running elsewhere")

// Runner schedules Jobs with robfig/cron. A run is skipped while the previous
// run of the same job is still in progress, panics are recovered, and each
// run first takes a lease from the Locker.
type Runner struct {
	cron    *cron.Cron
	locker  Locker
	logger  zerolog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a runner. timeout bounds one job run and the lock lease.
func NewRunner(logger zerolog.Logger, locker Locker, timeout time.Duration) *Runner {
	if locker == nil {
		locker = NoopLocker{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job on spec ("@every 10m", "*/5 * * * *").
func (r *Runner) Add(spec string, job Job) error {
	_, err := r.cron.AddFunc(spec, func() {
		if err := r.RunOnce(r.ctx, job); err != nil && !errors.Is(err, ErrLocked) {
			r.logger.Error().Err(err).Str("job", job.Name()).Msg("job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	r.logger.Info().Str("job", job.Name()).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// RunOnce runs job immediately under the lease.
func (r *Runner) RunOnce(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	release, ok, err := r.locker.TryLock(ctx, job.Name(), r.timeout)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Info().Str("job", job.Name()).Msg("job skipped, lease held by another replica")
		return ErrLocked
	}
	defer release()

	start := time.Now()
	err = job.Run(ctx)
	r.logger.Info().
		Str("job", job.Name()).
		Dur("duration", time.Since(start)).
		Bool("ok", err == nil).
		Msg("job finished")
	return err
}

func (r *Runner) Start() {
	r.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx expires, after
// which their context is cancelled.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		r.logger.Warn().Msg("scheduler stop timed out, cancelling running jobs")
	}
	r.cancel()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
