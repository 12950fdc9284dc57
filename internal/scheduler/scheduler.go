package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"cardvault/internal/cache"
)

const (
	sweepLockPrefix = "lock:card-expiry-sweep:"
	sweepLockTTL    = 10 * time.Minute
)

// Sweeper expires due cards for a given day.
type Sweeper interface {
	Run(ctx context.Context, today time.Time) (int, error)
}

// Locker grants a named lock to one holder at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, bool, error)
}

// ExpiryJob runs the expiry sweep once per tick across all instances.
type ExpiryJob struct {
	sweeper Sweeper
	locker  Locker
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewExpiryJob creates a job. locker may be nil for a single instance.
func NewExpiryJob(sweeper Sweeper, locker Locker, log logrus.FieldLogger) *ExpiryJob {
	return &ExpiryJob{
		sweeper: sweeper,
		locker:  locker,
		log:     log,
		now:     time.Now,
	}
}

// RunOnce sweeps for the current day. It skips the run when another instance
// already holds today's lock. If the lock store is unreachable the sweep runs
// anyway, since a repeated sweep changes nothing.
func (j *ExpiryJob) RunOnce(ctx context.Context) (int, error) {
	today := j.now().UTC()
	key := sweepLockPrefix + today.Format(time.DateOnly)

	if j.locker != nil {
		lock, acquired, err := j.locker.TryLock(ctx, key, sweepLockTTL)
		switch {
		case err != nil:
			j.log.WithError(err).Warn("sweep lock unavailable, sweeping without it")
		case !acquired:
			j.log.WithField("lock", key).Info("expiry sweep already running elsewhere")
			return 0, nil
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					j.log.WithError(err).Warn("failed to release sweep lock")
				}
			}()
		}
	}

	return j.sweeper.Run(ctx, today)
}

// Scheduler triggers the expiry job on a cron schedule with a seconds field.
type Scheduler struct {
	cron *cron.Cron
	job  *ExpiryJob
	log  logrus.FieldLogger
}

// New registers job under schedule, e.g. "0 0 0 * * *" for daily at midnight UTC.
func New(schedule string, job *ExpiryJob, log logrus.FieldLogger) (*Scheduler, error) {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	s := &Scheduler{cron: c, job: job, log: log}

	if _, err := c.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("schedule expiry sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	n, err := s.job.RunOnce(context.Background())
	if err != nil {
		s.log.WithError(err).Error("expiry sweep failed")
		return
	}
	s.log.WithField("expired", n).Debug("expiry sweep tick")
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("expiry sweep still running at shutdown")
	}
}
