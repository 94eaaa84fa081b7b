// Package jobs runs the periodic in-process sweeps on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Proton-105/phonelookup/pkg/metrics"
)

const DefaultJobTimeout = time.Minute

// ErrUnknownJob is returned by RunNow for names that were never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is one periodic task. Run receives the scheduler clock reading for the tick.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context, now time.Time) error
}

// Scheduler wraps a cron runner. Overlapping ticks of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu   sync.RWMutex
	jobs map[string]Job
}

type SchedulerOption func(*Scheduler)

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithJobTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func NewScheduler(log *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		timeout: DefaultJobTimeout,
		now:     time.Now,
		log:     log,
		jobs:    make(map[string]Job),
	}
	for _, opt := range opts {
		opt(s)
	}

	adapter := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	return s
}

// Register schedules job. Names must be unique.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.execute(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule %q with spec %q: %w", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = job

	s.log.Info("scheduler: registered job", slog.String("job", job.Name), slog.String("spec", job.Spec))
	return nil
}

// RunNow executes a registered job synchronously outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler: starting", slog.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop prevents new ticks and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.log.Info("scheduler: shutting down")

	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := job.Run(ctx, s.now())
	metrics.RecordJob(job.Name, err)

	if err != nil {
		s.log.ErrorContext(ctx, "job failed",
			slog.String("job", job.Name),
			slog.Duration("took", time.Since(started)),
			slog.Any("error", err),
		)
		return err
	}

	s.log.DebugContext(ctx, "job finished", slog.String("job", job.Name), slog.Duration("took", time.Since(started)))
	return nil
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
