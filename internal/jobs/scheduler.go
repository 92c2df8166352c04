// Package jobs runs the periodic maintenance work of the edge service on a
// cron schedule.
package jobs

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/locks"
)

// Job is one unit of scheduled work.
type Job struct {
	Name     string
	Schedule string // standard cron expression or descriptor such as "@daily"
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs with robfig/cron. Each run holds a named lock so that
// only one instance of a deployment executes a given job at a time.
type Scheduler struct {
	cron   *cron.Cron
	locks  locks.Manager
	logger logging.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func NewScheduler(lockManager locks.Manager, logger logging.Logger) *Scheduler {
	if lockManager == nil {
		lockManager = locks.NewLocalManager()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		locks:   lockManager,
		logger:  logger.WithFields(logging.String("component", "jobs")),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ValidateSchedule reports whether expr parses as a schedule.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return errors.ValidationError("invalid schedule " + expr).WithCause(err)
	}
	return nil
}

// Add registers job. An empty schedule disables the job.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.ValidationError("job needs a name and a run function")
	}
	if job.Schedule == "" {
		s.logger.Info("Job disabled", logging.String("job", job.Name))
		return nil
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name]; exists {
		return errors.ConflictError("job " + job.Name + " already registered")
	}
	id, err := s.cron.AddFunc(job.Schedule, func() { s.RunNow(s.ctx, job) })
	if err != nil {
		return errors.ValidationError("invalid schedule " + job.Schedule).WithCause(err)
	}
	s.entries[job.Name] = id
	s.logger.Info("Job scheduled",
		logging.String("job", job.Name),
		logging.String("schedule", job.Schedule),
	)
	return nil
}

// RunNow executes job once under its lock. It returns true when the job
// ran, false when another instance held the lock.
func (s *Scheduler) RunNow(ctx context.Context, job Job) bool {
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}
	logger := s.logger.WithFields(logging.String("job", job.Name))

	lock, err := s.locks.TryAcquire(ctx, "job:"+job.Name, job.Timeout)
	if err != nil {
		if stderrors.Is(err, locks.ErrLockHeld) {
			logger.Debug("Job skipped, lock held elsewhere", logging.Err(err))
		} else {
			logger.Warn("Job skipped", logging.Err(err))
		}
		return false
	}
	defer lock.Release(context.Background())

	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", nil, logging.Any("panic", r))
		}
	}()
	if err := job.Run(runCtx); err != nil {
		logger.Error("Job failed", err, logging.Duration("duration", time.Since(start)))
		return true
	}
	logger.Info("Job finished", logging.Duration("duration", time.Since(start)))
	return true
}

// Next returns the next run time of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them until ctx
// is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
