// Package scheduler runs periodic rescans of a network range on cron
// schedules. A rescan is skipped while the session is scanning or paused.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/session"
)

// Starter is the part of the session the scheduler drives.
type Starter interface {
	State() session.State
	RangeKey() string
	Start(ctx context.Context, rangeSpec string) (<-chan session.Event, error)
}

// EventSink consumes the events of a scheduled run. It must drain the channel.
type EventSink func(events <-chan session.Event)

// Drain discards every event.
func Drain(events <-chan session.Event) {
	go func() {
		for range events {
		}
	}()
}

// Job is a registered rescan.
type Job struct {
	ID       uuid.UUID    `json:"id"`
	CronID   cron.EntryID `json:"-"`
	Schedule string       `json:"schedule"`
	// Range to scan. Empty scans the session's last range or the default.
	Range   string    `json:"range,omitempty"`
	LastRun time.Time `json:"last_run,omitzero"`
	NextRun time.Time `json:"next_run,omitzero"`
	Runs    int       `json:"runs"`
	Skipped int       `json:"skipped"`
	LastErr string    `json:"last_error,omitempty"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEventSink sets who receives the events of scheduled runs.
func WithEventSink(sink EventSink) Option {
	return func(s *Scheduler) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithDefaultRange sets the range used when neither the job nor the session
// has one.
func WithDefaultRange(fn func() string) Option {
	return func(s *Scheduler) { s.defaultRange = fn }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler manages cron-driven rescans.
type Scheduler struct {
	cron         *cron.Cron
	starter      Starter
	sink         EventSink
	defaultRange func() string
	logger       *logging.Logger

	jobs    map[uuid.UUID]*Job
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler driving starter.
func New(starter Starter, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		starter: starter,
		sink:    Drain,
		logger:  logging.Default(),
		jobs:    make(map[uuid.UUID]*Job),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	return s
}

// cronLogger routes cron's own logging, including recovered job panics.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

// Start begins firing jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops firing jobs and cancels runs it started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cancel()
	s.running = false
	s.logger.Info("Scheduler stopped")
}

// AddRescan registers a rescan of rangeSpec on a standard five-field cron
// schedule.
func (s *Scheduler) AddRescan(schedule, rangeSpec string) (uuid.UUID, error) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid cron expression: %w", err)
	}

	job := &Job{
		ID:       uuid.New(),
		Schedule: schedule,
		Range:    rangeSpec,
		NextRun:  sched.Next(time.Now()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := job.ID
	job.CronID = s.cron.Schedule(sched, cron.FuncJob(func() { s.Trigger(id) }))
	s.jobs[job.ID] = job
	s.logger.Info("Added rescan job", "job_id", job.ID, "schedule", schedule, "range", rangeSpec)
	return job.ID, nil
}

// RemoveJob unregisters a job.
func (s *Scheduler) RemoveJob(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, id)
	return nil
}

// Jobs returns copies of the registered jobs ordered by next run.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRun.Before(out[j].NextRun) })
	return out
}

// Trigger runs job id now.
func (s *Scheduler) Trigger(id uuid.UUID) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	var rangeSpec string
	if ok {
		rangeSpec = job.Range
	}
	ctx := s.ctx
	s.mu.RUnlock()
	if !ok {
		return
	}

	err := s.execute(ctx, rangeSpec)

	s.mu.Lock()
	defer s.mu.Unlock()
	job.LastRun = time.Now()
	if entry := s.cron.Entry(job.CronID); entry.Valid() && !entry.Next.IsZero() {
		job.NextRun = entry.Next
	}
	switch {
	case errors.Is(err, errBusy):
		job.Skipped++
	case err != nil:
		job.LastErr = err.Error()
	default:
		job.Runs++
		job.LastErr = ""
	}
}

var errBusy = errors.New("a scan is already active")

func (s *Scheduler) execute(ctx context.Context, rangeSpec string) error {
	if st := s.starter.State(); st == session.StateScanning || st == session.StatePaused {
		s.logger.Debug("Skipping rescan, session busy", "state", st.String())
		return errBusy
	}

	if rangeSpec == "" {
		rangeSpec = s.starter.RangeKey()
	}
	if rangeSpec == "" && s.defaultRange != nil {
		rangeSpec = s.defaultRange()
	}
	if rangeSpec == "" {
		err := errors.New("no range to rescan")
		s.logger.Warn("Skipping rescan", "error", err)
		return err
	}

	events, err := s.starter.Start(ctx, rangeSpec)
	if err != nil {
		s.logger.ErrorScan("Scheduled rescan failed to start", rangeSpec, err)
		return err
	}
	s.logger.InfoScan("Scheduled rescan started", rangeSpec)
	s.sink(events)
	return nil
}
