// Package scheduler runs a job on a cron schedule.
// It exists so the retention cleanup fires once a day at a fixed local
// time rather than on an interval ticker that drifts across restarts.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Clock abstracts time for the scheduler loop so tests can drive it.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After waits for the duration to elapse.
	After(d time.Duration) <-chan time.Time
}

// realClock delegates to the time package.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Job is the work the scheduler triggers. The context is cancelled when
// the scheduler stops.
type Job func(ctx context.Context)

// Scheduler fires a job at the times described by a cron expression.
// Each firing computes the next one, so a long-running job cannot queue
// up overlapping runs: the next fire time is always in the future.
type Scheduler struct {
	schedule cron.Schedule
	job      Job
	clock    Clock
	logger   zerolog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a scheduler for a standard 5-field cron expression.
func New(spec string, job Job, logger zerolog.Logger) (*Scheduler, error) {
	return NewWithClock(spec, job, realClock{}, logger)
}

// NewWithClock creates a scheduler with an explicit clock. Used in tests.
func NewWithClock(spec string, job Job, clock Clock, logger zerolog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		schedule: schedule,
		job:      job,
		clock:    clock,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Time("next_run", s.schedule.Next(s.clock.Now())).
		Msg("scheduler started")

	go s.runLoop()
}

// Stop stops the scheduler and waits for the loop to exit. A job in
// flight has its context cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	<-s.doneChan

	s.logger.Info().Msg("scheduler stopped")
}

// NextRun returns the next scheduled fire time.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(s.clock.Now())
}

// runLoop waits until each scheduled time and fires the job. The loop
// always re-arms, whether the job succeeded, panicked, or was skipped.
func (s *Scheduler) runLoop() {
	defer close(s.doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now)

		select {
		case <-s.clock.After(next.Sub(now)):
			s.fire(ctx)
		case <-s.stopChan:
			cancel()
			return
		}
	}
}

// fire runs the job, containing any panic so the loop survives.
func (s *Scheduler) fire(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().
				Interface("panic", p).
				Msg("scheduled job panicked")
		}
	}()

	s.logger.Debug().Msg("firing scheduled job")
	s.job(ctx)
}
