package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/wind-harvest/internal/forecast"
)

// Harvester runs one harvest cycle anchored at a point in time.
type Harvester interface {
	Harvest(ctx context.Context, at time.Time) (forecast.HarvestReport, error)
}

// Sweeper runs one retention pass.
type Sweeper interface {
	Sweep() (forecast.SweepReport, error)
}

// Scheduler periodically harvests new snapshots and sweeps expired ones.
type Scheduler struct {
	scheduler *gocron.Scheduler
	harvester Harvester
	sweeper   Sweeper
	clock     forecast.Clock
	interval  time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	stopped bool
	running sync.WaitGroup
}

// New creates a new Scheduler.
func New(harvester Harvester, sweeper Sweeper, clock forecast.Clock, interval time.Duration, log *zap.Logger) *Scheduler {
	if clock == nil {
		clock = forecast.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		harvester: harvester,
		sweeper:   sweeper,
		clock:     clock,
		interval:  interval,
		log:       log.Named("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first cycle runs immediately. Cycles never overlap.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started", zap.Duration("interval", interval))
	return nil
}

// RunOnce harvests from the current time and then sweeps. Failures are
// logged; the next trigger tries again.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	s.log.Debug("running harvest job")
	if _, err := s.harvester.Harvest(ctx, s.clock.Now()); err != nil {
		s.log.Warn("harvest cycle failed", zap.Error(err))
	}
	if _, err := s.sweeper.Sweep(); err != nil {
		s.log.Warn("retention sweep failed", zap.Error(err))
	}
	s.log.Debug("completed harvest job")
}

// Stop cancels future jobs and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.running.Wait()
}
