package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc performs one unit of periodic work. The passed time is the tick
// instant; implementations must be idempotent because missed or manual ticks
// may replay the same logical work.
type TickFunc func(ctx context.Context, now time.Time) error

// SchedulerConfig configures interval scheduling behaviour.
type SchedulerConfig struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Scheduler runs a single TickFunc on a fixed interval. There is one logical
// scheduler instance per deployment and ticks never overlap: if a tick is
// still in flight when the next interval fires, that interval is skipped.
type Scheduler struct {
	name     string
	tick     TickFunc
	interval time.Duration
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	running sync.Mutex
}

// NewScheduler builds a scheduler around the provided tick function.
func NewScheduler(name string, tick TickFunc, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Scheduler{
		name:     name,
		tick:     tick,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Start begins periodic execution. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "scheduler", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped", "scheduler", s.name)
}

// RunOnce executes the tick immediately, outside the interval cadence. It
// shares the non-overlap guard with the loop, so a manual trigger during an
// in-flight tick reports skipped=true and does nothing.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (skipped bool, err error) {
	if !s.running.TryLock() {
		return true, nil
	}
	defer s.running.Unlock()
	return false, s.tick(ctx, now)
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			skipped, err := s.RunOnce(s.ctx, now)
			if skipped {
				s.logger.Sugar().Warnw("tick skipped, previous still running", "scheduler", s.name)
				continue
			}
			if err != nil {
				s.logger.Sugar().Errorw("tick failed", "scheduler", s.name, "error", err)
			}
		}
	}
}
