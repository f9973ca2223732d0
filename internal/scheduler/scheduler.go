// Package scheduler drives engine cycles on a poll interval or cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"autobackup/internal/engine"
	"autobackup/internal/logging"
)

// DefaultInterval is the poll cadence used when none is configured.
const DefaultInterval = 5 * time.Second

// Runner is the engine surface the scheduler needs. Keeping it narrow lets an
// event-driven scheduler replace this one without touching the engine.
type Runner interface {
	RunCycle(ctx context.Context) (engine.CycleResult, error)
}

// Scheduler serializes cycles: one runs to completion before the next starts,
// and triggers arriving mid-cycle coalesce into a single pending cycle.
type Scheduler struct {
	runner  Runner
	log     logging.Logger
	trigger chan struct{}
}

func New(r Runner, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Scheduler{
		runner:  r,
		log:     log,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a cycle outside the regular cadence. It never blocks; a
// request while one is already pending is absorbed.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is canceled. A non-empty cronExpr takes precedence
// over the fixed interval. The first cycle runs immediately in either mode.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, cronExpr string) error {
	var tickC <-chan time.Time

	if cronExpr != "" {
		c := cron.New()
		if _, err := c.AddFunc(cronExpr, s.Trigger); err != nil {
			return fmt.Errorf("parsing cron schedule %q: %w", cronExpr, err)
		}
		c.Start()
		defer c.Stop()
		s.log.Info("scheduling cycles on cron %q", cronExpr)
	} else {
		if interval <= 0 {
			interval = DefaultInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickC = ticker.C
		s.log.Info("polling every %s", interval)
	}

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tickC:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.log.Error("cycle failed: %v", err)
		return
	}
	if res.Discovered > 0 || res.BackedUp > 0 || res.Errors > 0 {
		s.log.Info("cycle: %d discovered, %d backed up, %d error(s)",
			res.Discovered, res.BackedUp, res.Errors)
	} else {
		s.log.Debug("cycle: no changes")
	}
}
