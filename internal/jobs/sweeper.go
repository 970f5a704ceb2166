// Package jobs runs the background maintenance jobs of the service.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// SessionSource lists live sessions older than a given age.
type SessionSource interface {
	Expired(maxAge time.Duration) []string
}

// Terminator ends a call and dispatches its summary.
type Terminator interface {
	Terminate(ctx context.Context, callID, reason string) bool
}

const sweepReason = "sweeper"

// Sweeper terminates sessions whose terminal webhooks never arrived, so
// they are still summarized and do not leak.
type Sweeper struct {
	scheduler  gocron.Scheduler
	sessions   SessionSource
	terminator Terminator
	interval   time.Duration
	maxAge     time.Duration
	log        logrus.FieldLogger
}

func NewSweeper(sessions SessionSource, terminator Terminator, interval, maxAge time.Duration, log logrus.FieldLogger) (*Sweeper, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Sweeper{
		scheduler:  scheduler,
		sessions:   sessions,
		terminator: terminator,
		interval:   interval,
		maxAge:     maxAge,
		log:        log.WithField("component", "sweeper"),
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithName("stale-session-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweeper: %w", err)
	}
	s.scheduler.Start()
	s.log.WithFields(logrus.Fields{"interval": s.interval, "max_age": s.maxAge}).Info("sweeper started")
	return nil
}

// Sweep terminates every session older than the max age and returns how
// many it ended.
func (s *Sweeper) Sweep(ctx context.Context) int {
	ended := 0
	for _, id := range s.sessions.Expired(s.maxAge) {
		if s.terminator.Terminate(ctx, id, sweepReason) {
			ended++
		}
	}
	if ended > 0 {
		s.log.WithField("count", ended).Warn("terminated stale sessions")
	}
	return ended
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
