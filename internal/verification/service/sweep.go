package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"unionvote/internal/platform/metrics"
)

// Expirer removes entries that expired at or before now.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type sweepTarget struct {
	name    string
	expirer Expirer
}

// Sweeper periodically garbage-collects expired sessions, throttle counters
// and token revocations. Backends with native expiry report zero.
type Sweeper struct {
	targets []sweepTarget
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	cron    *cron.Cron
}

func NewSweeper(logger *slog.Logger, m *metrics.Metrics) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		logger:  logger,
		metrics: m,
		now:     time.Now,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
}

// Add registers a store to sweep under name.
func (s *Sweeper) Add(name string, e Expirer) *Sweeper {
	if e != nil {
		s.targets = append(s.targets, sweepTarget{name: name, expirer: e})
	}
	return s
}

// RunOnce sweeps every target and returns the removed count per target. A
// failing target is logged and does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) map[string]int {
	now := s.now().UTC()
	removed := make(map[string]int, len(s.targets))
	for _, t := range s.targets {
		n, err := t.expirer.DeleteExpired(ctx, now)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep failed", "target", t.name, "error", err)
			continue
		}
		removed[t.name] = n
		if t.name == "sessions" {
			s.metrics.AddSessionsSwept(n)
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "sweep removed expired entries", "target", t.name, "removed", n)
		}
	}
	return removed
}

// Start schedules RunOnce on a cron spec such as "@every 1m".
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
