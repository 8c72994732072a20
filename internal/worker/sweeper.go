package worker

import (
	"context"
	"log"
	"time"
)

type Sweeper interface {
	SweepAbandoned(ctx context.Context, threshold time.Duration) (int, error)
}

type Republisher interface {
	Republish(ctx context.Context, limit int) (int, error)
}

// Locker runs fn under a cluster-wide lock; ran is false when another worker holds it.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (ran bool, err error)
}

const (
	sweepLockName  = "sweep"
	republishLimit = 500
)

// Maintenance abandons idle sessions and republishes jobs left queued by a broker outage.
type Maintenance struct {
	Sweeper     Sweeper
	Republisher Republisher
	Locker      Locker // nil runs unlocked
	Interval    time.Duration
	Threshold   time.Duration
}

// Run ticks until ctx is done.
func (m *Maintenance) Run(ctx context.Context) {
	t := time.NewTicker(m.Interval)
	defer t.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Tick(ctx)
		}
	}
}

func (m *Maintenance) Tick(ctx context.Context) {
	if m.Locker == nil {
		if err := m.once(ctx); err != nil {
			log.Printf("[Sweep] failed err=%v", err)
		}
		return
	}
	ran, err := m.Locker.WithLock(ctx, sweepLockName, m.Interval, m.once)
	if err != nil {
		log.Printf("[Sweep] failed err=%v", err)
		return
	}
	if !ran {
		log.Printf("[Sweep] skipped, lock held by another worker")
	}
}

func (m *Maintenance) once(ctx context.Context) error {
	n, err := m.Sweeper.SweepAbandoned(ctx, m.Threshold)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[Sweep] abandoned sessions count=%d threshold=%s", n, m.Threshold)
	}

	if m.Republisher == nil {
		return nil
	}
	r, err := m.Republisher.Republish(ctx, republishLimit)
	if err != nil {
		return err
	}
	if r > 0 {
		log.Printf("[Sweep] republished queued jobs count=%d", r)
	}
	return nil
}
