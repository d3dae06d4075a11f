package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type idleSweeper interface {
	SweepIdle(ctx context.Context) (int, error)
}

// Sweeper runs the idle eviction on a fixed interval until its context ends.
type Sweeper struct {
	svc      idleSweeper
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(svc *ChatService, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, log: log}
}

func (w *Sweeper) Run(ctx context.Context) error {
	w.log.Info("starting idle sweeper", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("idle sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.svc.SweepIdle(ctx)
			if err != nil {
				w.log.Error("idle sweep failed", zap.Int("evicted", n), zap.Error(err))
				continue
			}
			if n > 0 {
				w.log.Debug("idle sweep done", zap.Int("evicted", n))
			}
		}
	}
}
