package chat

import (
	"context"
	"time"
)

// Sweeper periodically expires idle sessions. It implements suture.Service.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper runs svc.Sweep every interval.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Serve blocks until ctx is cancelled.
func (w *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.svc.Sweep(w.svc.now())
		}
	}
}

func (w *Sweeper) String() string {
	return "session-sweeper"
}
