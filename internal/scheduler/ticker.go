package scheduler

import (
	"context"
	"sync"
	"time"
)

// Ticker runs a job on a fixed interval until stopped.
type Ticker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Ticker{interval: interval}
}

// Start runs job once immediately and then on every tick. Calling Start on a
// running ticker is a no-op.
func (t *Ticker) Start(ctx context.Context, job func(context.Context, time.Time)) {
	if job == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		job(ctx, time.Now())
		for {
			select {
			case now := <-ticker.C:
				job(ctx, now)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight job to return.
func (t *Ticker) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
