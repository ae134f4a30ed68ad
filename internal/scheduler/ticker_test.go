package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerRunsImmediatelyAndStops(t *testing.T) {
	var runs atomic.Int32
	tk := NewTicker(10 * time.Millisecond)
	tk.Start(context.Background(), func(ctx context.Context, _ time.Time) { runs.Add(1) })
	tk.Start(context.Background(), func(ctx context.Context, _ time.Time) { t.Error("second start must not run") })

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	tk.Stop()
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("job ran after Stop")
	}
	tk.Stop()
}

func TestTickerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	tk := NewTicker(time.Hour)
	tk.Start(ctx, func(ctx context.Context, _ time.Time) {
		select {
		case started <- struct{}{}:
		default:
		}
	})
	<-started
	cancel()
	tk.Stop()
}
