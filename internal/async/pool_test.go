package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4, 16, discardLogger())

	var done atomic.Int64
	for i := 0; i < 50; i++ {
		err := p.Enqueue(context.Background(), func(context.Context) {
			done.Add(1)
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)

	if got := done.Load(); got != 50 {
		t.Errorf("ran %d tasks, want 50", got)
	}
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	p := NewPool(1, 1, discardLogger())
	p.Shutdown(context.Background())

	err := p.Enqueue(context.Background(), func(context.Context) {})
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Enqueue after Shutdown = %v, want ErrShuttingDown", err)
	}

	// second Shutdown is a no-op
	p.Shutdown(context.Background())
}

func TestPoolEnqueueHonorsContext(t *testing.T) {
	p := NewPool(1, 1, discardLogger())
	defer p.Shutdown(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})
	// occupy the single worker, then fill the backlog
	_ = p.Enqueue(context.Background(), func(context.Context) {
		close(started)
		<-block
	})
	<-started
	_ = p.Enqueue(context.Background(), func(context.Context) {})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Enqueue(ctx, func(context.Context) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue on full backlog = %v, want DeadlineExceeded", err)
	}
	close(block)
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := NewPool(1, 4, discardLogger())

	_ = p.Enqueue(context.Background(), func(context.Context) { panic("boom") })

	var ran atomic.Bool
	_ = p.Enqueue(context.Background(), func(context.Context) { ran.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)

	if !ran.Load() {
		t.Error("task after panic did not run")
	}
}
