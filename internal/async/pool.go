package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Task is one unit of pipeline work, typically a single document parse.
type Task func(ctx context.Context)

var ErrShuttingDown = errors.New("pool is shutting down")

// Pool runs tasks on a fixed set of workers with a bounded backlog, so a
// bulk drop into the inbox cannot spawn an OCR request per file at once.
type Pool struct {
	tasks  chan Task
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(workers, backlog int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 2
	}
	if backlog <= 0 {
		backlog = 64
	}
	p := &Pool{
		tasks:  make(chan Task, backlog),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Info("pool.started", "workers", workers, "backlog", backlog)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("pool.task_panic", "worker", id, "panic", r)
				}
			}()
			task(context.Background())
		}()
	}
}

// Enqueue hands a task to the pool, blocking while the backlog is full.
// The read lock is held across the send so Shutdown cannot close the channel
// under an in-flight Enqueue.
func (p *Pool) Enqueue(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrShuttingDown
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for in-flight tasks, up to ctx's deadline.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("pool.drained")
	case <-ctx.Done():
		p.logger.Warn("pool.shutdown_timeout")
	}
}
