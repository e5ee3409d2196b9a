package queue

import (
	"context"
	"fmt"
	"time"

	"controller-eligibility-backend/internal/logger"
)

// HandlerFunc processes a single task. Returned errors are logged, never
// fatal: one failed task must not take down the pool.
type HandlerFunc func(ctx context.Context, t Task) error

// Pool runs a fixed number of workers consuming tasks from a Queue and
// dispatching them by task name.
type Pool struct {
	size     int
	queue    Queue
	handlers map[string]HandlerFunc
	log      *logger.Logger
}

// NewPool creates a worker pool of the given size.
func NewPool(size int, q Queue, log *logger.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:     size,
		queue:    q,
		handlers: make(map[string]HandlerFunc),
		log:      log.With("component", "task-pool"),
	}
}

// Register binds a handler to a task name. Not safe to call after Start.
func (p *Pool) Register(name string, h HandlerFunc) {
	p.handlers[name] = h
}

// Start launches the worker goroutines. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("starting task workers", "size", p.size)
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i+1)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		t, err := p.queue.Dequeue(ctx, time.Second)
		if ctx.Err() != nil {
			p.log.Info("worker shutting down", "worker_id", id)
			return
		}
		if err != nil {
			p.log.Warn("dequeue failed", "worker_id", id, "error", err)
			continue
		}
		if t == nil {
			continue
		}
		p.dispatch(ctx, *t)
	}
}

// Drain processes tasks until the queue stays empty for one poll. Used by
// the one-shot CLI against the in-process queue.
func (p *Pool) Drain(ctx context.Context) error {
	for {
		t, err := p.queue.Dequeue(ctx, 100*time.Millisecond)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		p.dispatch(ctx, *t)
	}
}

func (p *Pool) dispatch(ctx context.Context, t Task) {
	h, ok := p.handlers[t.Name]
	if !ok {
		p.log.Warn("no handler registered for task", "task", t.Name, "task_id", t.ID, "cid", t.CID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task handler panic", "task", t.Name, "task_id", t.ID, "cid", t.CID,
				"panic", fmt.Sprintf("%v", r))
		}
	}()

	if err := h(ctx, t); err != nil {
		p.log.Error("task failed", "task", t.Name, "task_id", t.ID, "cid", t.CID, "error", err)
	}
}
