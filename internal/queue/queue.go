package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task names understood by the worker pool.
const TaskVerifyHours = "hours.verify"

// Task is a unit of asynchronous work for a single controller.
type Task struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CID        int64     `json:"cid"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask builds a task with a fresh ID.
func NewTask(name string, cid int64) Task {
	return Task{
		ID:         uuid.NewString(),
		Name:       name,
		CID:        cid,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue decouples task producers from the worker pool. Delivery is
// at-least-once; handlers must tolerate duplicate tasks for the same CID.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
	// Dequeue blocks for up to wait and returns (nil, nil) when no task
	// arrived in time.
	Dequeue(ctx context.Context, wait time.Duration) (*Task, error)
	Close() error
}

// MemoryQueue is an in-process Queue backed by a buffered channel. Used when
// no redis backend is configured and by the one-shot CLI.
type MemoryQueue struct {
	tasks chan Task
}

// NewMemoryQueue creates a MemoryQueue holding up to size pending tasks.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{tasks: make(chan Task, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, t Task) error {
	select {
	case q.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case t := <-q.tasks:
		return &t, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Close() error {
	return nil
}

// Len returns the number of pending tasks.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}
