// Package inmemory provides a channel-backed task queue for single-instance
// deployments and tests. Multi-instance deployments should swap in Cloud
// Tasks or Pub/Sub behind the same interfaces.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitako/incomeproof/internal/jobs"
	"github.com/kitako/incomeproof/internal/logger"
)

const defaultWorkers = 5

// Queue is an in-memory Publisher and Consumer. Safe for concurrent use.
type Queue struct {
	taskChan  chan *jobs.Task
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	closed    bool
}

// NewQueue creates a queue. bufferSize bounds how many tasks can sit
// unclaimed before Publish blocks.
func NewQueue(bufferSize int) *Queue {
	return &Queue{
		taskChan:  make(chan *jobs.Task, bufferSize),
		closeChan: make(chan struct{}),
		workers:   defaultWorkers,
	}
}

// Publish enqueues a task, filling in defaults for id, status, creation
// time and retry budget.
func (q *Queue) Publish(ctx context.Context, task *jobs.Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = jobs.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = 3
	}

	select {
	case q.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the worker pool. Each worker pulls tasks until the context
// is cancelled or the queue stops.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case task := <-q.taskChan:
			if task == nil {
				return
			}
			q.processTask(ctx, task, handler)
		}
	}
}

// processTask runs the handler once and schedules a retry with linear
// backoff while the retry budget lasts.
func (q *Queue) processTask(ctx context.Context, task *jobs.Task, handler jobs.Handler) {
	task.Status = jobs.TaskStatusRunning
	now := time.Now()
	task.StartedAt = &now

	err := handler(ctx, task)

	completedAt := time.Now()
	task.CompletedAt = &completedAt

	if err == nil {
		task.Status = jobs.TaskStatusCompleted
		task.Error = ""
		return
	}

	task.Error = err.Error()
	log := logger.FromContext(ctx)
	if task.RetryCount >= task.MaxRetries {
		task.Status = jobs.TaskStatusFailed
		log.Error().
			Err(err).
			Str("task_id", task.ID).
			Str("kind", string(task.Kind)).
			Int("retries", task.RetryCount).
			Msg("task failed permanently")
		return
	}

	task.RetryCount++
	task.Status = jobs.TaskStatusRetrying
	log.Warn().
		Err(err).
		Str("task_id", task.ID).
		Str("kind", string(task.Kind)).
		Int("attempt", task.RetryCount).
		Msg("task failed, scheduling retry")

	backoff := time.Duration(task.RetryCount) * time.Second
	time.AfterFunc(backoff, func() {
		task.Status = jobs.TaskStatusPending
		task.StartedAt = nil
		task.CompletedAt = nil
		_ = q.Publish(ctx, task)
	})
}

// Stop shuts the queue and waits for in-flight tasks, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
