package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue when the queue is not running.
var ErrQueueClosed = errors.New("queue not running")

// Job is a unit of background work carrying a typed payload.
type Job[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A returned error schedules a retry.
type Handler[T any] func(context.Context, Job[T]) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnDrop is called when a job exhausts its retries or cannot be requeued.
	OnDrop func(jobID string, err error)
}

// Queue is an in-memory job dispatcher backed by goroutines. Retries back off
// linearly by RetryDelay times the attempt number.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     QueueConfig
	logger  *zap.Logger

	jobs    chan Job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job[T], cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call more than once.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels workers and waits for them to exit. Jobs still buffered are
// reported through OnDrop.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	for {
		select {
		case job := <-q.jobs:
			q.drop(job, ErrQueueClosed)
		default:
			q.logger.Info("queue stopped")
			return
		}
	}
}

// Enqueue schedules payload without blocking. It fails when the queue is
// stopped or its buffer is full.
func (q *Queue[T]) Enqueue(payload T) (string, error) {
	job := Job[T]{ID: uuid.NewString(), Payload: payload, Enqueued: time.Now().UTC()}
	if err := q.push(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *Queue[T]) push(job Job[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueClosed)
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s full", q.name)
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue[T]) handleFailure(job Job[T], err error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.logger.Error("job exceeded retries", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		q.drop(job, err)
		return
	}
	q.logger.Warn("job failed, retrying", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))

	delay := q.cfg.RetryDelay * time.Duration(job.Attempt)
	q.wg.Add(1)
	go func(j Job[T]) {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.drop(j, ErrQueueClosed)
		case <-timer.C:
			if err := q.push(j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
				q.drop(j, err)
			}
		}
	}(job)
}

func (q *Queue[T]) drop(job Job[T], err error) {
	if q.cfg.OnDrop != nil {
		q.cfg.OnDrop(job.ID, err)
	}
}
