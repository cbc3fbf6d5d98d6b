// Package workqueue runs background tasks on a fixed pool of workers fed by
// three named queues. Failed tasks are retried with exponential backoff
// unless the error is marked Permanent.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"demo-ingest/internal/metrics"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull    = errors.New("queue full")
	ErrUnknownQueue = errors.New("unknown queue")
	ErrStopped      = errors.New("queue stopped")
)

// RetryConfig configures retry behavior for failed tasks.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

// DefaultRetryConfig backs off 2s, 4s, 8s, 16s and then 30s for the remaining attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     8,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.1,
	}
}

type item struct {
	task    Task
	queue   string
	attempt int
}

type Queue struct {
	queues  map[string]chan *item
	workers int
	retry   RetryConfig

	mu      sync.Mutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

type Option func(*Queue)

func WithRetryConfig(cfg RetryConfig) Option {
	return func(q *Queue) {
		q.retry = cfg
	}
}

// WithCapacity sets how many tasks each named queue buffers before Submit fails.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		for _, name := range Queues {
			q.queues[name] = make(chan *item, n)
		}
	}
}

func New(logger zerolog.Logger, workers int, opts ...Option) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		queues:  make(map[string]chan *item, len(Queues)),
		workers: workers,
		retry:   DefaultRetryConfig(),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With().Str("component", "workqueue").Logger(),
	}
	for _, name := range Queues {
		q.queues[name] = make(chan *item, 1024)
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. Tasks submitted before Start wait in their queue.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info().Int("workers", q.workers).Msg("workqueue started")
}

// Stop cancels running tasks and pending retries, then waits for workers to
// exit or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info().Msg("workqueue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workqueue did not stop in time: %w", ctx.Err())
	}
}

// Submit places task on the named queue without blocking.
func (q *Queue) Submit(task Task, queueName string) error {
	ch, ok := q.queues[queueName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}

	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	select {
	case ch <- &item{task: task, queue: queueName}:
		metrics.QueueDepth.WithLabelValues(queueName).Set(float64(len(ch)))
		q.logger.Debug().
			Str("task_id", task.ID()).
			Str("task_name", task.Name()).
			Str("queue", queueName).
			Msg("task submitted")
		return nil
	default:
		q.logger.Warn().
			Str("task_id", task.ID()).
			Str("task_name", task.Name()).
			Str("queue", queueName).
			Msg("queue full, rejecting task")
		return fmt.Errorf("%w: %s", ErrQueueFull, queueName)
	}
}

func (q *Queue) worker(n int) {
	defer q.wg.Done()

	high := q.queues[QueueHigh]
	def := q.queues[QueueDefault]
	scheduled := q.queues[QueueScheduled]

	for {
		// high priority first, without blocking
		select {
		case it := <-high:
			q.run(it)
			continue
		default:
		}

		select {
		case <-q.ctx.Done():
			q.logger.Debug().Int("worker", n).Msg("worker exiting")
			return
		case it := <-high:
			q.run(it)
		case it := <-def:
			q.run(it)
		case it := <-scheduled:
			q.run(it)
		}
	}
}

func (q *Queue) run(it *item) {
	metrics.QueueDepth.WithLabelValues(it.queue).Set(float64(len(q.queues[it.queue])))

	logger := q.logger.With().
		Str("task_id", it.task.ID()).
		Str("task_name", it.task.Name()).
		Str("queue", it.queue).
		Int("attempt", it.attempt+1).
		Logger()

	start := time.Now()
	err := q.execute(it.task)
	metrics.TaskDuration.WithLabelValues(it.queue, it.task.Name()).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.TasksProcessed.WithLabelValues(it.queue, it.task.Name(), "success").Inc()
		logger.Info().Dur("duration", time.Since(start)).Msg("task completed")
		return
	}

	if q.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logger.Info().Msg("task cancelled by shutdown")
		return
	}

	if IsPermanent(err) || it.attempt >= q.retry.MaxRetries {
		metrics.TasksProcessed.WithLabelValues(it.queue, it.task.Name(), "failed").Inc()
		logger.Error().Err(err).Bool("permanent", IsPermanent(err)).Msg("task failed")
		if h, ok := it.task.(FailureHandler); ok {
			h.OnFailure(q.ctx, err)
		}
		return
	}

	backoff := q.backoff(it.attempt + 1)
	metrics.TasksProcessed.WithLabelValues(it.queue, it.task.Name(), "retry").Inc()
	logger.Warn().Err(err).Dur("backoff", backoff).Int("max_retries", q.retry.MaxRetries).Msg("task failed, retrying")

	next := &item{task: it.task, queue: it.queue, attempt: it.attempt + 1}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(backoff):
		}
		select {
		case q.queues[next.queue] <- next:
		case <-q.ctx.Done():
		}
	}()
}

// execute runs the task, converting a panic into an error.
func (q *Queue) execute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(q.ctx)
}

// backoff computes initial * factor^(attempt-1), capped and jittered.
func (q *Queue) backoff(attempt int) time.Duration {
	d := float64(q.retry.InitialBackoff) * math.Pow(q.retry.BackoffFactor, float64(attempt-1))
	if d > float64(q.retry.MaxBackoff) {
		d = float64(q.retry.MaxBackoff)
	}
	if q.retry.JitterFactor > 0 {
		d += d * q.retry.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
