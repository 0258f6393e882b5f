package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job identifies one claimed-to-be-run queue item.
type Job struct {
	DocumentID  int64
	QueueID     int64
	SubmittedAt time.Time
}

// Processor is the work a dispatched job performs. pipeline.Processor is
// the production implementation.
type Processor interface {
	Run(ctx context.Context, documentID, queueID int64)
}

// ProcessorQueue fans jobs out to a fixed pool of pipeline workers.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					q.proc.Run(ctx, job.DocumentID, job.QueueID)
					cancel()

					q.logger.Debug("worker finished job",
						"worker_id", workerID,
						"document_id", job.DocumentID,
						"queue_id", job.QueueID,
						"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
					)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue hands a job to the pool, blocking for backpressure once the
// channel fills. After Shutdown it logs and drops the job.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down",
			"document_id", job.DocumentID, "queue_id", job.QueueID)
		return nil
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing",
			"document_id", job.DocumentID, "queue_id", job.QueueID)
	default:
		q.logger.Warn("queue full, applying backpressure",
			"document_id", job.DocumentID, "queue_id", job.QueueID)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake, drains in-flight jobs, and waits for the workers
// until ctx expires.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
