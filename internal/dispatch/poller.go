package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/amara-obi/invoicetrack/internal/repository"
)

// Poller sweeps the queue table for pending items that never reached a
// worker (daemon restart, enqueue after shutdown) and re-dispatches them.
// The rate limiter caps how fast recovered items hit the pool so a large
// backlog cannot starve fresh uploads.
type Poller struct {
	logger    *slog.Logger
	queue     repository.QueueRepository
	sink      *ProcessorQueue
	interval  time.Duration
	batchSize int
	minAge    time.Duration
	limiter   *rate.Limiter
}

type PollerConfig struct {
	Interval     time.Duration // sweep period, default 30s
	BatchSize    int           // max items per sweep, default 50
	MinAge       time.Duration // skip items younger than this, default 1m
	ClaimsPerSec float64       // dispatch rate cap, default 10/s
}

func NewPoller(logger *slog.Logger, queue repository.QueueRepository, sink *ProcessorQueue, cfg PollerConfig) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = time.Minute
	}
	if cfg.ClaimsPerSec <= 0 {
		cfg.ClaimsPerSec = 10
	}
	return &Poller{
		logger:    logger,
		queue:     queue,
		sink:      sink,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		minAge:    cfg.MinAge,
		limiter:   rate.NewLimiter(rate.Limit(cfg.ClaimsPerSec), 1),
	}
}

// Run sweeps until ctx is cancelled. Meant to be launched as a goroutine
// next to the HTTP server.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("queue poller started",
		"interval", p.interval, "batch_size", p.batchSize, "min_age", p.minAge)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("queue poller stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	items, err := p.queue.NextPending(ctx, p.batchSize, p.minAge)
	if err != nil {
		p.logger.Error("poll for pending items failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	p.logger.Info("recovering stranded queue items", "count", len(items))

	for _, item := range items {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		_ = p.sink.Enqueue(ctx, Job{
			DocumentID:  item.DocumentID,
			QueueID:     item.ID,
			SubmittedAt: time.Now(),
		})
	}
}
