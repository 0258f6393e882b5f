package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/entity"
	"github.com/amara-obi/invoicetrack/internal/extract"
	"github.com/amara-obi/invoicetrack/internal/recognition"
	"github.com/amara-obi/invoicetrack/internal/repository"
	"github.com/amara-obi/invoicetrack/internal/storage"
)

// Processor runs one document through recognition, extraction, and
// persistence, driving the document and queue-item state machines.
type Processor struct {
	logger     *slog.Logger
	docs       repository.DocumentRepository
	queue      repository.QueueRepository
	results    repository.ResultRepository
	store      storage.Storage
	recognizer recognition.Recognizer
	timeout    time.Duration
}

func NewProcessor(
	logger *slog.Logger,
	docs repository.DocumentRepository,
	queue repository.QueueRepository,
	results repository.ResultRepository,
	store storage.Storage,
	recognizer recognition.Recognizer,
	timeout time.Duration,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		docs:       docs,
		queue:      queue,
		results:    results,
		store:      store,
		recognizer: recognizer,
		timeout:    timeout,
	}
}

// Run executes the pipeline for one claimed queue item. It returns nothing:
// every outcome is observable only through Document, QueueItem and
// ProcessingResult state. A queue item someone else already claimed is a
// no-op.
func (p *Processor) Run(ctx context.Context, documentID, queueID int64) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	claimed, err := p.queue.Claim(ctx, queueID)
	if err != nil {
		p.logger.Error("claim failed", "queue_id", queueID, "error", err)
		return
	}
	if !claimed {
		p.logger.Info("queue item already claimed, skipping",
			"queue_id", queueID, "document_id", documentID)
		return
	}

	if err := p.docs.UpdateStatus(ctx, documentID, constants.DocumentProcessing); err != nil {
		p.logger.Error("document transition to processing failed",
			"document_id", documentID, "error", err)
		p.fail(ctx, documentID, queueID, err)
		return
	}

	if err := p.run(ctx, documentID); err != nil {
		p.logger.Error("processing failed",
			"document_id", documentID, "queue_id", queueID, "error", err)
		p.fail(ctx, documentID, queueID, err)
		return
	}

	if err := p.queue.UpdateStatus(ctx, queueID, constants.QueueCompleted, nil); err != nil {
		p.logger.Error("queue transition to completed failed", "queue_id", queueID, "error", err)
	}
	if err := p.queue.SetProcessEnd(ctx, queueID); err != nil {
		p.logger.Error("recording process end failed", "queue_id", queueID, "error", err)
	}
	if err := p.docs.UpdateStatus(ctx, documentID, constants.DocumentProcessed); err != nil {
		p.logger.Error("document transition to processed failed",
			"document_id", documentID, "error", err)
	}
	p.logger.Info("document processed", "document_id", documentID, "queue_id", queueID)
}

// fail records the error message on the queue item and moves both state
// machines to failed. process_end is intentionally left unset on failure.
func (p *Processor) fail(ctx context.Context, documentID, queueID int64, cause error) {
	msg := cause.Error()
	if err := p.queue.UpdateStatus(ctx, queueID, constants.QueueFailed, &msg); err != nil {
		p.logger.Error("queue transition to failed failed", "queue_id", queueID, "error", err)
	}
	if err := p.docs.UpdateStatus(ctx, documentID, constants.DocumentFailed); err != nil {
		p.logger.Error("document transition to failed failed",
			"document_id", documentID, "error", err)
	}
}

// run performs the three pipeline stages and persists exactly one result
// on success. Stage durations are captured in seconds.
func (p *Processor) run(ctx context.Context, documentID int64) error {
	start := time.Now()

	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("document %d: %w", documentID, err)
	}

	localPath, cleanup, err := p.store.Localize(ctx, doc.FilePath)
	if err != nil {
		return fmt.Errorf("localize %s: %w", doc.FilePath, err)
	}
	defer cleanup()

	ocrStart := time.Now()
	frags := p.recognizer.Recognize(ctx, localPath)
	ocrSeconds := time.Since(ocrStart).Seconds()

	extractStart := time.Now()
	fields := extract.Extract(frags)
	score := extract.Score(fields)
	payload, err := extract.BuildPayload(fields, score, frags)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	extractionSeconds := time.Since(extractStart).Seconds()

	result := &entity.ProcessingResult{
		DocumentID:      documentID,
		InvoiceNumber:   fields.InvoiceNumber,
		VendorName:      fields.VendorName,
		InvoiceDate:     parseDate(fields.InvoiceDate),
		DueDate:         parseDate(fields.DueDate),
		TotalAmount:     fields.TotalAmount,
		ConfidenceScore: score,
		RawExtraction:   payload,
		Status:          constants.ValidationPending,
	}
	result.OCRSeconds = ocrSeconds
	result.ExtractionSeconds = extractionSeconds

	persistStart := time.Now()
	created, err := p.results.Create(ctx, result)
	if err != nil {
		return fmt.Errorf("persist result: %w", err)
	}
	result.PersistenceSeconds = time.Since(persistStart).Seconds()
	result.TotalSeconds = time.Since(start).Seconds()
	if err := p.results.UpdateTimings(ctx, created.ID, result.PersistenceSeconds, result.TotalSeconds); err != nil {
		p.logger.Warn("recording result timings failed", "result_id", created.ID, "error", err)
	}

	p.logger.Debug("pipeline stages finished",
		"document_id", documentID,
		"fragments", len(frags),
		"confidence", score,
		"ocr_seconds", result.OCRSeconds,
		"extraction_seconds", result.ExtractionSeconds,
		"persistence_seconds", result.PersistenceSeconds,
		"total_seconds", result.TotalSeconds,
	)
	return nil
}

var dateLayouts = []string{
	"01/02/2006",
	"02/01/2006",
	"2006-01-02",
	"01-02-2006",
	"02-01-2006",
	"01/02/06",
	"02/01/06",
	"2006/01/02",
}

// parseDate turns a matched date string into a time value, trying common
// layouts in order. An unparseable date is dropped rather than failing the
// run.
func parseDate(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *raw); err == nil {
			return &t
		}
	}
	return nil
}
