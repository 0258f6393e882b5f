package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/amara-obi/invoicetrack/internal/entity"
	"github.com/amara-obi/invoicetrack/internal/repository"
)

// Service is the dispatch entry point for the API layer: it creates queue
// items and hands them to the worker pool.
type Service struct {
	logger *slog.Logger
	docs   repository.DocumentRepository
	queue  repository.QueueRepository
	sink   *ProcessorQueue
}

func NewService(logger *slog.Logger, docs repository.DocumentRepository, queue repository.QueueRepository, sink *ProcessorQueue) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, docs: docs, queue: queue, sink: sink}
}

// EnqueueDocument creates a queue item for a document and submits it to the
// worker pool.
func (s *Service) EnqueueDocument(ctx context.Context, documentID int64, priority int) (*entity.QueueItem, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	item, err := s.queue.Create(ctx, documentID, priority)
	if err != nil {
		return nil, err
	}
	_ = s.sink.Enqueue(ctx, Job{
		DocumentID:  documentID,
		QueueID:     item.ID,
		SubmittedAt: time.Now(),
	})
	return item, nil
}

// Reprocess resets a document to pending and creates a fresh queue item.
// Earlier queue items and results are left untouched so the full attempt
// history stays readable.
func (s *Service) Reprocess(ctx context.Context, documentID int64, priority int) (*entity.QueueItem, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	if err := s.docs.ResetToPending(ctx, documentID); err != nil {
		return nil, err
	}
	s.logger.Info("document reset for reprocessing", "document_id", documentID)

	item, err := s.queue.Create(ctx, documentID, priority)
	if err != nil {
		return nil, err
	}
	_ = s.sink.Enqueue(ctx, Job{
		DocumentID:  documentID,
		QueueID:     item.ID,
		SubmittedAt: time.Now(),
	})
	return item, nil
}
