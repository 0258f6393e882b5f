package server

import (
	"net/http"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/entity"
)

type documentStatusResponse struct {
	DocumentID   int64                    `json:"document_id"`
	Status       constants.DocumentStatus `json:"status"`
	QueueItem    *entity.QueueItem        `json:"queue_item,omitempty"`
	LatestResult *entity.ProcessingResult `json:"latest_result,omitempty"`
	Attempts     int64                    `json:"attempts"`
}

// handleDocumentStatus reports where a document is in its lifecycle: the
// document status, the most recent queue item, and the latest result if
// one exists.
func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	resp := documentStatusResponse{DocumentID: doc.ID, Status: doc.Status}
	if item, err := s.queue.GetLatestForDocument(r.Context(), id); err == nil {
		resp.QueueItem = item
	}
	if result, err := s.results.GetLatestForDocument(r.Context(), id); err == nil {
		resp.LatestResult = result
	}
	if n, err := s.results.CountForDocument(r.Context(), id); err == nil {
		resp.Attempts = n
	}

	s.respondJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Documents       map[string]int64          `json:"documents"`
	Queue           map[string]int64          `json:"queue"`
	AvgConfidence   float64                   `json:"avg_confidence"`
	AvgTotalTime    float64                   `json:"avg_total_seconds"`
	RecentDocuments []entity.Document         `json:"recent_documents"`
	RecentResults   []entity.ProcessingResult `json:"recent_results"`
}

// handleStats aggregates counts by status plus average confidence and
// processing time across all results.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statsResponse{
		Documents: map[string]int64{},
		Queue:     map[string]int64{},
	}

	for _, st := range []constants.DocumentStatus{
		constants.DocumentPending,
		constants.DocumentProcessing,
		constants.DocumentProcessed,
		constants.DocumentFailed,
	} {
		n, err := s.docs.CountByStatus(ctx, st)
		if err != nil {
			s.respondError(w, err)
			return
		}
		resp.Documents[string(st)] = n
	}

	for _, st := range []constants.QueueStatus{
		constants.QueuePending,
		constants.QueueProcessing,
		constants.QueueCompleted,
		constants.QueueFailed,
	} {
		n, err := s.queue.CountByStatus(ctx, st)
		if err != nil {
			s.respondError(w, err)
			return
		}
		resp.Queue[string(st)] = n
	}

	if v, err := s.results.AvgConfidence(ctx); err == nil {
		resp.AvgConfidence = v
	}
	if v, err := s.results.AvgProcessingTime(ctx); err == nil {
		resp.AvgTotalTime = v
	}
	if recent, err := s.docs.Recent(ctx, 5); err == nil {
		resp.RecentDocuments = recent
	}
	if recent, err := s.results.List(ctx, 5, 0); err == nil {
		resp.RecentResults = recent
	}

	s.respondJSON(w, http.StatusOK, resp)
}
