package server

import (
	"net/http"
)

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	items, err := s.queue.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"queue_items": items})
}

func (s *Server) handleGetQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	item, err := s.queue.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

// handleReprocessQueueItem retries the document behind a queue item with a
// fresh queue entry. The item itself is left as the record of its attempt.
func (s *Server) handleReprocessQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	item, err := s.queue.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	fresh, err := s.dispatch.Reprocess(r.Context(), item.DocumentID, parsePriority(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, fresh)
}

// handleDocumentQueueHistory lists every processing attempt for a document,
// newest first, including failed ones.
func (s *Server) handleDocumentQueueHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.docs.GetByID(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	items, err := s.queue.ListByDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"queue_items": items})
}
