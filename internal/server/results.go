package server

import (
	"encoding/json"
	"net/http"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/common"
)

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	results, err := s.results.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	result, err := s.results.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// handleDocumentResults returns the latest result for a document, the only
// authoritative one. ?all=true returns the full attempt history.
func (s *Server) handleDocumentResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.docs.GetByID(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}

	if r.URL.Query().Get("all") == "true" {
		limit, offset := parsePage(r)
		results, err := s.results.ListByDocument(r.Context(), id, limit, offset)
		if err != nil {
			s.respondError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"results": results})
		return
	}

	result, err := s.results.GetLatestForDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type validateRequest struct {
	Status      string  `json:"status"`
	ValidatedBy *int64  `json:"validated_by"`
	Notes       *string `json:"notes"`
}

// handleValidateResult records the human verdict on an extraction result.
func (s *Server) handleValidateResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, common.InvalidInputf("invalid request body"))
		return
	}
	status := constants.ValidationStatus(req.Status)
	if status != constants.ValidationValidated && status != constants.ValidationRejected {
		s.respondError(w, common.InvalidInputf("status must be %q or %q",
			constants.ValidationValidated, constants.ValidationRejected))
		return
	}

	result, err := s.results.Validate(r.Context(), id, status, req.ValidatedBy, req.Notes)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}
