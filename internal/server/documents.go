package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/common"
	"github.com/amara-obi/invoicetrack/internal/entity"
	"github.com/amara-obi/invoicetrack/internal/repository"
	"github.com/amara-obi/invoicetrack/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := repository.HealthCheck(r.Context(), s.db, 3*time.Second); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type uploadResponse struct {
	Document  *entity.Document  `json:"document"`
	QueueItem *entity.QueueItem `json:"queue_item,omitempty"`
}

// handleUploadDocument stores the file, creates the document row, and
// queues it for processing unless ?process=false.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.maxUploadBytes()
	if r.ContentLength > maxBytes {
		s.respondError(w, common.InvalidInputf("file exceeds %d MB limit", maxBytes>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, common.InvalidInputf("file exceeds %d MB limit", maxBytes>>20))
			return
		}
		s.respondError(w, common.InvalidInputf("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, common.InvalidInputf("no file provided"))
		return
	}
	defer file.Close()

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		s.respondError(w, common.InvalidInputf("unsupported file extension %q", ext))
		return
	}
	contentType := determineContentType(header.Filename, header.Header.Get("Content-Type"))
	if _, ok := constants.AllowedContentTypes[contentType]; !ok {
		s.respondError(w, common.InvalidInputf("unsupported content type %q", contentType))
		return
	}
	if header.Size == 0 {
		s.respondError(w, common.InvalidInputf("uploaded file is empty"))
		return
	}

	key := storage.NewKey(header.Filename)
	if err := s.store.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		s.respondError(w, fmt.Errorf("store upload: %w", err))
		return
	}

	doc, err := s.docs.Create(r.Context(), &entity.Document{
		Filename:    header.Filename,
		ContentType: contentType,
		FilePath:    key,
		FileSize:    header.Size,
		Status:      constants.DocumentPending,
	})
	if err != nil {
		_ = s.store.Delete(r.Context(), key)
		s.respondError(w, err)
		return
	}

	resp := uploadResponse{Document: doc}
	if r.URL.Query().Get("process") != "false" {
		item, err := s.dispatch.EnqueueDocument(r.Context(), doc.ID, parsePriority(r))
		if err != nil {
			s.logger.Error("enqueue after upload failed",
				zap.Int64("document_id", doc.ID), zap.Error(err))
		} else {
			resp.QueueItem = item
		}
	}

	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r)
	docs, err := s.docs.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
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
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
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
	if err := s.docs.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.Delete(r.Context(), doc.FilePath); err != nil {
		s.logger.Warn("stored file removal failed",
			zap.String("key", doc.FilePath), zap.Error(err))
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
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
	rc, err := s.store.Get(r.Context(), doc.FilePath)
	if err != nil {
		s.respondError(w, common.NotFoundf("stored file for document %d not found", id))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("stream download failed", zap.Int64("document_id", id), zap.Error(err))
	}
}

// handleProcessDocument queues a document for processing. Documents that
// already finished are skipped unless ?force=true, which runs them again
// through the reprocess path.
func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
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
	force := r.URL.Query().Get("force") == "true"
	if doc.Status == constants.DocumentProcessing {
		s.respondError(w, common.NewAppError("ALREADY_PROCESSING",
			"document is currently being processed", common.ErrConflict))
		return
	}
	if doc.Status == constants.DocumentProcessed && !force {
		s.respondError(w, common.NewAppError("ALREADY_PROCESSED",
			"document already processed, pass force=true to run it again", common.ErrConflict))
		return
	}

	var item *entity.QueueItem
	if doc.Status == constants.DocumentPending {
		item, err = s.dispatch.EnqueueDocument(r.Context(), id, parsePriority(r))
	} else {
		item, err = s.dispatch.Reprocess(r.Context(), id, parsePriority(r))
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, item)
}

func (s *Server) handleReprocessDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	item, err := s.dispatch.Reprocess(r.Context(), id, parsePriority(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, item)
}

type updateDocumentRequest struct {
	Filename string `json:"filename"`
}

// handleUpdateDocument renames a document. The stored file and its
// processing history keep their original keys.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var req updateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, common.InvalidInputf("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		s.respondError(w, common.InvalidInputf("filename is required"))
		return
	}
	if _, err := s.docs.GetByID(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.docs.UpdateFilename(r.Context(), id, req.Filename); err != nil {
		s.respondError(w, err)
		return
	}
	doc, err := s.docs.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.InvalidInputf("invalid id %q", raw)
	}
	return id, nil
}

func parsePage(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func parsePriority(r *http.Request) int {
	if v, err := strconv.Atoi(r.URL.Query().Get("priority")); err == nil && v > 0 {
		return v
	}
	return 1
}

// determineContentType prefers the reported header but falls back to the
// file extension when the client sent something generic.
func determineContentType(filename, reported string) string {
	if _, ok := constants.AllowedContentTypes[reported]; ok {
		return reported
	}
	switch constants.NormalizeExt(filepath.Ext(filename)) {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return reported
	}
}
