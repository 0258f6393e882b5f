package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.Use(requestLogging(s.logger))
	r.Use(recovery(s.logger))
	r.Use(cors())

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/documents/upload", s.handleUploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}", s.handleUpdateDocument).Methods(http.MethodPatch)
	api.HandleFunc("/documents/{id:[0-9]+}", s.handleDeleteDocument).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id:[0-9]+}/download", s.handleDownloadDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}/process", s.handleProcessDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id:[0-9]+}/reprocess", s.handleReprocessDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id:[0-9]+}/status", s.handleDocumentStatus).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}/queue", s.handleDocumentQueueHistory).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id:[0-9]+}/results", s.handleDocumentResults).Methods(http.MethodGet)

	api.HandleFunc("/queue", s.handleListQueue).Methods(http.MethodGet)
	api.HandleFunc("/queue/{id:[0-9]+}", s.handleGetQueueItem).Methods(http.MethodGet)
	api.HandleFunc("/queue/{id:[0-9]+}/reprocess", s.handleReprocessQueueItem).Methods(http.MethodPost)

	api.HandleFunc("/results", s.handleListResults).Methods(http.MethodGet)
	api.HandleFunc("/results/export", s.handleExportResults).Methods(http.MethodGet)
	api.HandleFunc("/results/{id:[0-9]+}", s.handleGetResult).Methods(http.MethodGet)
	api.HandleFunc("/results/{id:[0-9]+}/validate", s.handleValidateResult).Methods(http.MethodPut, http.MethodPost)

	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/export/results.xlsx", s.handleExportResults).Methods(http.MethodGet)

	return r
}
