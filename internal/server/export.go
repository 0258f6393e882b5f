package server

import (
	"net/http"
	"strconv"
	"time"
)

// handleExportResults streams an XLSX workbook of processing results.
func (s *Server) handleExportResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	data, err := s.exporter.ExportResultsXLSX(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	filename := "invoicetrack-results-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
