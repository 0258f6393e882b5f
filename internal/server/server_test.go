package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/amara-obi/invoicetrack/internal/common"
)

func TestDetermineContentType(t *testing.T) {
	cases := []struct {
		filename string
		reported string
		want     string
	}{
		{"a.pdf", "application/pdf", "application/pdf"},
		{"a.pdf", "application/octet-stream", "application/pdf"},
		{"scan.jpeg", "", "image/jpeg"},
		{"scan.JPG", "binary/unknown", "image/jpeg"},
		{"page.tiff", "", "image/tiff"},
		{"notes.txt", "text/plain", "text/plain"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, determineContentType(tc.filename, tc.reported), tc.filename)
	}
}

func TestParsePage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=10&offset=30", nil)
	limit, offset := parsePage(r)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 30, offset)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/documents?limit=9999&offset=-2", nil)
	limit, offset = parsePage(r)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
}

func TestParsePriority(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/1/process?priority=5", nil)
	assert.Equal(t, 5, parsePriority(r))

	r = httptest.NewRequest(http.MethodPost, "/api/v1/documents/1/process", nil)
	assert.Equal(t, 1, parsePriority(r))
}

func TestRespondErrorMapping(t *testing.T) {
	s := &Server{logger: zap.NewNop()}

	cases := []struct {
		err    error
		status int
	}{
		{common.NotFoundf("document 4 not found"), http.StatusNotFound},
		{common.InvalidInputf("bad id"), http.StatusBadRequest},
		{common.NewAppError("CONFLICT", "already claimed", common.ErrConflict), http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.respondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorHidesInternals(t *testing.T) {
	s := &Server{logger: zap.NewNop()}
	rec := httptest.NewRecorder()
	s.respondError(rec, assert.AnError)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	assert.Contains(t, rec.Body.String(), "internal server error")
}
