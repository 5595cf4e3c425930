package http

import (
	"encoding/json"
	"errors"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/editor"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
}

// StatusResponse represents a simple status response
type StatusResponse struct {
	Status string `json:"status"`
}

// VersionResponse represents the API version response
type VersionResponse struct {
	Version string `json:"version"`
}

// multipartMemory is how much of an upload form is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 8 << 20

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady pings every dependency in name order and fails on the first
// one that does not answer.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, name := range slices.Sorted(maps.Keys(s.checks)) {
		if err := s.checks[name].Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			writeError(w, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Report endpoints

// handleGetReport returns the collected live report.
// GET /api/v1/report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.report.Snapshot(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "failed to collect report")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleApplyReport replaces the live report with the request body.
// PUT /api/v1/report
func (s *Server) handleApplyReport(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	result, err := s.report.Apply(r.Context(), data)
	if err != nil {
		s.writeDomainError(w, err, "failed to apply report")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleDispatch routes one editor interaction.
// POST /api/v1/report/events
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var ev editor.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	outcome, err := s.report.Dispatch(r.Context(), ev)
	if err != nil {
		s.writeDomainError(w, err, "failed to handle event")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// handleUpload ingests the "files" parts of a multipart form into the
// target named by the kind, section, row and slot fields.
// POST /api/v1/report/uploads
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	target := domain.UploadTarget{
		Kind:    r.FormValue("kind"),
		Section: r.FormValue("section"),
		Row:     r.FormValue("row"),
		Slot:    r.FormValue("slot"),
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	uploads := make([]domain.Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, uploadFromPart(fh))
	}

	result, err := s.report.Upload(r.Context(), target, uploads)
	if err != nil {
		s.writeDomainError(w, err, "upload failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func uploadFromPart(fh *multipart.FileHeader) domain.Upload {
	return domain.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// handleNavigate records the active module and print selection.
// POST /api/v1/report/navigate
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var cfg domain.ReportConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.report.Navigate(r.Context(), cfg); err != nil {
		s.writeDomainError(w, err, "failed to navigate")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleSave writes the live report immediately.
// POST /api/v1/report/save
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.report.Save(r.Context()); err != nil {
		s.writeDomainError(w, err, "failed to save report")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "saved"})
}

// handleExport downloads the report as a self-contained JSON file.
// GET /api/v1/report/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.report.Export(r.Context())
	if err != nil {
		s.writeDomainError(w, err, "failed to export report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImport applies an exported file.
// POST /api/v1/report/import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}

	result, err := s.report.Import(r.Context(), data)
	if err != nil {
		s.writeDomainError(w, err, "failed to import report")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleClearLocal wipes local storage. It needs ?confirm=true.
// DELETE /api/v1/report/local
func (s *Server) handleClearLocal(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	if err := s.report.ClearLocal(r.Context(), confirmed); err != nil {
		s.writeDomainError(w, err, "failed to clear local storage")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

// GET /api/v1/report/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.report.Metrics(r.Context()))
}

// Notification endpoints

// GET /api/v1/notifications
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list := s.notifications.List(r.Context())
	if list == nil {
		list = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

// DELETE /api/v1/notifications/{id}
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing notification id")
		return
	}

	if err := s.notifications.Dismiss(r.Context(), id); err != nil {
		s.writeDomainError(w, err, "failed to dismiss notification")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "dismissed"})
}

// Helper functions

// readBody reads a whole request body bounded by the upload limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return data, true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindMalformedSnapshot, domain.KindInvalidInput, domain.KindMediaDecodeFailure:
		return http.StatusBadRequest
	case domain.KindNotFound, domain.KindTargetGone:
		return http.StatusNotFound
	case domain.KindConfirmationRequired:
		return http.StatusConflict
	case domain.KindOversizedMedia:
		return http.StatusRequestEntityTooLarge
	case domain.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case domain.KindStorageQuotaExceeded:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err classified by its domain kind. Internal errors
// are logged and reported with fallback instead of their text.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error(fallback, "error", err)
		writeJSON(w, status, ErrorResponse{Error: fallback, Kind: kind})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
