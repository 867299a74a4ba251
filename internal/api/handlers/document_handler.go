package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"docstream/internal/models"
	"docstream/internal/services"
)

const defaultParser = "simple"

// maxFormMemory is the in-memory threshold for multipart parsing; larger
// parts spool to disk.
const maxFormMemory = 32 << 20

type DocumentHandler struct {
	ingest *services.IngestService
	log    *zap.Logger
}

func NewDocumentHandler(ingest *services.IngestService, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, log: log}
}

// Upload accepts one PDF plus a parser tag and returns the job id without
// waiting for processing.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "invalid multipart form")
		return
	}
	file, ok := h.readFile(w, r)
	if !ok {
		return
	}
	parserTag := r.FormValue("parser")
	if parserTag == "" {
		parserTag = defaultParser
	}

	job, err := h.ingest.Submit(r.Context(), file.Name, file.Data, parserTag)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Validation failed", verr.Msg)
			return
		}
		h.log.Error("upload failed", zap.String("filename", file.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to store job data")
		return
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		JobID:   job.ID,
		Message: "File uploaded successfully. Job ID: " + job.ID,
	})
}

// Status reports the current job snapshot.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := h.ingest.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "Not found", fmt.Sprintf("Job %s not found", jobID))
			return
		}
		h.log.Error("status read failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to retrieve job status")
		return
	}
	writeJSON(w, http.StatusOK, models.NewStatusResponse(job))
}

// Result returns the full result for a done job, the stored error for a
// failed one, and the live snapshot with 202 while processing continues.
func (h *DocumentHandler) Result(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := h.ingest.Result(r.Context(), jobID)
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Not found", fmt.Sprintf("Job %s not found", jobID))
	case errors.Is(err, models.ErrResultNotReady):
		writeJSON(w, http.StatusAccepted, models.NewStatusResponse(job))
	case err != nil:
		h.log.Error("result read failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to retrieve job result")
	case job.Status == models.StatusError:
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "Job failed",
			Message: job.ErrorMessage,
			JobID:   job.ID,
		})
	default:
		writeJSON(w, http.StatusOK, models.NewResultResponse(job))
	}
}

// readFile pulls the "file" part out of the form and applies the transport
// prechecks: presence (400), extension (415), size ceiling (413). Deeper
// validation happens in the ingest service.
func (h *DocumentHandler) readFile(w http.ResponseWriter, r *http.Request) (services.File, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "No file provided")
		return services.File{}, false
	}
	defer file.Close()

	f, status, msg := readPart(file, header, h.ingest.MaxUploadBytes())
	if status != 0 {
		writeError(w, status, http.StatusText(status), msg)
		return services.File{}, false
	}
	return f, true
}

// readPart reads one multipart file into memory and prechecks it. A zero
// status means the part is acceptable.
func readPart(file multipart.File, header *multipart.FileHeader, maxBytes int64) (services.File, int, string) {
	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		return services.File{}, http.StatusBadRequest, "No file provided"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return services.File{}, http.StatusUnsupportedMediaType, "Only PDF files are supported"
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return services.File{}, http.StatusBadRequest, fmt.Sprintf("failed to read uploaded file %q", name)
	}
	if int64(len(data)) > maxBytes {
		return services.File{}, http.StatusRequestEntityTooLarge, fmt.Sprintf(
			"file size (%.1fMB) exceeds maximum allowed size (%dMB)",
			float64(len(data))/(1<<20), maxBytes>>20)
	}
	return services.File{Name: name, Data: data}, 0, ""
}
