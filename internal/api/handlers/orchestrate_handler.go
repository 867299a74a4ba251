package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docstream/internal/models"
	"docstream/internal/services"
)

type OrchestrateHandler struct {
	orch *services.OrchestrateService
	log  *zap.Logger
}

func NewOrchestrateHandler(orch *services.OrchestrateService, log *zap.Logger) *OrchestrateHandler {
	return &OrchestrateHandler{orch: orch, log: log}
}

// UploadBatch accepts any number of files under the "files" field plus one
// parser tag applied to all of them. Outcomes are per file; a bad file never
// blocks the others.
func (h *OrchestrateHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "invalid multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeError(w, http.StatusBadRequest, "Bad request", "No files provided")
		return
	}

	var files []services.File
	for _, fh := range r.MultipartForm.File["files"] {
		part, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad request",
				fmt.Sprintf("failed to read uploaded file %q", fh.Filename))
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad request",
				fmt.Sprintf("failed to read uploaded file %q", fh.Filename))
			return
		}
		files = append(files, services.File{Name: filepath.Base(fh.Filename), Data: data})
	}

	parserTag := r.FormValue("parser")
	if parserTag == "" {
		parserTag = defaultParser
	}

	resp, err := h.orch.UploadBatch(r.Context(), files, parserTag)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Validation failed", verr.Msg)
			return
		}
		h.log.Error("batch upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to process batch upload")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Compare runs one document through several parsers and waits for all of
// them to finish, so this request can take a while. Parsers come in as
// repeated "parsers" fields or one comma-separated value.
func (h *OrchestrateHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "No file provided")
		return
	}
	defer file.Close()

	f, status, msg := readPart(file, header, h.orch.MaxUploadBytes())
	if status != 0 {
		writeError(w, status, http.StatusText(status), msg)
		return
	}

	var parsers []string
	for _, v := range r.Form["parsers"] {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				parsers = append(parsers, tag)
			}
		}
	}

	resp, err := h.orch.Compare(r.Context(), f, parsers)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Validation failed", verr.Msg)
			return
		}
		h.log.Error("comparison failed", zap.String("filename", f.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to run comparison")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
