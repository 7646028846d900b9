package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"synapse-project-api/internal/api"
	"synapse-project-api/pkg/importer"
)

const defaultMaxErrors = 50

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Creator     importer.ProjectCreator
	MaxBytes    int64
	MappingPath string
	Logger      *zap.Logger
}

// NewImportsHandler creates a new imports handler. mappingPath is fixed by
// configuration; an empty path uses the built-in header mapping.
func NewImportsHandler(creator importer.ProjectCreator, mappingPath string, maxBytes int64, logger *zap.Logger) *ImportsHandler {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &ImportsHandler{
		Creator:     creator,
		MaxBytes:    maxBytes,
		MappingPath: mappingPath,
		Logger:      logger,
	}
}

// UploadExcel handles Excel file uploads for project import
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		badRequest(w, "content-type", "Content-Type must be multipart/form-data.")
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = api.WriteError(w, http.StatusRequestEntityTooLarge, api.CodeValidationFailed, "Upload is too large.", nil)
			return
		}
		badRequest(w, "body", "Invalid multipart form.")
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	maxErrors := defaultMaxErrors
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxErrors = n
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file", "A file is required.")
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		badRequest(w, "file", "Only .xlsx files are accepted.")
		return
	}

	sum, impErr := importer.ImportExcel(r.Context(), h.Creator, file, importer.ImportOptions{
		MappingPath: h.MappingPath,
		DryRun:      dryRun,
		MaxErrors:   maxErrors,
	})
	if errors.Is(impErr, context.Canceled) || errors.Is(impErr, context.DeadlineExceeded) {
		api.WriteAppError(w, h.Logger, impErr)
		return
	}
	if impErr != nil {
		h.Logger.Warn("excel import failed",
			zap.String("file", header.Filename),
			zap.Bool("dry_run", dryRun),
			zap.Error(impErr))
		_ = api.WriteJSON(w, http.StatusUnprocessableEntity, api.Response{
			Success:   false,
			Data:      sum,
			Message:   impErr.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	h.Logger.Info("excel import finished",
		zap.String("file", header.Filename),
		zap.Bool("dry_run", dryRun),
		zap.Int("inserted", sum.Inserted),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("errors", sum.Errors))
	_ = api.WriteSuccess(w, http.StatusOK, sum, "")
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func badRequest(w http.ResponseWriter, field, msg string) {
	_ = api.WriteError(w, http.StatusBadRequest, api.CodeValidationFailed, msg, map[string][]string{field: {msg}})
}
