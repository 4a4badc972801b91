package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"cost-control-api/internal/apierr"
	"cost-control-api/internal/logging"
	"cost-control-api/internal/response"
	"cost-control-api/internal/validate"
	"cost-control-api/pkg/importer"
)

// ImportsHandler handles spreadsheet imports of project actuals
type ImportsHandler struct {
	DB          func(ctx context.Context) (importer.DB, error)
	MaxBytes    int64
	MappingPath string // built-in Spectrum mapping when empty
	MaxErrors   int
	OnImport    func(importer.Summary) // called after every successful import
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(db func(ctx context.Context) (importer.DB, error), mappingPath string) *ImportsHandler {
	return &ImportsHandler{
		DB:          db,
		MaxBytes:    20 << 20, // 20 MB
		MappingPath: mappingPath,
		MaxErrors:   50,
	}
}

// UploadActuals imports a Spectrum .xlsx export into the actuals of the
// project named in the path.
func (h *ImportsHandler) UploadActuals(w http.ResponseWriter, r *http.Request) error {
	projectID, err := validate.PathUUID(r, "projectId")
	if err != nil {
		return err
	}

	// Limit body size
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		return apierr.Validation("Content-Type must be multipart/form-data", nil)
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		return apierr.Validation("Invalid multipart form", map[string]string{"body": err.Error()})
	}

	opts, err := h.options(r, projectID)
	if err != nil {
		return err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return apierr.Validation("File is required", map[string]string{"file": "Required"})
	}
	defer file.Close()

	if !isXLSX(header) {
		return apierr.Validation("Only .xlsx files are accepted", map[string]string{"file": "Must be an .xlsx workbook"})
	}

	db, err := h.DB(r.Context())
	if err != nil {
		return err
	}

	log := logging.FromContext(r.Context())
	sum, err := importer.ImportActuals(r.Context(), db, file, opts)
	if err != nil {
		log.Warn("actuals import failed", "projectId", projectID, "file", header.Filename, "errors", sum.Errors, "err", err)
		return importError(err, sum)
	}

	log.Info("actuals imported", "projectId", projectID, "file", header.Filename,
		"inserted", sum.Inserted, "updated", sum.Updated, "errors", sum.Errors, "dryRun", sum.DryRun)
	if h.OnImport != nil {
		h.OnImport(sum)
	}
	response.OK(w, sum)
	return nil
}

func (h *ImportsHandler) options(r *http.Request, projectID string) (importer.Options, error) {
	opts := importer.Options{
		ProjectID:   projectID,
		MappingPath: h.MappingPath,
		MaxErrors:   h.MaxErrors,
	}
	details := map[string]string{}

	if v := r.FormValue("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			details["dry_run"] = "Expected boolean"
		}
		opts.DryRun = b
	}
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			details["max_errors"] = "Must be a positive integer"
		} else {
			opts.MaxErrors = n
		}
	}
	if v := r.FormValue("month"); v != "" {
		if !validate.IsMonth(v) {
			details["month"] = "Month must be in YYYY-MM format"
		}
		opts.Month = v
	}

	if len(details) > 0 {
		return opts, apierr.Validation("Invalid import options", details)
	}
	return opts, nil
}

func importError(err error, sum importer.Summary) error {
	switch {
	case errors.Is(err, importer.ErrProjectNotFound):
		return apierr.NotFound("Project")
	case errors.Is(err, importer.ErrTooManyErrors):
		details := map[string]string{"file": fmt.Sprintf("%d rows failed", sum.Errors)}
		for i, e := range sum.Samples {
			if i == 10 {
				break
			}
			details[fmt.Sprintf("row %d", e.Row)] = e.Message
		}
		return apierr.Validation("Too many invalid rows", details)
	case errors.Is(err, importer.ErrMissingColumns):
		return apierr.Validation("Spreadsheet is missing required columns", map[string]string{"file": err.Error()})
	case errors.Is(err, importer.ErrUnreadable):
		return apierr.Validation("Unreadable spreadsheet", map[string]string{"file": err.Error()})
	}
	return err
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}
