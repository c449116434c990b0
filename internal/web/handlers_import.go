package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

// importBody is the JSON import request.
type importBody struct {
	Type           string                        `json:"type" validate:"required"`
	CSV            string                        `json:"csv"`
	FileID         int64                         `json:"file_id" validate:"gte=0"`
	FolderID       int64                         `json:"folder_id" validate:"gte=0"`
	DryRun         bool                          `json:"dry_run"`
	UnknownActions map[string]core.UnknownAction `json:"unknown_actions"`
}

// handleImport runs one import from a JSON body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body importBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	kind, err := core.ParseKind(body.Type)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	req := core.ImportRequest{
		Kind:     kind,
		Data:     []byte(body.CSV),
		Format:   core.FormatCSV,
		FileID:   body.FileID,
		FolderID: body.FolderID,
		DryRun:   body.DryRun,
	}
	if !req.DryRun {
		if req.Policies, err = core.ParsePolicies(body.UnknownActions); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}
	s.runImport(w, r, req)
}

// handleUpload runs one import from a multipart form carrying a CSV or
// XLSX file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, err := s.uploadRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.runImport(w, r, req)
}

func (s *Server) uploadRequest(w http.ResponseWriter, r *http.Request) (core.ImportRequest, error) {
	var req core.ImportRequest

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, errors.Newf("file too large: limit is %d bytes", maxSize)
		}
		return req, badRequest(errors.Wrap(err, "invalid request: multipart form"))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, badRequest(errors.New("no file provided"))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, errors.Wrap(err, "read upload")
	}

	if req.Kind, err = core.ParseKind(r.FormValue("type")); err != nil {
		return req, err
	}
	if req.FileID, err = parseID("file_id", r.FormValue("file_id")); err != nil {
		return req, err
	}
	if req.FolderID, err = parseID("folder_id", r.FormValue("folder_id")); err != nil {
		return req, err
	}
	if req.DryRun, err = parseBool("dry_run", r.FormValue("dry_run")); err != nil {
		return req, err
	}

	req.Data = data
	req.Format = uploadFormat(header.Filename, r.FormValue("format"))

	if raw := strings.TrimSpace(r.FormValue("unknown_actions")); raw != "" && !req.DryRun {
		var actions map[string]core.UnknownAction
		if err := json.Unmarshal([]byte(raw), &actions); err != nil {
			return req, badRequest(errors.Wrap(err, "invalid request: unknown_actions"))
		}
		if req.Policies, err = core.ParsePolicies(actions); err != nil {
			return req, err
		}
	}
	return req, nil
}

// uploadFormat prefers an explicit format field, then the file extension.
func uploadFormat(filename, explicit string) core.Format {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "xlsx":
		return core.FormatXLSX
	case "csv":
		return core.FormatCSV
	}
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return core.FormatXLSX
	}
	return core.FormatCSV
}

// runImport executes req and writes the result as JSON, as the error
// report CSV, or as the HTMX summary fragment.
func (s *Server) runImport(w http.ResponseWriter, r *http.Request, req core.ImportRequest) {
	ctx := withClient(r)
	if t := s.cfg.Import.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	res, err := s.importer.Import(ctx, req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	switch {
	case wantsCSV(r):
		attachment(w, "text/csv; charset=utf-8", string(req.Kind)+"_errors.csv")
		if err := core.WriteErrorsCSV(w, res); err != nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
		}
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		ImportSummary(req.Kind, req.DryRun, res).Render(r.Context(), w)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
