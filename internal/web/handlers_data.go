package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleTemplate serves an empty per-kind sheet as CSV (default) or XLSX.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	name := string(kind) + "_template"
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "csv":
		err = core.WriteTemplateCSV(&buf, kind)
		attachment(w, "text/csv; charset=utf-8", name+".csv")
	case "xlsx":
		err = core.WriteTemplateXLSX(&buf, kind)
		attachment(w, xlsxContentType, name+".xlsx")
	default:
		err = badRequest(errors.Newf("invalid request: unsupported format %q", format))
	}
	if err != nil {
		w.Header().Del("Content-Disposition")
		s.respondError(w, r, err, statusFor(err))
		return
	}
	w.Write(buf.Bytes())
}

// handleExport streams stored records of one kind as CSV in the import
// layout. container_id narrows the export to one file or folder.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	containerID, err := parseID("container_id", r.URL.Query().Get("container_id"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if containerID != 0 {
		exists, err := s.store.ContainerExists(ctx, kind, containerID)
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		if !exists {
			s.respondError(w, r, errors.Newf("container %d not found", containerID), http.StatusNotFound)
			return
		}
	}

	var buf bytes.Buffer
	if err := core.Export(ctx, s.store, kind, containerID, &buf); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	name := string(kind)
	if containerID != 0 {
		name = fmt.Sprintf("%s_%d", kind, containerID)
	}
	attachment(w, "text/csv; charset=utf-8", name+".csv")
	w.Write(buf.Bytes())
}

// handleDictionaries lists every vocabulary keyed by its name.
func (s *Server) handleDictionaries(w http.ResponseWriter, r *http.Request) {
	out := make(map[core.Dictionary][]core.DictionaryEntry, len(core.Dictionaries))
	for _, dict := range core.Dictionaries {
		entries, err := s.store.ListDictionary(r.Context(), dict)
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		out[dict] = entries
	}
	writeJSON(w, http.StatusOK, out)
}

// ----------------------------------------------------------------------------
// Containers
// ----------------------------------------------------------------------------

type entityFileBody struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

type folderBody struct {
	FolderName  string `json:"folder_name" validate:"required,max=255"`
	NetworkCode string `json:"network_code" validate:"omitempty,max=32"`
}

type incidentFileBody struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	Month    string `json:"month" validate:"omitempty,datetime=2006-01"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

func (s *Server) handleCreateEntityFile(w http.ResponseWriter, r *http.Request) {
	var body entityFileBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	id, err := s.store.CreateEntityFile(r.Context(), strings.TrimSpace(body.FileName), body.Description)
	s.created(w, r, id, err)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var body folderBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	id, err := s.store.CreateFolder(r.Context(), strings.TrimSpace(body.FolderName), strings.TrimSpace(body.NetworkCode))
	s.created(w, r, id, err)
}

func (s *Server) handleCreateIncidentFile(w http.ResponseWriter, r *http.Request) {
	var body incidentFileBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	id, err := s.store.CreateIncidentFile(r.Context(), strings.TrimSpace(body.FileName), body.Month)
	s.created(w, r, id, err)
}

func (s *Server) created(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}
