package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// writeJSON encodes v with status. Encoding errors are only logged since
// the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode failed", "error", err)
	}
}

// decodeJSON reads a size-capped JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errors.Newf("file too large: limit is %d bytes", tooBig.Limit)
		}
		return badRequest(errors.Wrap(err, "invalid request body"))
	}
	if err := s.validate.Struct(dst); err != nil {
		return badRequest(errors.Wrap(err, "validation failed"))
	}
	return nil
}

// parseID reads an optional non-negative id. Blank is zero.
func parseID(name, value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 0 {
		return 0, badRequest(errors.WithHint(
			errors.Newf("invalid request: %s must be a positive integer", name),
			"Pass the numeric id of an existing container"))
	}
	return id, nil
}

func parseBool(name, value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, badRequest(errors.Newf("invalid request: %s must be true or false", name))
	}
	return b, nil
}

// attachment marks the reply as a download named filename.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

// handleHealth reports store reachability and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok"}
	if l := s.importer.Limiter(); l != nil {
		body["imports"] = l.Status()
	}
	status := http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		slog.Warn("health check: store unreachable", "error", err)
		body["status"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
