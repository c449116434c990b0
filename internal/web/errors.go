package web

// errors.go turns handler errors into responses. The technical error is
// logged with the request id; the client gets the coded user message from
// core.MapError, as JSON or as an HTMX fragment.

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/entityregistry/internal/core"
	"github.com/JonMunkholm/entityregistry/internal/logging"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// badRequest marks err as the caller's fault so it maps to 400.
func badRequest(err error) error {
	return errors.Mark(err, core.ErrInvalidRequest)
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrImportBusy):
		return http.StatusServiceUnavailable
	case core.IsRequestError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch core.MapError(err).Code {
	case "DB001", "DB002", "DB003":
		return http.StatusConflict
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing reply with status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	resp := ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code}
	if core.IsRequestError(err) || errors.Is(err, core.ErrImportBusy) {
		// These carry what to fix and nothing from the store.
		resp.Error = err.Error()
		if hint := core.Hint(err); hint != "" {
			resp.Action = hint
		}
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		ErrorAlert(resp).Render(r.Context(), w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsCSV reports whether the caller asked for the error report instead of
// the JSON result.
func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}
