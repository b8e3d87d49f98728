package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/pos/internal/domain"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Line       int    `json:"line,omitempty"`
	MenuItemID int64  `json:"menu_item_id,omitempty"`
	Requested  int    `json:"requested,omitempty"`
	Available  *int   `json:"available,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	writeJSON(w, status, ErrorResponse{Error: message}, logger)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindInsufficientStock:
		return http.StatusConflict
	case domain.KindTransaction:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError reports err with its kind and line details. Internal
// failures are logged and their text is not echoed.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if de, ok := domain.AsError(err); ok {
		resp.Kind = string(de.Kind)
		resp.Line = de.Line
		resp.Retryable = de.Retryable()
		if de.Kind == domain.KindInsufficientStock {
			available := de.Available
			resp.MenuItemID = de.MenuItemID
			resp.Requested = de.Requested
			resp.Available = &available
		}
	}

	switch status {
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		resp.Error = "internal server error"
	case http.StatusServiceUnavailable:
		logger.WarnContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		resp.Error = "store unavailable, retry the request"
	case http.StatusNotFound:
		resp.Error = "not found"
	}
	writeJSON(w, status, resp, logger)
}
