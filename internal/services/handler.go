package services

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/policylocaliser/internal/models"
)

// maxBodyBytes bounds the optional filter body.
const maxBodyBytes = 1 << 20

// ServeHTTP runs the pipeline for a POST request. The body may carry
// {"schools": [...], "templates": [...]}; an empty or unparsable body runs
// without filters.
func (f *LocaliserFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{Error: "method not allowed"})
		return
	}

	req := decodeRequest(r, f.logger)
	res, err := f.Process(r.Context(), &req)
	if err != nil {
		// The specific error is already logged inside the Process method.
		WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func decodeRequest(r *http.Request, logger *slog.Logger) models.LocaliseRequest {
	var req models.LocaliseRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("Could not read request body, running without filters", "error", err)
		return req
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req
	}
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("Could not decode request body, running without filters", "error", err)
		return models.LocaliseRequest{}
	}
	return req
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
