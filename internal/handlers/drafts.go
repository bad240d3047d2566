package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

const pingTimeout = 5 * time.Second

// HandleGenerate starts a new draft from the "message" and "instruction" form fields. Any session still
// generating is cancelled first. Empty fields are rejected with 400 and the validation message; on success the
// new session is returned as JSON with status 202, and its progress follows on the event stream.
func (m Main) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	original := r.FormValue("message")
	instruction := r.FormValue("instruction")

	s, err := m.generator.Generate(original, instruction)
	if err != nil {
		var invalid *models.InvalidInputError
		if errors.As(err, &invalid) {
			m.logger.Warn("Rejected draft request", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.logger.Error("Failed to start generation", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, http.StatusAccepted, newSessionView(s))
}

// HandleCancel cancels the active session, keeping its partial text.
func (m Main) HandleCancel(w http.ResponseWriter, _ *http.Request) {
	cancelled := m.generator.CancelCurrent()
	m.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// HandleClear cancels the active session and returns the page to idle.
func (m Main) HandleClear(w http.ResponseWriter, _ *http.Request) {
	m.generator.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// HandleCurrent returns the active session as JSON, for pages that reconnect mid-stream.
func (m Main) HandleCurrent(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, newSessionView(m.generator.Current()))
}

// HandleDeleteDraft removes a journal entry. Deleting an unknown ID is not an error.
func (m Main) HandleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Draft ID is required", http.StatusBadRequest)
		return
	}

	if err := m.store.DeleteDraft(r.Context(), id); err != nil {
		m.logger.Error("Failed to delete draft",
			slog.String("draftID", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE streams fragment and status events to the browser.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.events.ServeHTTP(w, r)
}

// HandleHealth reports whether the inference server answers.
func (m Main) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	version, err := m.ping(ctx)
	if err != nil {
		m.logger.Warn("Inference server unavailable", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Detail: err.Error()})
		return
	}
	m.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version})
}

func (m Main) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}
