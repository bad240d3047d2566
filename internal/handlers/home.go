package handlers

import (
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/draft-writer/internal/generation"
	"github.com/MegaGrindStone/draft-writer/internal/models"
)

type homePageData struct {
	Settings Settings
	Current  sessionView
	Drafts   []models.Draft
}

// sessionView is the active session as the page and the JSON endpoints see it.
type sessionView struct {
	SessionID       string        `json:"sessionId,omitempty"`
	Status          models.Status `json:"status"`
	OriginalMessage string        `json:"originalMessage,omitempty"`
	Instruction     string        `json:"instruction,omitempty"`
	Text            string        `json:"text"`
	Draft           string        `json:"draft"`
	Detail          string        `json:"detail,omitempty"`
}

// HandleHome renders the drafting page: the form, the active session, and the most recent journal entries.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	drafts, err := m.store.Drafts(r.Context(), recentDraftsLimit)
	if err != nil {
		m.logger.Error("Failed to get drafts", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Settings: m.settings,
		Current:  newSessionView(m.generator.Current()),
		Drafts:   drafts,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func newSessionView(s *generation.Session) sessionView {
	if s == nil {
		return sessionView{Status: models.StatusIdle}
	}

	req := s.Request()
	v := sessionView{
		SessionID:       s.ID(),
		Status:          s.Status(),
		OriginalMessage: req.OriginalMessage,
		Instruction:     req.Instruction,
		Text:            s.Text(),
		Draft:           s.Draft(),
	}
	if err := s.Err(); err != nil {
		v.Detail = err.Error()
	}
	return v
}
