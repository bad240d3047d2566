package models

import (
	"strings"
	"time"
)

// GenerationRequest carries everything needed to draft one reply. It is built once per user action and never
// modified afterwards.
type GenerationRequest struct {
	OriginalMessage string
	Instruction     string
	Model           string
	ServerURL       string
}

// Chunk is one decoded record of a streamed response.
type Chunk struct {
	// Text is the fragment carried by the record, possibly empty.
	Text string
	// Done marks the terminal record of the stream.
	Done bool
	// DoneReason is filled by servers that report why generation stopped.
	DoneReason string
	// Warning is set instead of Text when the record could not be decoded. Such chunks are skipped.
	Warning *ParseWarning
}

// Draft is the persisted snapshot of a finished generation session. It is what the journal stores and what the
// UI lists as recent drafts.
type Draft struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	OriginalMessage string    `json:"originalMessage"`
	Instruction     string    `json:"instruction"`
	Model           string    `json:"model"`
	ServerURL       string    `json:"serverUrl"`
	Text            string    `json:"text"`
	Status          Status    `json:"status"`
	ErrorDetail     string    `json:"errorDetail,omitempty"`
	Fragments       int       `json:"fragments"`
	Skipped         int       `json:"skipped,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
}

// Status represents the lifecycle state of a generation session.
type Status string

const (
	// StatusIdle is the state before any request has been dispatched.
	StatusIdle Status = "idle"
	// StatusGenerating is the only non-terminal state after dispatch. Text may only grow in this state.
	StatusGenerating Status = "generating"
	// StatusSucceeded means the server sent its done marker.
	StatusSucceeded Status = "succeeded"
	// StatusCancelled means the user cancelled, or a newer generation replaced the session.
	StatusCancelled Status = "cancelled"
	// StatusFailed means the request could not complete. The error detail says why.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// Reply returns the draft text with surrounding whitespace removed, which is what a user would copy.
func (d Draft) Reply() string {
	return strings.TrimSpace(d.Text)
}

// Duration returns how long the session ran. It is zero for drafts that never ended.
func (d Draft) Duration() time.Duration {
	if d.EndedAt.IsZero() || d.StartedAt.IsZero() {
		return 0
	}
	return d.EndedAt.Sub(d.StartedAt)
}
