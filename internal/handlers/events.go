package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/tmaxmax/go-sse"
)

type publisher interface {
	Publish(msg *sse.Message, topics ...string) error
}

// Events relays generation events to browsers as server-sent events. It implements generation.Listener: every
// fragment and status change of the active session is published on the drafts topic with a JSON payload that
// carries the session ID, so a page can drop events of a session it no longer shows.
type Events struct {
	srv       *sse.Server
	publisher publisher

	logger *slog.Logger
}

type fragmentEvent struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type statusEvent struct {
	SessionID string        `json:"sessionId"`
	Status    models.Status `json:"status"`
	Detail    string        `json:"detail,omitempty"`
}

const draftsSSETopic = "drafts"

// SSE event types for draft updates.
const (
	fragmentSSEType = "fragment"
	statusSSEType   = "status"
	closeSSEType    = "closeDrafts"
)

// NewEvents creates an Events with an SSE server that subscribes every client to the default and drafts topics.
func NewEvents(logger *slog.Logger) *Events {
	srv := &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      []string{sse.DefaultTopic, draftsSSETopic},
			}, true
		},
	}
	return &Events{
		srv:       srv,
		publisher: srv,
		logger:    logger.With(slog.String("module", "events")),
	}
}

// OnFragment publishes a fragment event.
func (e *Events) OnFragment(sessionID, text string) {
	e.publish(fragmentSSEType, fragmentEvent{SessionID: sessionID, Text: text})
}

// OnStatusChange publishes a status event.
func (e *Events) OnStatusChange(sessionID string, status models.Status, detail string) {
	e.publish(statusSSEType, statusEvent{SessionID: sessionID, Status: status, Detail: detail})
}

// ServeHTTP streams events to a browser.
func (e *Events) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.srv.ServeHTTP(w, r)
}

// Shutdown broadcasts a close message to all connected clients and waits up to 5 seconds for connections to
// terminate. After the timeout, any remaining connections are forcefully closed.
func (e *Events) Shutdown(ctx context.Context) error {
	msg := &sse.Message{Type: sse.Type(closeSSEType)}
	// SSE requires data on every message.
	msg.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = e.publisher.Publish(msg)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return e.srv.Shutdown(ctx)
}

func (e *Events) publish(typ string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("Failed to marshal event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := &sse.Message{Type: sse.Type(typ)}
	msg.AppendData(string(data))

	if err := e.publisher.Publish(msg, draftsSSETopic); err != nil {
		e.logger.Error("Failed to publish event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
	}
}
