package generation

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
)

// Session is one generation request from dispatch to its terminal status. Its text only grows while the status
// is models.StatusGenerating and is frozen afterwards. All methods are safe for concurrent use.
type Session struct {
	id       string
	req      models.GenerationRequest
	listener Listener
	cancel   context.CancelFunc
	done     chan struct{}

	logger *slog.Logger

	mu        sync.Mutex
	text      strings.Builder
	status    models.Status
	err       error
	fragments int
	skipped   int
	startedAt time.Time
	endedAt   time.Time
}

func newSession(
	id string,
	req models.GenerationRequest,
	listener Listener,
	cancel context.CancelFunc,
	logger *slog.Logger,
) *Session {
	return &Session{
		id:       id,
		req:      req,
		listener: listener,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   logger.With(slog.String("session", id)),
		status:   models.StatusIdle,
	}
}

// ID returns the session identifier carried by every event the session raises.
func (s *Session) ID() string {
	return s.id
}

// Request returns the request the session was started with.
func (s *Session) Request() models.GenerationRequest {
	return s.req
}

// Text returns the fragments received so far, concatenated.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Draft returns the received text with surrounding whitespace removed.
func (s *Session) Draft() string {
	return strings.TrimSpace(s.Text())
}

// Status returns the current status.
func (s *Session) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that failed the session, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session's stream consumer has exited and the session has been journaled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until Done is closed.
func (s *Session) Wait() {
	<-s.done
}

// Cancel closes the session's transport and moves it to models.StatusCancelled. Text received so far stays
// readable. Cancelling a session that already reached a terminal status only releases its transport.
func (s *Session) Cancel() {
	s.finish(models.StatusCancelled, nil)
	s.cancel()
}

// Snapshot returns the session as a journal entry.
func (s *Session) Snapshot() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := models.Draft{
		ID:              s.id,
		SessionID:       s.id,
		OriginalMessage: s.req.OriginalMessage,
		Instruction:     s.req.Instruction,
		Model:           s.req.Model,
		ServerURL:       s.req.ServerURL,
		Text:            s.text.String(),
		Status:          s.status,
		Fragments:       s.fragments,
		Skipped:         s.skipped,
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
	}
	if s.err != nil {
		d.ErrorDetail = s.err.Error()
	}
	return d
}

func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = models.StatusGenerating
	s.startedAt = time.Now()
	s.listener.OnStatusChange(s.id, s.status, "")
}

// consume drains chunks until a terminal record, an error, or cancellation.
func (s *Session) consume(ctx context.Context, chunks iter.Seq2[models.Chunk, error]) {
	for chunk, err := range chunks {
		if s.Status().Terminal() {
			return
		}
		if err != nil {
			s.finish(models.StatusFailed, err)
			return
		}
		if chunk.Warning != nil {
			s.skip(chunk.Warning)
		}
		if chunk.Text != "" && !s.appendFragment(chunk.Text) {
			return
		}
		if chunk.Done {
			s.finish(models.StatusSucceeded, nil)
			return
		}
	}

	if ctx.Err() != nil {
		s.finish(models.StatusCancelled, nil)
		return
	}
	s.finish(models.StatusFailed, &models.StreamInterruptedError{Err: io.ErrUnexpectedEOF})
}

// appendFragment adds text to the buffer and raises it, unless the session is no longer generating. The event is
// raised under the lock so no fragment can follow a terminal status event.
func (s *Session) appendFragment(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusGenerating {
		return false
	}
	s.text.WriteString(text)
	s.fragments++
	s.logger.Debug("Fragment received", slog.Int("bytes", len(text)))
	s.listener.OnFragment(s.id, text)
	return true
}

func (s *Session) skip(w *models.ParseWarning) {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()

	s.logger.Warn("Skipping malformed record", slog.String(errLoggerKey, w.Error()))
}

// finish moves the session to a terminal status. It reports false if the session was already terminal.
func (s *Session) finish(status models.Status, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return false
	}
	s.status = status
	s.err = err
	s.endedAt = time.Now()

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.listener.OnStatusChange(s.id, status, detail)

	attrs := []any{
		slog.String("status", status.String()),
		slog.Int("fragments", s.fragments),
		slog.Duration("elapsed", s.endedAt.Sub(s.startedAt)),
	}
	switch {
	case err != nil:
		s.logger.Error("Generation failed", append(attrs,
			slog.String("kind", kind(err)),
			slog.String(errLoggerKey, err.Error()))...)
	case status == models.StatusCancelled:
		s.logger.Info("Generation cancelled", attrs...)
	default:
		s.logger.Info("Generation finished", attrs...)
	}
	return true
}

// kind names the error class for logs.
func kind(err error) string {
	var (
		invalid     *models.InvalidInputError
		conn        *models.ConnectionError
		httpErr     *models.HTTPError
		interrupted *models.StreamInterruptedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &conn):
		return "connection"
	case errors.As(err, &httpErr):
		return "http"
	case errors.As(err, &interrupted):
		return "stream_interrupted"
	default:
		return "internal"
	}
}
