// Package generation coordinates streamed reply generation: it owns the single active session, feeds it from an
// LLM backend on its own goroutine, and reports fragments and status changes to a Listener.
package generation

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/MegaGrindStone/draft-writer/internal/prompt"
	"github.com/google/uuid"
)

// LLM streams the model's reply to prompt. The returned iterator yields chunks in the order the server sent them
// and at most one error, after which it stops. It must stop without an error once ctx is cancelled.
type LLM interface {
	Chat(ctx context.Context, req models.GenerationRequest, prompt string) iter.Seq2[models.Chunk, error]
}

// Listener receives the two kinds of events a session raises. Events of one session arrive in order, from the
// session's goroutine, while the session holds its lock: implementations must return quickly and must not call
// back into the Session.
type Listener interface {
	// OnFragment carries only the newly received text, never the whole buffer.
	OnFragment(sessionID, text string)
	// OnStatusChange reports a transition. detail is the error message for models.StatusFailed and empty
	// otherwise.
	OnStatusChange(sessionID string, status models.Status, detail string)
}

// Journal stores finished sessions.
type Journal interface {
	AddDraft(ctx context.Context, draft models.Draft) (string, error)
}

// Config holds the inference server settings applied to every request.
type Config struct {
	Model     string
	ServerURL string
}

// Generator owns the active session. At most one session is generating at any time: starting a new one first
// cancels the previous one and waits for its consumer to exit.
type Generator struct {
	llm      LLM
	listener Listener
	journal  Journal
	cfg      Config

	logger *slog.Logger

	mu     sync.Mutex
	active *Session
}

type nopListener struct{}

const (
	errLoggerKey = "err"

	journalTimeout = 5 * time.Second
)

// NewGenerator creates a Generator that streams from llm with the settings in cfg. listener and journal may be
// nil.
func NewGenerator(llm LLM, listener Listener, journal Journal, cfg Config, logger *slog.Logger) *Generator {
	if listener == nil {
		listener = nopListener{}
	}
	return &Generator{
		llm:      llm,
		listener: listener,
		journal:  journal,
		cfg:      cfg,
		logger:   logger.With(slog.String("module", "generation")),
	}
}

// Generate starts drafting a reply to originalMessage following instruction and returns the new session, already
// in models.StatusGenerating. Invalid input is reported as *models.InvalidInputError before anything else
// happens, leaving any active session untouched. Otherwise the active session, if any, is cancelled and waited
// for first. Failures after this point are reported through the session's status, never returned.
func (g *Generator) Generate(originalMessage, instruction string) (*Session, error) {
	p, err := prompt.Build(originalMessage, instruction)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopActive()

	req := models.GenerationRequest{
		OriginalMessage: strings.TrimSpace(originalMessage),
		Instruction:     strings.TrimSpace(instruction),
		Model:           g.cfg.Model,
		ServerURL:       g.cfg.ServerURL,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(uuid.New().String(), req, g.listener, cancel, g.logger)
	g.active = s

	s.logger.Info("Generation started",
		slog.String("model", req.Model),
		slog.String("server", req.ServerURL))
	s.start()

	go g.run(ctx, s, p)

	return s, nil
}

// Current returns the active session, which may already be terminal, or nil when idle.
func (g *Generator) Current() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// CancelCurrent cancels the active session. It reports whether a generating session was cancelled.
func (g *Generator) CancelCurrent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active == nil || g.active.Status().Terminal() {
		return false
	}
	g.active.Cancel()
	return true
}

// Clear cancels the active session and returns the generator to idle.
func (g *Generator) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopActive()
	g.active = nil
}

// Shutdown cancels the active session and waits for it to be journaled, or for ctx to be done.
func (g *Generator) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	s := g.active
	g.mu.Unlock()

	if s == nil {
		return nil
	}
	s.Cancel()

	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Generator) stopActive() {
	if g.active == nil {
		return
	}
	g.active.Cancel()
	g.active.Wait()
}

func (g *Generator) run(ctx context.Context, s *Session, p string) {
	defer close(s.done)
	defer s.cancel()

	s.consume(ctx, g.llm.Chat(ctx, s.req, p))
	g.record(s)
}

func (g *Generator) record(s *Session) {
	if g.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	if _, err := g.journal.AddDraft(ctx, s.Snapshot()); err != nil {
		s.logger.Error("Failed to journal draft", slog.String(errLoggerKey, err.Error()))
	}
}

func (nopListener) OnFragment(string, string) {}

func (nopListener) OnStatusChange(string, models.Status, string) {}
