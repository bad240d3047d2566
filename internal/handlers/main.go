package handlers

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"

	draftwriter "github.com/MegaGrindStone/draft-writer"
	"github.com/MegaGrindStone/draft-writer/internal/generation"
	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Generator represents the drafting engine behind the web interface. It starts, cancels and clears the single
// active generation session.
type Generator interface {
	Generate(originalMessage, instruction string) (*generation.Session, error)
	Current() *generation.Session
	CancelCurrent() bool
	Clear()
}

// Store defines read and delete access to the draft journal. Drafts are written by the generator when a session
// ends, so the web interface only lists, shows and removes them.
type Store interface {
	Drafts(ctx context.Context, limit int) ([]models.Draft, error)
	Draft(ctx context.Context, id string) (models.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
}

// PingFunc checks that the configured inference server answers, returning its version.
type PingFunc func(ctx context.Context) (string, error)

// Main handles the web interface of the draft writer, rendering the HTML templates and routing form actions to
// the Generator. Live progress is delivered separately by Events.
type Main struct {
	templates *template.Template

	generator Generator
	store     Store
	events    *Events
	ping      PingFunc
	settings  Settings

	logger *slog.Logger
}

// Settings describes the inference server the web interface talks to, shown on the home page.
type Settings struct {
	Provider  string
	Model     string
	ServerURL string
}

const (
	errLoggerKey = "err"

	recentDraftsLimit = 20
)

// NewMain creates a new Main instance. It parses the layout, page and partial templates from the embedded
// filesystem with a markdown function that renders drafts through goldmark.
func NewMain(
	generator Generator,
	store Store,
	events *Events,
	ping PingFunc,
	settings Settings,
	logger *slog.Logger,
) (Main, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			highlighting.NewHighlighting(highlighting.WithStyle("github")),
		),
	)

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"markdown": markdownFunc(md),
	}).ParseFS(
		draftwriter.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		templates: tmpl,
		generator: generator,
		store:     store,
		events:    events,
		ping:      ping,
		settings:  settings,
		logger:    logger.With(slog.String("module", "main")),
	}, nil
}

// Shutdown closes the event stream of every connected browser.
func (m Main) Shutdown(ctx context.Context) error {
	return m.events.Shutdown(ctx)
}

// markdownFunc renders text as HTML. Raw HTML in the input is omitted by goldmark's default renderer, so model
// output cannot inject markup into the page.
func markdownFunc(md goldmark.Markdown) func(string) (template.HTML, error) {
	return func(s string) (template.HTML, error) {
		var buf bytes.Buffer
		if err := md.Convert([]byte(s), &buf); err != nil {
			return "", err
		}
		return template.HTML(buf.String()), nil
	}
}
