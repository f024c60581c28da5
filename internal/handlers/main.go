package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"time"

	recommenderchat "github.com/vamu-rec/recommender-chat"
	"github.com/vamu-rec/recommender-chat/internal/models"
	"github.com/vamu-rec/recommender-chat/internal/session"
)

// Backend provides the read-only endpoints of the recommendation backend used by the web UI.
type Backend interface {
	Health(ctx context.Context) (models.Health, error)
	History(ctx context.Context, page, size int) (models.ConversationPage, error)
}

// Session is the streaming chat session driven by the web UI.
type Session interface {
	SendPrompt(ctx context.Context, model models.ModelID, text string) (<-chan struct{}, error)
	Cancel()
	Clear()
	LoadTranscript(c models.Conversation) models.ModelID
	Messages() []models.Message
	State() session.State
	Model() models.ModelID
	SetModel(model models.ModelID)
}

// Options tune the web UI.
type Options struct {
	// HistoryPageSize is the number of conversations per history page.
	HistoryPageSize int
	// RequestTimeout bounds health and history calls to the backend.
	RequestTimeout time.Duration
	// HealthInterval is how often the page refreshes the health badge.
	HealthInterval time.Duration
}

const (
	defaultHistoryPageSize = 10
	defaultRequestTimeout  = 10 * time.Second
	defaultHealthInterval  = 30 * time.Second

	errLoggerKey = "error"
)

// Main handles the web interface of the chat client, rendering HTML templates and wiring user actions to
// the chat session and the backend.
type Main struct {
	templates *template.Template

	backend Backend
	chat    Session
	relay   *Relay

	opts   Options
	logger *slog.Logger
}

// NewMain creates a Main instance serving chat through the given session, backed by backend, and
// streaming updates through relay. It parses the required HTML templates from the embedded filesystem.
func NewMain(backend Backend, chat Session, relay *Relay, opts Options, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		recommenderchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	if opts.HistoryPageSize <= 0 {
		opts.HistoryPageSize = defaultHistoryPageSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaultHealthInterval
	}

	return Main{
		templates: tmpl,
		backend:   backend,
		chat:      chat,
		relay:     relay,
		opts:      opts,
		logger:    logger.With(slog.String("module", "handlers")),
	}, nil
}

// Shutdown aborts the streaming response, if any, clears the session, and closes the browsers' event
// streams.
func (m Main) Shutdown(ctx context.Context) error {
	m.chat.Clear()
	return m.relay.Shutdown(ctx)
}
